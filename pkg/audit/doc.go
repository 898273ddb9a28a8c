// Package audit records security-relevant events for users and their devices.
//
// The audit trail is append-only: the Repository interface exposes Append and
// ListByActor and nothing else, so no caller can update or delete an event.
// The Logger assigns the event id and timestamp itself; callers cannot supply
// a creation time.
//
// Events carry a denormalized snapshot of the device (fingerprint, name,
// platform) rather than a reference to the device row, so history stays
// readable after the device record is deleted.
//
// # Basic Usage
//
//	repo, err := audit.NewRepository("postgres", audit.RepositoryConfig{DB: pool})
//	logger := audit.NewLogger(repo)
//
//	_, err = logger.LogEvent(ctx, userID, audit.EventAuthLogin, clientIP, &audit.DeviceSnapshot{
//		ID:       fingerprint,
//		Name:     "Firefox 128",
//		Platform: "Linux",
//	})
//
// A failed write is returned as an AUDIT_WRITE_FAILURE error and the caller
// is expected to fail the enclosing operation.
package audit
