// Package device is the device registry: the set of devices each user has
// logged in from and their trust status.
//
// # Status
//
// A device is untrusted, trusted or revoked. The legal transitions live in
// one table (see CanTransition):
//
//	untrusted -> trusted | revoked
//	trusted   -> untrusted | revoked
//	revoked   -> (none)
//
// Moving a trusted device back to untrusted increments its token version,
// which invalidates every session minted for the old version.
//
// # Registration
//
// RegisterOrUpdateDevice is called on every successful login. The first
// device of a user is trusted, later ones start untrusted unless the login
// carries a forced trust (see DecideInitialTrust). Creation is atomic per
// (user, fingerprint) in every repository implementation.
//
// # Basic Usage
//
//	repo, err := device.NewDeviceRepository("postgres", device.RepositoryConfig{DB: pool})
//	service := device.NewDeviceService(repo, auditLogger)
//
//	reg, err := service.RegisterOrUpdateDevice(ctx, device.RegisterDeviceParams{
//		UserID:    userID,
//		Info:      device.DeviceInfo{DeviceID: fingerprint, Name: "Chrome 126", Platform: "macOS 14"},
//		IPAddress: ip,
//	})
//
//	_, err = service.UpdateStatus(ctx, device.UpdateStatusParams{
//		UserID:         userID,
//		DeviceRecordID: reg.Device.ID,
//		Status:         device.StatusRevoked,
//	})
package device
