// Package errors provides structured error handling with error codes.
//
// Every failure that crosses a service boundary carries a stable
// machine-readable code plus a human-readable message, and maps to an HTTP
// status:
//
//	INVALID_CREDENTIALS          401
//	ACCESS_DISABLED              403
//	TOKEN_INVALID                401
//	INVALID_TRANSITION           409
//	DEVICE_OPERATION_FORBIDDEN   403
//	NOT_FOUND                    404
//	AUDIT_WRITE_FAILURE          500
//
// # Basic Usage
//
//	err := errors.New(errors.ErrCodeInvalidTransition, "device is revoked")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to load device")
//
//	if errors.IsCode(err, errors.ErrCodeNotFound) {
//		// ...
//	}
//
// Handlers write failures with Render, which produces
// {"code": "...", "message": "..."}.
package errors
