package device

// DecideInitialTrust is the trust policy for newly seen devices. The first
// device of a user is trusted so the account can bootstrap access; later
// devices start untrusted unless an administrator armed a forced trust.
func DecideInitialTrust(existingDeviceCount int, forceTrust bool) Status {
	if forceTrust || existingDeviceCount == 0 {
		return StatusTrusted
	}
	return StatusUntrusted
}
