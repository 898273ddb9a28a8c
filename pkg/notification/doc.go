// Package notification tells users about sign-ins from devices they have
// not used before.
//
// EmailNotifier delivers through SMTP. NoOpNotifier is used when SMTP is not
// configured. Delivery failures are reported to the caller, which logs them
// and carries on; a notice never blocks a login.
//
//	notifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
//		Host: "localhost",
//		Port: 1025,
//		From: "noreply@example.com",
//	})
//	err = notifier.NotifyNewDevice(ctx, notification.NewDeviceNotice{
//		Username:   "alice",
//		To:         "alice@example.com",
//		DeviceName: "Firefox 128",
//		Platform:   "Linux",
//	})
package notification
