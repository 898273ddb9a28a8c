package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

const newDeviceSubject = "New sign-in to your account"

var newDeviceText = texttemplate.Must(texttemplate.New("text").Parse(
	`Hi {{.Username}},

Your account was just used to sign in from a new device:

  Device:   {{.DeviceName}}
  Platform: {{.Platform}}
  IP:       {{.IPAddress}}
  Time:     {{.SeenAt.Format "2006-01-02 15:04 MST"}}
{{if not .Trusted}}
The device is not trusted yet. You can trust or revoke it from your device list.
{{end}}
If this was not you, revoke the device and change your password.
`))

var newDeviceHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<p>Hi {{.Username}},</p>
<p>Your account was just used to sign in from a new device:</p>
<ul>
<li>Device: {{.DeviceName}}</li>
<li>Platform: {{.Platform}}</li>
<li>IP: {{.IPAddress}}</li>
<li>Time: {{.SeenAt.Format "2006-01-02 15:04 MST"}}</li>
</ul>
{{if not .Trusted}}<p>The device is not trusted yet. You can trust or revoke it from your device list.</p>{{end}}
<p>If this was not you, revoke the device and change your password.</p>
`))

type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		slog.Info("Adding authentication", "user", config.Username)
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		slog.Info("Using NoTLS policy")
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	} else {
		slog.Info("Using TLS Mandatory policy")
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	slog.Info("Creating mail client", "Host", config.Host, "Port", config.Port)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

// NotifyNewDevice mails the user about a sign-in from a new device
func (e *EmailNotifier) NotifyNewDevice(ctx context.Context, notice NewDeviceNotice) error {
	if notice.To == "" {
		slog.Debug("No email address on file, skipping new device notice", "userID", notice.UserID)
		return nil
	}

	msg, err := e.buildMessage(notice)
	if err != nil {
		return err
	}

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send email", "err", err)
		return err
	}

	slog.Info("Email sent successfully", "to", notice.To, "host", e.SMTPConfig.Host, "port", e.SMTPConfig.Port)
	return nil
}

func (e *EmailNotifier) buildMessage(notice NewDeviceNotice) (*mail.Msg, error) {
	var text, html bytes.Buffer
	if err := newDeviceText.Execute(&text, notice); err != nil {
		return nil, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := newDeviceHTML.Execute(&html, notice); err != nil {
		return nil, fmt.Errorf("failed to render html body: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return nil, err
	}
	if err := msg.To(notice.To); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return nil, err
	}
	msg.Subject(newDeviceSubject)
	msg.SetBodyString(mail.TypeTextPlain, text.String())
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())
	return msg, nil
}
