package config

import (
	"github.com/tendant/simple-trust/pkg/notification"
)

// EmailConfig holds SMTP settings for new device notices. Notices are only
// sent when Enabled is set.
type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

func (e EmailConfig) validate() ValidationErrors {
	if !e.Enabled {
		return nil
	}
	return CollectErrors(
		RequireNonEmpty("EMAIL_HOST", e.Host),
		RequireValidPort("EMAIL_PORT", e.Port),
		RequireNonEmpty("EMAIL_FROM", e.From),
	)
}
