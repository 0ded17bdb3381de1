package config

// MailConfig holds outbound mail settings. When SMTPHost is empty the server
// logs messages instead of sending them, which keeps local development free
// of a mail transport.
type MailConfig struct {
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	From     string
	AppName  string
	Queue    string // RabbitMQ queue used when the mail queue is enabled
}

// LoadMailConfig reads SMTP_* and MAIL_* variables.
func LoadMailConfig() MailConfig {
	return MailConfig{
		SMTPHost: envStr("SMTP_HOST", ""),
		SMTPPort: envStr("SMTP_PORT", "587"),
		SMTPUser: envStr("SMTP_USER", ""),
		SMTPPass: envStr("SMTP_PASS", ""),
		From:     envStr("MAIL_FROM", "no-reply@reqtrack.local"),
		AppName:  envStr("APP_NAME", "ReqTrack"),
		Queue:    envStr("MAIL_QUEUE", "mail.outbound"),
	}
}

// Enabled reports whether an SMTP transport is configured.
func (m MailConfig) Enabled() bool { return m.SMTPHost != "" }
