package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var resetTmpl = template.Must(template.New("reset").Parse(`<p>Hello {{.Name}},</p>
<p>We received a request to reset your {{.AppName}} password.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>This link expires in {{.Expires}}. If you did not ask for a reset you can ignore this email.</p>`))

var notifyTmpl = template.Must(template.New("notify").Parse(`<p>Hello {{.Name}},</p>
<p><strong>{{.Title}}</strong></p>
<p>{{.Message}}</p>
{{if .Link}}<p><a href="{{.Link}}">Open in {{.AppName}}</a></p>{{end}}`))

// PasswordReset renders the reset email sent to a user.
func PasswordReset(appName, to, name, link string, ttl time.Duration) (Message, error) {
	data := struct {
		AppName, Name, Link, Expires string
	}{appName, name, link, humanDuration(ttl)}
	var buf bytes.Buffer
	if err := resetTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: appName + " password reset",
		HTML:    buf.String(),
		Text:    "Reset your password: " + link,
	}, nil
}

// Notification renders an email copy of an in-app notification.
func Notification(appName, to, name, title, message, link string) (Message, error) {
	data := struct {
		AppName, Name, Title, Message, Link string
	}{appName, name, title, message, link}
	var buf bytes.Buffer
	if err := notifyTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: title, HTML: buf.String(), Text: message}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d > time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	return d.String()
}
