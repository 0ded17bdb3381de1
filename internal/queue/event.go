// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/reqtrack/reqtrack/internal/mail"
)

// MailEvent is published for every email the API wants delivered. The
// consumer hands Message to the SMTP transport.
type MailEvent struct {
	ID       string       `json:"id"`
	QueuedAt time.Time    `json:"queued_at"`
	Message  mail.Message `json:"message"`
}
