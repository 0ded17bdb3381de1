package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/mail"
)

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, m mail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func TestConsumerHandle(t *testing.T) {
	ev := MailEvent{ID: "ev-1", QueuedAt: time.Now(), Message: mail.Message{To: "a@x.com", Subject: "Hi", HTML: "<p>hi</p>"}}
	body, _ := json.Marshal(ev)

	tests := []struct {
		name    string
		body    []byte
		mailErr error
		wantErr bool
		wantOut int
	}{
		{name: "delivers", body: body, wantOut: 1},
		{name: "bad json", body: []byte("{"), wantErr: true},
		{name: "no recipient", body: []byte(`{"id":"x","message":{"subject":"s"}}`), wantErr: true},
		{name: "transport error", body: body, mailErr: errors.New("smtp down"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &recordingMailer{err: tt.mailErr}
			c := NewConsumer("amqp://unused", "mail.outbound", m, zerolog.Nop())
			err := c.handle(context.Background(), tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(m.sent) != tt.wantOut {
				t.Errorf("sent %d messages, want %d", len(m.sent), tt.wantOut)
			}
		})
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Error("sleep() returned true on a cancelled context")
	}
	if !sleep(context.Background(), time.Millisecond) {
		t.Error("sleep() returned false after the duration elapsed")
	}
}
