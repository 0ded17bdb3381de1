package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
)

const (
	auditActorKey  = "audit.actor"
	auditTargetKey = "audit.target"

	// maxAuditBody bounds how much of a JSON body is kept with an entry.
	maxAuditBody = 64 << 10
)

// secretFields are replaced before a request body is stored.
var secretFields = map[string]bool{
	"password":        true,
	"currentpassword": true,
	"newpassword":     true,
	"token":           true,
}

// Recorder persists activity entries. Record never fails the request.
type Recorder interface {
	Record(ctx context.Context, e *model.ActivityLog)
}

// AuditTarget is what an audited request acted on.
type AuditTarget struct {
	Description string
	Type        model.TargetType
	ID          *primitive.ObjectID
}

// Describer builds the target description after the handler has run, so it
// can read ids the handler stored with SetAuditTarget.
type Describer func(c echo.Context) AuditTarget

// Auditor decorates handlers with activity logging.
type Auditor struct {
	rec Recorder
}

func NewAuditor(rec Recorder) *Auditor { return &Auditor{rec: rec} }

// WithAudit records an entry for action once the wrapped handler has
// answered with a 2xx status. Failed requests are never recorded.
func (a *Auditor) WithAudit(action model.Action, describe Describer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			body := captureBody(c)
			if err := next(c); err != nil {
				return err
			}
			status := c.Response().Status
			if status < 200 || status > 299 {
				return nil
			}
			actor := auditActor(c)
			if actor == nil {
				return nil
			}
			t := describe(c)
			if id := auditTargetID(c); id != nil && t.ID == nil {
				t.ID = id
			}
			a.rec.Record(context.WithoutCancel(req.Context()), &model.ActivityLog{
				User:        actor.ID,
				Action:      action,
				Description: t.Description,
				TargetType:  t.Type,
				TargetID:    t.ID,
				Metadata:    model.RequestMeta{Method: req.Method, Path: RedactedPath(c, req.URL.Path), Body: body},
				IP:          c.RealIP(),
			})
			return nil
		}
	}
}

// SetAuditActor names the actor on routes without a session, such as login
// and registration.
func SetAuditActor(c echo.Context, u *model.User) { c.Set(auditActorKey, u) }

// SetAuditTarget records the id of a document created by the handler.
func SetAuditTarget(c echo.Context, id primitive.ObjectID) { c.Set(auditTargetKey, id) }

func auditActor(c echo.Context) *model.User {
	if u, ok := c.Get(auditActorKey).(*model.User); ok && u != nil {
		return u
	}
	return CurrentUser(c)
}

func auditTargetID(c echo.Context) *primitive.ObjectID {
	if id, ok := c.Get(auditTargetKey).(primitive.ObjectID); ok && !id.IsZero() {
		return &id
	}
	return nil
}

// captureBody reads a JSON request body, restores it for the handler and
// returns a redacted copy. Multipart and other bodies are not kept.
func captureBody(c echo.Context) map[string]any {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxAuditBody+1))
	rest := req.Body
	req.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	if err != nil || len(raw) == 0 || len(raw) > maxAuditBody {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	redact(body)
	return body
}

func redact(m map[string]any) {
	for k, v := range m {
		if secretFields[strings.ToLower(k)] {
			m[k] = "[REDACTED]"
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			redact(t)
		case []any:
			for _, item := range t {
				if nested, ok := item.(map[string]any); ok {
					redact(nested)
				}
			}
		}
	}
}
