package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/mail"
	"github.com/reqtrack/reqtrack/internal/model"
)

// emailedTypes get an email copy in addition to the in-app notification.
var emailedTypes = map[model.NotificationType]bool{
	model.NotifyAssignment:           true,
	model.NotifyRequirementSubmitted: true,
}

// Notifier fans in-app notifications out to recipients. Delivery is best
// effort: failures are logged and never fail the calling operation.
type Notifier struct {
	clock
	notes     NotificationStore
	users     UserStore
	mailer    mail.Mailer
	appName   string
	clientURL string
	log       zerolog.Logger
}

func NewNotifier(notes NotificationStore, users UserStore, mailer mail.Mailer, appName, clientURL string, log zerolog.Logger) *Notifier {
	return &Notifier{notes: notes, users: users, mailer: mailer, appName: appName, clientURL: clientURL, log: log}
}

// Event is one notification to deliver.
type Event struct {
	Type    model.NotificationType
	Title   string
	Message string
	Link    string
	Sender  *model.User
}

// Notify delivers ev to every recipient except the sender. Duplicate and
// zero ids are dropped.
func (n *Notifier) Notify(ctx context.Context, ev Event, recipients ...primitive.ObjectID) {
	if n == nil {
		return
	}
	recipients = dedupe(recipients)
	now := n.now()
	batch := make([]*model.Notification, 0, len(recipients))
	var sender *primitive.ObjectID
	if ev.Sender != nil {
		sender = &ev.Sender.ID
	}
	for _, id := range recipients {
		if sender != nil && id == *sender {
			continue
		}
		nt := &model.Notification{
			Recipient: id,
			Sender:    sender,
			Type:      ev.Type,
			Title:     ev.Title,
			Message:   ev.Message,
			Link:      ev.Link,
		}
		nt.Touch(now)
		batch = append(batch, nt)
	}
	if len(batch) == 0 {
		return
	}
	if err := n.notes.CreateMany(ctx, batch); err != nil {
		n.log.Error().Err(err).Str("type", string(ev.Type)).Int("recipients", len(batch)).Msg("notification insert failed")
		return
	}
	if emailedTypes[ev.Type] && n.mailer != nil {
		n.email(ctx, ev, batch)
	}
}

func (n *Notifier) email(ctx context.Context, ev Event, batch []*model.Notification) {
	ids := make([]primitive.ObjectID, 0, len(batch))
	for _, nt := range batch {
		ids = append(ids, nt.Recipient)
	}
	users, err := n.users.GetByIDs(ctx, ids)
	if err != nil {
		n.log.Warn().Err(err).Msg("notification email lookup failed")
		return
	}
	for _, id := range ids {
		u, ok := users[id]
		if !ok || u.Email == "" || !u.IsActive {
			continue
		}
		msg, err := mail.Notification(n.appName, u.Email, u.Name, ev.Title, ev.Message, n.clientURL+ev.Link)
		if err != nil {
			n.log.Error().Err(err).Msg("render notification email")
			return
		}
		if err := n.mailer.Send(ctx, msg); err != nil {
			n.log.Warn().Err(err).Str("to", u.Email).Msg("notification email failed")
		}
	}
}
