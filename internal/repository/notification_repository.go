package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/reqtrack/reqtrack/internal/model"
)

type NotificationRepo struct{ col *mongo.Collection }

func NewNotificationRepo(db *mongo.Database) *NotificationRepo {
	return &NotificationRepo{col: db.Collection(colNotifications)}
}

// CreateMany inserts ns and sets their IDs.
func (r *NotificationRepo) CreateMany(ctx context.Context, ns []*model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]any, 0, len(ns))
	for _, n := range ns {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		docs = append(docs, n)
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

// List returns the recipient's notifications newest first.
func (r *NotificationRepo) List(ctx context.Context, recipient primitive.ObjectID, unreadOnly bool, p Page) ([]model.Notification, int64, error) {
	filter := bson.M{"recipient": recipient}
	if unreadOnly {
		filter["read"] = false
	}
	return findPage[model.Notification](ctx, r.col, filter, p, newestFirst)
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"recipient": recipient, "read": false})
}

// MarkRead marks one notification of recipient as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, recipient primitive.ObjectID, now time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{"read": true, "readAt": now, "updatedAt": now}})
	if err != nil {
		return err
	}
	return mustAffect(res.MatchedCount, nil)
}

// MarkAllRead marks every unread notification of recipient as read and
// returns how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipient primitive.ObjectID, now time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"recipient": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": now, "updatedAt": now}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepo) Delete(ctx context.Context, id, recipient primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "recipient": recipient})
	if err != nil {
		return err
	}
	return mustAffect(res.DeletedCount, nil)
}

// DeleteByLink removes every notification pointing at link.
func (r *NotificationRepo) DeleteByLink(ctx context.Context, link string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"link": link})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
