package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/reqtrack/reqtrack/internal/model"
)

// ActivityFilter narrows the activity feed. A nil User lists every actor.
type ActivityFilter struct {
	User       *primitive.ObjectID
	TargetType string
	TargetID   *primitive.ObjectID
	Page       Page
}

// ActivityRepo is insert-only; entries are never updated or deleted.
type ActivityRepo struct{ col *mongo.Collection }

func NewActivityRepo(db *mongo.Database) *ActivityRepo {
	return &ActivityRepo{col: db.Collection(colActivity)}
}

func (r *ActivityRepo) Insert(ctx context.Context, e *model.ActivityLog) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

// List returns entries newest first.
func (r *ActivityRepo) List(ctx context.Context, f ActivityFilter) ([]model.ActivityLog, int64, error) {
	filter := and(eqIf("targetType", f.TargetType))
	if f.User != nil {
		filter = and(filter, bson.M{"user": *f.User})
	}
	if f.TargetID != nil {
		filter = and(filter, bson.M{"targetId": *f.TargetID})
	}
	return findPage[model.ActivityLog](ctx, r.col, filter, f.Page, newestFirst)
}
