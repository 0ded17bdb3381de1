package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reqtrack/reqtrack/internal/model"
)

// TokenRepo persists password reset tokens (hash only).
type TokenRepo struct{ col *mongo.Collection }

func NewTokenRepo(db *mongo.Database) *TokenRepo {
	return &TokenRepo{col: db.Collection(colResetTokens)}
}

// Store inserts a reset token row.
func (r *TokenRepo) Store(ctx context.Context, t *model.PasswordResetToken) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, t)
	return err
}

// InvalidateUnused marks every unused token of userID as used.
func (r *TokenRepo) InvalidateUnused(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"user": userID, "used": false},
		bson.M{"$set": bson.M{"used": true}})
	return err
}

// Consume atomically marks the unused, unexpired token with tokenHash as used
// and returns it. A second call with the same hash yields ErrNotFound.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.col.FindOneAndUpdate(ctx,
		redeemable(tokenHash, now),
		bson.M{"$set": bson.M{"used": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// redeemable matches the token with tokenHash if nobody used it and it has
// not expired at now.
func redeemable(tokenHash string, now time.Time) bson.M {
	return bson.M{"tokenHash": tokenHash, "used": false, "expiresAt": bson.M{"$gt": now}}
}
