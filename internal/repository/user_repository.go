package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reqtrack/reqtrack/internal/model"
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   string
	Search string
	Page   Page
}

type UserRepo struct{ col *mongo.Collection }

func NewUserRepo(db *mongo.Database) *UserRepo { return &UserRepo{col: db.Collection(colUsers)} }

// Create inserts u and sets its ID. A taken email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, u)
	return dupErr(err)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, r.col, bson.M{"email": normalizeEmail(email)})
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return findOne[model.User](ctx, r.col, bson.M{"_id": id})
}

// GetByIDs returns the users among ids keyed by id. Unknown ids are skipped.
func (r *UserRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error) {
	out := make(map[primitive.ObjectID]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := findAll[model.User](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// Update replaces the stored user with u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return dupErr(err)
	}
	return mustAffect(res.MatchedCount, nil)
}

// SetLastLogin stamps lastLogin without rewriting the document.
func (r *UserRepo) SetLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": at}})
	return err
}

// List returns users newest first.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	filter := and(eqIf("role", f.Role))
	if s := strings.TrimSpace(f.Search); s != "" {
		filter = and(filter, bson.M{"$or": textOr(s, "name", "email", "company")})
	}
	return findPage[model.User](ctx, r.col, filter, f.Page, newestFirst)
}

// Count returns the number of registered users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

// IDsByRole returns the ids of active users holding any of roles.
func (r *UserRepo) IDsByRole(ctx context.Context, roles ...model.Role) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	rows, err := findAll[struct {
		ID primitive.ObjectID `bson:"_id"`
	}](ctx, r.col, bson.M{"role": bson.M{"$in": roles}, "isActive": true}, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// Search matches name and email.
func (r *UserRepo) Search(ctx context.Context, q SearchQuery) ([]model.User, error) {
	filter := bson.M{"$or": textOr(q.Pattern, "name", "email", "company", "department")}
	return findAll[model.User](ctx, r.col, filter, findOptions(Page{Limit: q.Limit}, newestFirst))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
