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

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Scope    Scope
	Status   string
	Priority string
	Search   string
	Page     Page
}

type ProjectRepo struct{ col *mongo.Collection }

func NewProjectRepo(db *mongo.Database) *ProjectRepo {
	return &ProjectRepo{col: db.Collection(colProjects)}
}

// Create inserts p and sets its ID.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.ClientInfo.Email = normalizeEmail(p.ClientInfo.Email)
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *ProjectRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Project, error) {
	return findOne[model.Project](ctx, r.col, bson.M{"_id": id})
}

// GetByIDs returns the projects among ids keyed by id.
func (r *ProjectRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.Project, error) {
	out := make(map[primitive.ObjectID]*model.Project, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	projects, err := findAll[model.Project](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for i := range projects {
		out[projects[i].ID] = &projects[i]
	}
	return out, nil
}

// Update replaces the stored project with p.
func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	p.ClientInfo.Email = normalizeEmail(p.ClientInfo.Email)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	return mustAffect(res.MatchedCount, nil)
}

func (r *ProjectRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	return mustAffect(res.DeletedCount, nil)
}

// List returns projects newest first.
func (r *ProjectRepo) List(ctx context.Context, f ProjectFilter) ([]model.Project, int64, error) {
	filter := r.filter(f.Scope, f.Status, f.Priority)
	if s := strings.TrimSpace(f.Search); s != "" {
		filter = and(filter, bson.M{"$or": textOr(s, "name", "description", "tags")})
	}
	return findPage[model.Project](ctx, r.col, filter, f.Page, newestFirst)
}

// IDsForMember returns the projects a non-staff user is attached to: as the
// linked client, or as a team member.
func (r *ProjectRepo) IDsForMember(ctx context.Context, userID primitive.ObjectID, role model.Role) ([]primitive.ObjectID, error) {
	filter := bson.M{"team": userID}
	if role == model.RoleClient {
		filter = bson.M{"client": userID}
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	rows, err := findAll[struct {
		ID primitive.ObjectID `bson:"_id"`
	}](ctx, r.col, filter, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// LinkClientByEmail sets client = userID on every project whose contact email
// matches and which has no client yet. It returns the number of projects
// linked.
func (r *ProjectRepo) LinkClientByEmail(ctx context.Context, email string, userID primitive.ObjectID, now time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx, unlinkedFor(email),
		bson.M{"$set": bson.M{"client": userID, "updatedAt": now}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountByStatus counts scoped projects per status.
func (r *ProjectRepo) CountByStatus(ctx context.Context, s Scope) (map[string]int64, error) {
	return countBy(ctx, r.col, r.filter(s, "", ""), "status")
}

// Search matches name, description and tags.
func (r *ProjectRepo) Search(ctx context.Context, q SearchQuery) ([]model.Project, error) {
	filter := and(r.filter(q.Scope, q.Status, q.Priority), bson.M{"$or": textOr(q.Pattern, "name", "description", "tags")})
	return findAll[model.Project](ctx, r.col, filter, findOptions(Page{Limit: q.Limit}, newestFirst))
}

// Suggest returns scoped projects whose name starts with prefix.
func (r *ProjectRepo) Suggest(ctx context.Context, prefix string, s Scope, limit int64) ([]model.Project, error) {
	filter := and(r.filter(s, "", ""), bson.M{"name": prefixRegex(prefix)})
	opts := findOptions(Page{Limit: limit}, bson.D{{Key: "name", Value: 1}}).SetProjection(bson.M{"name": 1, "status": 1})
	return findAll[model.Project](ctx, r.col, filter, opts)
}

// unlinkedFor matches projects whose contact email is email and which have
// no client account yet.
func unlinkedFor(email string) bson.M {
	return bson.M{
		"clientInfo.email": normalizeEmail(email),
		"$or":              bson.A{bson.M{"client": bson.M{"$exists": false}}, bson.M{"client": nil}},
	}
}

func (r *ProjectRepo) filter(s Scope, status, priority string) bson.M {
	var scope bson.M
	if !s.All {
		scope = bson.M{"_id": bson.M{"$in": nonNil(s.Projects)}}
	}
	return and(scope, eqIf("status", status), eqIf("priority", priority))
}
