package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/reqtrack/reqtrack/internal/model"
)

// RequirementFilter narrows requirement listings. Empty fields are ignored.
type RequirementFilter struct {
	Scope    Scope
	Project  *primitive.ObjectID
	Status   string
	Category string
	Priority string
	Search   string
	Page     Page
}

type RequirementRepo struct{ col *mongo.Collection }

func NewRequirementRepo(db *mongo.Database) *RequirementRepo {
	return &RequirementRepo{col: db.Collection(colRequirements)}
}

// Create inserts req and sets its ID. Nil slices are stored as empty arrays
// so later $push operations always target an array.
func (r *RequirementRepo) Create(ctx context.Context, req *model.Requirement) error {
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	if req.AcceptanceCriteria == nil {
		req.AcceptanceCriteria = []string{}
	}
	if req.Attachments == nil {
		req.Attachments = []model.Attachment{}
	}
	if req.Comments == nil {
		req.Comments = []model.Comment{}
	}
	_, err := r.col.InsertOne(ctx, req)
	return err
}

func (r *RequirementRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Requirement, error) {
	return findOne[model.Requirement](ctx, r.col, bson.M{"_id": id})
}

// Update replaces the editable fields of req. Comments and attachments are
// left alone so concurrent appends are never overwritten.
func (r *RequirementRepo) Update(ctx context.Context, req *model.Requirement) error {
	set := bson.M{
		"title":              req.Title,
		"description":        req.Description,
		"project":            req.Project,
		"category":           req.Category,
		"priority":           req.Priority,
		"status":             req.Status,
		"acceptanceCriteria": req.AcceptanceCriteria,
		"tags":               req.Tags,
		"dueDate":            req.DueDate,
		"assignedTo":         req.AssignedTo,
		"updatedAt":          req.UpdatedAt,
	}
	res, err := r.col.UpdateByID(ctx, req.ID, bson.M{"$set": set})
	if err != nil {
		return err
	}
	return mustAffect(res.MatchedCount, nil)
}

// PushComment appends c in a single-document update.
func (r *RequirementRepo) PushComment(ctx context.Context, id primitive.ObjectID, c model.Comment, now time.Time) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"comments": c},
		"$set":  bson.M{"updatedAt": now},
	})
	if err != nil {
		return err
	}
	return mustAffect(res.MatchedCount, nil)
}

// PushAttachments appends atts in a single-document update.
func (r *RequirementRepo) PushAttachments(ctx context.Context, id primitive.ObjectID, atts []model.Attachment, now time.Time) error {
	if len(atts) == 0 {
		return nil
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"attachments": bson.M{"$each": atts}},
		"$set":  bson.M{"updatedAt": now},
	})
	if err != nil {
		return err
	}
	return mustAffect(res.MatchedCount, nil)
}

func (r *RequirementRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	return mustAffect(res.DeletedCount, nil)
}

// DeleteByProject removes every requirement of a project.
func (r *RequirementRepo) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"project": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns requirements newest first.
func (r *RequirementRepo) List(ctx context.Context, f RequirementFilter) ([]model.Requirement, int64, error) {
	filter := r.filter(f.Scope, f.Status, f.Priority, f.Category)
	if f.Project != nil {
		filter = and(filter, bson.M{"project": *f.Project})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		filter = and(filter, bson.M{"$or": textOr(s, "title", "description")})
	}
	return findPage[model.Requirement](ctx, r.col, filter, f.Page, newestFirst)
}

// CountByStatus counts scoped requirements per status. A non-nil project
// further restricts the count to that project.
func (r *RequirementRepo) CountByStatus(ctx context.Context, s Scope, project *primitive.ObjectID) (map[string]int64, error) {
	filter := r.filter(s, "", "", "")
	if project != nil {
		filter = and(filter, bson.M{"project": *project})
	}
	return countBy(ctx, r.col, filter, "status")
}

// Search matches title, description and tags.
func (r *RequirementRepo) Search(ctx context.Context, q SearchQuery) ([]model.Requirement, error) {
	filter := and(r.filter(q.Scope, q.Status, q.Priority, q.Category),
		bson.M{"$or": textOr(q.Pattern, "title", "description", "tags")})
	return findAll[model.Requirement](ctx, r.col, filter, findOptions(Page{Limit: q.Limit}, newestFirst))
}

// Suggest returns scoped requirements whose title starts with prefix.
func (r *RequirementRepo) Suggest(ctx context.Context, prefix string, s Scope, limit int64) ([]model.Requirement, error) {
	filter := and(r.filter(s, "", "", ""), bson.M{"title": prefixRegex(prefix)})
	opts := findOptions(Page{Limit: limit}, bson.D{{Key: "title", Value: 1}}).
		SetProjection(bson.M{"title": 1, "status": 1, "project": 1})
	return findAll[model.Requirement](ctx, r.col, filter, opts)
}

func (r *RequirementRepo) filter(s Scope, status, priority, category string) bson.M {
	return and(scopeFilter(s, "project", "createdBy"),
		eqIf("status", status), eqIf("priority", priority), eqIf("category", category))
}
