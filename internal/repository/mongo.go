package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	colUsers         = "users"
	colProjects      = "projects"
	colRequirements  = "requirements"
	colAssets        = "assets"
	colNotifications = "notifications"
	colActivity      = "activitylogs"
	colResetTokens   = "passwordresettokens"
)

// Page selects a window of a sorted result set.
type Page struct {
	Skip  int64
	Limit int64
}

// Scope restricts a query to what a non-staff user may see. All disables the
// restriction. Projects are the ids the user is attached to; Owner is the user
// itself so documents they created stay visible even outside those projects.
type Scope struct {
	All      bool
	Projects []primitive.ObjectID
	Owner    primitive.ObjectID
}

// SearchQuery is the shared input of the per-collection search methods.
// Pattern is matched case-insensitively as a literal substring.
type SearchQuery struct {
	Pattern  string
	Status   string
	Priority string
	Category string
	Scope    Scope
	Limit    int64
}

// containsRegex builds a case-insensitive literal substring match.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// prefixRegex builds a case-insensitive literal prefix match.
func prefixRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s), Options: "i"}
}

// textOr matches pattern against any of the given fields.
func textOr(pattern string, fields ...string) bson.A {
	re := containsRegex(pattern)
	or := bson.A{}
	for _, f := range fields {
		or = append(or, bson.M{f: re})
	}
	return or
}

// and merges conditions into a single filter. Empty conditions are skipped.
func and(conds ...bson.M) bson.M {
	var parts bson.A
	for _, c := range conds {
		if len(c) > 0 {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return bson.M{}
	case 1:
		return parts[0].(bson.M)
	}
	return bson.M{"$and": parts}
}

// scopeFilter restricts documents to projectField ∈ scope.Projects or
// ownerField == scope.Owner.
func scopeFilter(s Scope, projectField, ownerField string) bson.M {
	if s.All {
		return nil
	}
	or := bson.A{bson.M{projectField: bson.M{"$in": nonNil(s.Projects)}}}
	if ownerField != "" && !s.Owner.IsZero() {
		or = append(or, bson.M{ownerField: s.Owner})
	}
	return bson.M{"$or": or}
}

func nonNil(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}

func eqIf(field, value string) bson.M {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return bson.M{field: value}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func findOptions(p Page, sort bson.D) *options.FindOptions {
	o := options.Find().SetSort(sort)
	if p.Skip > 0 {
		o.SetSkip(p.Skip)
	}
	if p.Limit > 0 {
		o.SetLimit(p.Limit)
	}
	return o
}

// findPage runs a sorted, windowed find and the matching count.
func findPage[T any](ctx context.Context, col *mongo.Collection, filter bson.M, p Page, sort bson.D) ([]T, int64, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out, err := findAll[T](ctx, col, filter, findOptions(p, sort))
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any) (*T, error) {
	var v T
	if err := col.FindOne(ctx, filter).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// countBy groups the filtered documents by field and counts each group.
func countBy(ctx context.Context, col *mongo.Collection, filter bson.M, field string) (map[string]int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + field}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

// mustAffect turns a zero match count into ErrNotFound.
func mustAffect(matched int64, err error) error {
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func dupErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
