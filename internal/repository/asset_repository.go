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

// AssetFilter narrows asset listings.
type AssetFilter struct {
	Scope       Scope
	Project     *primitive.ObjectID
	Requirement *primitive.ObjectID
	Type        string
	Search      string
	Page        Page
}

// FileMeta describes the active file of an asset.
type FileMeta struct {
	FileURL  string
	FileName string
	MimeType string
	FileSize int64
	Type     model.AssetType
}

type AssetRepo struct{ col *mongo.Collection }

func NewAssetRepo(db *mongo.Database) *AssetRepo { return &AssetRepo{col: db.Collection(colAssets)} }

// Create inserts a and sets its ID.
func (r *AssetRepo) Create(ctx context.Context, a *model.Asset) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.PreviousVersions == nil {
		a.PreviousVersions = []model.AssetVersion{}
	}
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *AssetRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Asset, error) {
	return findOne[model.Asset](ctx, r.col, bson.M{"_id": id})
}

// UpdateMeta rewrites name, description and tags.
func (r *AssetRepo) UpdateMeta(ctx context.Context, a *model.Asset) error {
	res, err := r.col.UpdateByID(ctx, a.ID, bson.M{"$set": bson.M{
		"name":        a.Name,
		"description": a.Description,
		"tags":        a.Tags,
		"updatedAt":   a.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	return mustAffect(res.MatchedCount, nil)
}

// PushVersion archives prev and installs file as version expected+1. The
// write only applies while the stored version still equals expected; a lost
// race yields ErrConflict.
func (r *AssetRepo) PushVersion(ctx context.Context, id primitive.ObjectID, expected int, prev model.AssetVersion, file FileMeta, now time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		atVersion(id, expected),
		bson.M{
			"$push": bson.M{"previousVersions": prev},
			"$set": bson.M{
				"version":    expected + 1,
				"fileUrl":    file.FileURL,
				"fileName":   file.FileName,
				"mimeType":   file.MimeType,
				"fileSize":   file.FileSize,
				"type":       file.Type,
				"uploadedAt": now,
				"updatedAt":  now,
			},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *AssetRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	return mustAffect(res.DeletedCount, nil)
}

// DeleteByRequirement removes the assets attached to a requirement and
// returns what was removed so callers can clean up stored files.
func (r *AssetRepo) DeleteByRequirement(ctx context.Context, requirementID primitive.ObjectID) ([]model.Asset, error) {
	return r.deleteWhere(ctx, bson.M{"requirement": requirementID})
}

// DeleteByProject removes every asset of a project.
func (r *AssetRepo) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) ([]model.Asset, error) {
	return r.deleteWhere(ctx, bson.M{"project": projectID})
}

func (r *AssetRepo) deleteWhere(ctx context.Context, filter bson.M) ([]model.Asset, error) {
	assets, err := findAll[model.Asset](ctx, r.col, filter)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return assets, nil
	}
	ids := make([]primitive.ObjectID, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	if _, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return assets, nil
}

// List returns assets newest first.
func (r *AssetRepo) List(ctx context.Context, f AssetFilter) ([]model.Asset, int64, error) {
	filter := and(scopeFilter(f.Scope, "project", "uploadedBy"), eqIf("type", f.Type))
	if f.Project != nil {
		filter = and(filter, bson.M{"project": *f.Project})
	}
	if f.Requirement != nil {
		filter = and(filter, bson.M{"requirement": *f.Requirement})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		filter = and(filter, bson.M{"$or": textOr(s, "name", "description", "fileName", "tags")})
	}
	return findPage[model.Asset](ctx, r.col, filter, f.Page, newestFirst)
}

// Count counts scoped assets.
func (r *AssetRepo) Count(ctx context.Context, s Scope) (int64, error) {
	return r.col.CountDocuments(ctx, and(scopeFilter(s, "project", "uploadedBy")))
}

// Search matches name, description and tags. Status and priority filters do
// not apply to assets.
func (r *AssetRepo) Search(ctx context.Context, q SearchQuery) ([]model.Asset, error) {
	filter := and(scopeFilter(q.Scope, "project", "uploadedBy"),
		bson.M{"$or": textOr(q.Pattern, "name", "description", "fileName", "tags")})
	return findAll[model.Asset](ctx, r.col, filter, findOptions(Page{Limit: q.Limit}, newestFirst))
}

// atVersion matches asset id only while it is still at version expected.
func atVersion(id primitive.ObjectID, expected int) bson.M {
	return bson.M{"_id": id, "version": expected}
}
