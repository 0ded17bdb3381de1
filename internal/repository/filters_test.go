package repository

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestAnd(t *testing.T) {
	a, b := bson.M{"status": "draft"}, bson.M{"priority": "high"}
	tests := []struct {
		name  string
		conds []bson.M
		want  bson.M
	}{
		{"nothing", nil, bson.M{}},
		{"only empties", []bson.M{nil, {}}, bson.M{}},
		{"single condition is unwrapped", []bson.M{nil, a}, a},
		{"several", []bson.M{a, nil, b}, bson.M{"$and": bson.A{a, b}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := and(tt.conds...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("and() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeFilter(t *testing.T) {
	p1, owner := primitive.NewObjectID(), primitive.NewObjectID()
	tests := []struct {
		name  string
		scope Scope
		owner string
		want  bson.M
	}{
		{"staff sees everything", Scope{All: true, Owner: owner}, "createdBy", nil},
		{
			"no projects still filters",
			Scope{}, "createdBy",
			bson.M{"$or": bson.A{bson.M{"project": bson.M{"$in": []primitive.ObjectID{}}}}},
		},
		{
			"projects or owned",
			Scope{Projects: []primitive.ObjectID{p1}, Owner: owner}, "createdBy",
			bson.M{"$or": bson.A{
				bson.M{"project": bson.M{"$in": []primitive.ObjectID{p1}}},
				bson.M{"createdBy": owner},
			}},
		},
		{
			"owner ignored without owner field",
			Scope{Projects: []primitive.ObjectID{p1}, Owner: owner}, "",
			bson.M{"$or": bson.A{bson.M{"project": bson.M{"$in": []primitive.ObjectID{p1}}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scopeFilter(tt.scope, "project", tt.owner); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("scopeFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqIf(t *testing.T) {
	if got := eqIf("status", "  "); got != nil {
		t.Errorf("blank value = %v, want nil", got)
	}
	if got := eqIf("status", "approved"); !reflect.DeepEqual(got, bson.M{"status": "approved"}) {
		t.Errorf("got %v", got)
	}
}

func TestRegexBuilders(t *testing.T) {
	if got := containsRegex("v1.2 (beta)"); got.Pattern != `v1\.2 \(beta\)` || got.Options != "i" {
		t.Errorf("containsRegex = %+v", got)
	}
	if got := prefixRegex("a*"); got.Pattern != `^a\*` || got.Options != "i" {
		t.Errorf("prefixRegex = %+v", got)
	}
	or := textOr("x", "title", "description")
	if len(or) != 2 || !reflect.DeepEqual(or[1], bson.M{"description": containsRegex("x")}) {
		t.Errorf("textOr = %v", or)
	}
}

func TestRequirementFilterStaff(t *testing.T) {
	got := (&RequirementRepo{}).filter(Scope{All: true}, "pending", "", "technical")
	want := bson.M{"$and": bson.A{bson.M{"status": "pending"}, bson.M{"category": "technical"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter = %v, want %v", got, want)
	}
}

func TestProjectFilterMember(t *testing.T) {
	p := primitive.NewObjectID()
	got := (&ProjectRepo{}).filter(Scope{Projects: []primitive.ObjectID{p}}, "", "high")
	want := bson.M{"$and": bson.A{
		bson.M{"_id": bson.M{"$in": []primitive.ObjectID{p}}},
		bson.M{"priority": "high"},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter = %v, want %v", got, want)
	}
}

func TestUnlinkedFor(t *testing.T) {
	got := unlinkedFor("  Ann@Example.COM ")
	if got["clientInfo.email"] != "ann@example.com" {
		t.Errorf("email = %v", got["clientInfo.email"])
	}
	want := bson.A{bson.M{"client": bson.M{"$exists": false}}, bson.M{"client": nil}}
	if !reflect.DeepEqual(got["$or"], want) {
		t.Errorf("$or = %v", got["$or"])
	}
}

func TestRedeemable(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := bson.M{"tokenHash": "abc", "used": false, "expiresAt": bson.M{"$gt": now}}
	if got := redeemable("abc", now); !reflect.DeepEqual(got, want) {
		t.Errorf("redeemable = %v", got)
	}
}

func TestAtVersion(t *testing.T) {
	id := primitive.NewObjectID()
	if got := atVersion(id, 3); !reflect.DeepEqual(got, bson.M{"_id": id, "version": 3}) {
		t.Errorf("atVersion = %v", got)
	}
}

func TestFindOptions(t *testing.T) {
	o := findOptions(Page{}, newestFirst)
	if o.Skip != nil || o.Limit != nil {
		t.Errorf("zero page set skip/limit: %v %v", o.Skip, o.Limit)
	}
	o = findOptions(Page{Skip: 40, Limit: 20}, newestFirst)
	if o.Skip == nil || *o.Skip != 40 || o.Limit == nil || *o.Limit != 20 {
		t.Errorf("page not applied")
	}
}

func TestErrorMapping(t *testing.T) {
	boom := errors.New("boom")
	if err := mustAffect(0, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("mustAffect(0) = %v", err)
	}
	if err := mustAffect(1, nil); err != nil {
		t.Errorf("mustAffect(1) = %v", err)
	}
	if err := mustAffect(0, boom); !errors.Is(err, boom) {
		t.Errorf("mustAffect passes errors through, got %v", err)
	}

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	if err := dupErr(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("dupErr(11000) = %v", err)
	}
	if err := dupErr(boom); !errors.Is(err, boom) {
		t.Errorf("dupErr(other) = %v", err)
	}
}
