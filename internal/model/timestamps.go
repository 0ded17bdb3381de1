// Package model defines the documents persisted in MongoDB. Field names in
// bson tags follow the camelCase convention the frontend already consumes.
package model

import "time"

// Timestamps is embedded in every mutable document.
type Timestamps struct {
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Touch stamps UpdatedAt, and CreatedAt when it is still zero. Services call
// it before every write; the repositories never set timestamps themselves.
func (t *Timestamps) Touch(now time.Time) {
	now = now.UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}
