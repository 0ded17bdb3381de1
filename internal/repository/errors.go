// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers to distinguish
// between different failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when no document matches an id or filter.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique index rejects a write, e.g. a
// second user with the same email.
var ErrDuplicate = errors.New("duplicate key")

// ErrConflict is returned when an optimistic write loses against a
// concurrent update, such as two uploads racing on the same asset version.
var ErrConflict = errors.New("conflict")
