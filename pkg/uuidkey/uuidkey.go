// Package uuidkey adapts github.com/google/uuid into the key.ToKey
// interface, letting a model declare a UUID-typed primary or secondary
// key the same way it declares a string or integer one.
package uuidkey

import (
	"github.com/google/uuid"

	"github.com/ndbkit/ndb/key"
)

// UUID wraps a uuid.UUID for use as a model key field.
type UUID uuid.UUID

// ToKey encodes the UUID's 16 raw bytes, which sort in the same order as
// the UUID's canonical string form. That order follows creation time
// only for v6/v7 UUIDs; v1 (time_low first) and v4 (random) UUIDs do not
// sort by creation time.
func (k UUID) ToKey() key.Key {
	return key.Bytes(k[:])
}

// TypeName identifies this key's runtime type for MismatchedKeyType
// checks.
func (k UUID) TypeName() string { return "Uuid" }

// New generates a new time-ordered (UUIDv7) key.
func New() (UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return UUID{}, err
	}
	return UUID(id), nil
}

// String returns the UUID's canonical textual form.
func (k UUID) String() string { return uuid.UUID(k).String() }

// Parse decodes s into a UUID key.
func Parse(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	return UUID(id), nil
}
