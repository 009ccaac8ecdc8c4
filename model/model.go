// Package model describes the metadata that identifies a declared record
// type's primary and secondary keys: a table planner keyed by
// (model_id, model_version, key_name) rather than a single flat table
// registry, so a model can carry multiple coexisting versions.
package model

import "fmt"

// KeyOptions carries the four permitted secondary-key shapes: default,
// unique, optional, unique+optional.
type KeyOptions struct {
	Unique   bool
	Optional bool
}

// PrimaryKeyOptions is the zero-value options type for primary keys: a
// primary key is always mandatory and unique, so it carries no options of
// its own (equivalent to Rust's `()`role here).
type PrimaryKeyOptions struct{}

// KeyDefinition identifies one index of a model: the model that owns it,
// the model's version, the key's name, and (for secondary keys) its
// options. Equality and identity are defined over UniqueTableName alone.
type KeyDefinition[O any] struct {
	ModelID            uint32
	ModelVersion        uint32
	Name                string
	AcceptedTypeNames   []string
	Options             O
}

// UniqueTableName returns the deterministic table name
// "{model_id}_{model_version}_{name}".
func (kd KeyDefinition[O]) UniqueTableName() string {
	return fmt.Sprintf("%d_%d_%s", kd.ModelID, kd.ModelVersion, kd.Name)
}

// AcceptsType reports whether typeName is one of this key's accepted
// runtime type names, the basis of the MismatchedKeyType check.
func (kd KeyDefinition[O]) AcceptsType(typeName string) bool {
	for _, t := range kd.AcceptedTypeNames {
		if t == typeName {
			return true
		}
	}
	return false
}

// PrimaryKeyDefinition is a KeyDefinition with no secondary-key options.
type PrimaryKeyDefinition = KeyDefinition[PrimaryKeyOptions]

// SecondaryKeyDefinition is a KeyDefinition carrying unique/optional
// options.
type SecondaryKeyDefinition = KeyDefinition[KeyOptions]

// Model is the metadata for one declared record type: a mandatory,
// unique primary key plus zero or more secondary keys.
type Model struct {
	Name          string
	PrimaryKey    PrimaryKeyDefinition
	SecondaryKeys map[string]SecondaryKeyDefinition // keyed by key name
}

// SecondaryKeyNames returns the secondary key names in a stable (sorted)
// order, used wherever deterministic iteration matters (table creation,
// refresh).
func (m Model) SecondaryKeyNames() []string {
	names := make([]string, 0, len(m.SecondaryKeys))
	for name := range m.SecondaryKeys {
		names = append(names, name)
	}
	// simple insertion sort: the set is tiny (handful of secondary keys)
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}
