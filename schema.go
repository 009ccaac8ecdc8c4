package ndb

import (
	"bytes"

	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/model"
)

// KeyField describes how to pull one index's key value out of a record of
// type T. It is the Go stand-in for the derive-macro-generated trait
// methods a language binding would otherwise synthesize: the caller
// writes the extractor once, by hand, when declaring a Schema.
type KeyField[T any] struct {
	Name              string
	AcceptedTypeNames []string
	Extract           func(T) key.ToKey
}

// SecondaryKeyField is a KeyField plus the unique/optional options a
// secondary key may carry. ExtractOptional is used instead of Extract
// when Optional is true; it reports whether a value is present.
type SecondaryKeyField[T any] struct {
	KeyField[T]
	Unique          bool
	Optional        bool
	ExtractOptional func(T) (key.ToKey, bool)
}

// Schema binds a Go type T to its model identity and key extractors. One
// Schema is registered per model version via Builder.Register.
type Schema[T any] struct {
	ModelID      uint32
	ModelVersion uint32
	PrimaryKey   KeyField[T]
	SecondaryKeys []SecondaryKeyField[T]
}

// toModel converts a Schema's static declaration into the model.Model
// metadata the registry and table planner need.
func (s Schema[T]) toModel() model.Model {
	m := model.Model{
		PrimaryKey: model.PrimaryKeyDefinition{
			ModelID:           s.ModelID,
			ModelVersion:      s.ModelVersion,
			Name:              s.PrimaryKey.Name,
			AcceptedTypeNames: s.PrimaryKey.AcceptedTypeNames,
		},
		SecondaryKeys: make(map[string]model.SecondaryKeyDefinition, len(s.SecondaryKeys)),
	}
	for _, sk := range s.SecondaryKeys {
		m.SecondaryKeys[sk.Name] = model.SecondaryKeyDefinition{
			ModelID:           s.ModelID,
			ModelVersion:      s.ModelVersion,
			Name:              sk.Name,
			AcceptedTypeNames: sk.AcceptedTypeNames,
			Options:           model.KeyOptions{Unique: sk.Unique, Optional: sk.Optional},
		}
	}
	return m
}

// keyEntry is one secondary key's computed bytes for a record, or the
// absence of one for an optional key with no value.
type keyEntry struct {
	def     model.SecondaryKeyDefinition
	present bool
	bytes   key.Key
}

// flatten computes the primary key bytes and every secondary key entry
// for v.
func (s Schema[T]) flatten(v T) (key.Key, []keyEntry) {
	pk := s.PrimaryKey.Extract(v).ToKey()

	m := s.toModel()
	entries := make([]keyEntry, 0, len(s.SecondaryKeys))
	for _, sk := range s.SecondaryKeys {
		def := m.SecondaryKeys[sk.Name]
		if sk.Optional {
			v, ok := sk.ExtractOptional(v)
			if !ok {
				entries = append(entries, keyEntry{def: def, present: false})
				continue
			}
			entries = append(entries, keyEntry{def: def, present: true, bytes: v.ToKey()})
			continue
		}
		entries = append(entries, keyEntry{def: def, present: true, bytes: sk.Extract(v).ToKey()})
	}
	return pk, entries
}

// flattenChecked is flatten plus the MismatchedKeyType validation every
// write path must perform before touching any table: a type error must
// never leave a partially-applied mutation behind.
func (s Schema[T]) flattenChecked(v T, operation string) (key.Key, []keyEntry, error) {
	pkVal := s.PrimaryKey.Extract(v)
	if err := checkType(s.PrimaryKey.Name, s.PrimaryKey.AcceptedTypeNames, pkVal, operation); err != nil {
		return nil, nil, err
	}
	pk := pkVal.ToKey()

	m := s.toModel()
	entries := make([]keyEntry, 0, len(s.SecondaryKeys))
	for _, sk := range s.SecondaryKeys {
		def := m.SecondaryKeys[sk.Name]
		if sk.Optional {
			val, ok := sk.ExtractOptional(v)
			if !ok {
				entries = append(entries, keyEntry{def: def, present: false})
				continue
			}
			if err := checkType(sk.Name, sk.AcceptedTypeNames, val, operation); err != nil {
				return nil, nil, err
			}
			entries = append(entries, keyEntry{def: def, present: true, bytes: val.ToKey()})
			continue
		}
		val := sk.Extract(v)
		if err := checkType(sk.Name, sk.AcceptedTypeNames, val, operation); err != nil {
			return nil, nil, err
		}
		entries = append(entries, keyEntry{def: def, present: true, bytes: val.ToKey()})
	}
	return pk, entries, nil
}

// entriesMatch reports whether two flattened secondary-key entry sets
// are identical, used by remove and update to verify a caller's record
// still matches what is stored before mutating it.
func entriesMatch(a, b []keyEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].present != b[i].present {
			return false
		}
		if a[i].present && !bytes.Equal(a[i].bytes, b[i].bytes) {
			return false
		}
	}
	return true
}
