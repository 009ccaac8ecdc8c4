package ndb

import (
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/model"
	"github.com/ndbkit/ndb/ndberr"
)

// Collection is the typed handle a caller uses to read and write records
// of one model version: the generic counterpart of a derive-macro-
// generated impl in a language with compile-time reflection. It is
// produced by Register and stays bound to the Database it was opened
// against.
type Collection[T any] struct {
	schema Schema[T]
	model  model.Model
	db     *Database
}

// Register declares schema against b, validating it through the model
// registry's legacy-promotion rules (model.Models.Define), and returns a
// Collection handle usable once the Database has been built.
func Register[T any](b *Builder, schema Schema[T]) (*Collection[T], error) {
	m := schema.toModel()
	if err := b.models.Define(m); err != nil {
		return nil, err
	}

	col := &Collection[T]{schema: schema, model: m}
	b.binders = append(b.binders, func(db *Database) error {
		col.db = db
		return db.ensureTables(m)
	})
	return col, nil
}

// TableName returns the primary table's unique_table_name.
func (c *Collection[T]) TableName() string { return c.model.PrimaryKey.UniqueTableName() }

func (c *Collection[T]) secondaryField(name string) (SecondaryKeyField[T], bool) {
	for _, sk := range c.schema.SecondaryKeys {
		if sk.Name == name {
			return sk, true
		}
	}
	return SecondaryKeyField[T]{}, false
}

// secondaryTableName returns the model-qualified unique_table_name for
// one of c's declared secondary keys.
func (c *Collection[T]) secondaryTableName(name string) (string, bool) {
	def, ok := c.model.SecondaryKeys[name]
	if !ok {
		return "", false
	}
	return def.UniqueTableName(), true
}

// checkType validates k's runtime type name against the accepted list of
// a key field: the MismatchedKeyType check. A key.Key value (the
// generic, already-encoded form) is exempt, matching
// the "generic Key type opts out" rule; any type implementing
// key.CheckTyped and returning false is exempt too.
func checkType(keyName string, accepted []string, got key.ToKey, operation string) error {
	if _, isGeneric := got.(key.Key); isGeneric {
		return nil
	}
	if ct, ok := got.(key.CheckTyped); ok && !ct.CheckType() {
		return nil
	}
	typeName := got.TypeName()
	for _, a := range accepted {
		if a == typeName {
			return nil
		}
	}
	return &ndberr.MismatchedKeyType{KeyName: keyName, Expected: accepted, Got: typeName, Operation: operation}
}
