package store

import (
	"fmt"

	"github.com/ndbkit/ndb/internal/btree"
	"github.com/ndbkit/ndb/key"
)

// Kind distinguishes the three shapes a table's leaf values take.
type Kind int

const (
	// Primary maps the record's primary key to its heap offset.
	Primary Kind = iota
	// UniqueSecondary maps a unique secondary key to the owning record's
	// primary key bytes.
	UniqueSecondary
	// MultiSecondary maps a non-unique secondary key to the set of
	// primary keys currently sharing that value.
	MultiSecondary
)

// Table is one named B+Tree within the engine: either the primary table
// of a model (Kind == Primary), or one of its secondary indices.
type Table struct {
	Name string
	Kind Kind

	primary *btree.Tree[int64]
	unique  *btree.Tree[key.Key]
	multi   *btree.Multimap
}

const defaultDegree = 64

// NewPrimaryTable creates a table keyed by primary key, valued by heap
// offset.
func NewPrimaryTable(name string) *Table {
	return &Table{Name: name, Kind: Primary, primary: btree.NewUnique[int64](defaultDegree)}
}

// NewUniqueSecondaryTable creates a table keyed by a unique secondary
// key, valued by the owning record's primary key.
func NewUniqueSecondaryTable(name string) *Table {
	return &Table{Name: name, Kind: UniqueSecondary, unique: btree.NewUnique[key.Key](defaultDegree)}
}

// NewMultiSecondaryTable creates a table keyed by a non-unique secondary
// key, valued by the set of primary keys sharing it.
func NewMultiSecondaryTable(name string) *Table {
	return &Table{Name: name, Kind: MultiSecondary, multi: btree.NewMultimap(defaultDegree)}
}

// Primary returns the underlying primary-key tree; callers must check
// Kind == Primary first.
func (t *Table) Primary() *btree.Tree[int64] { return t.primary }

// Unique returns the underlying unique-secondary tree; callers must
// check Kind == UniqueSecondary first.
func (t *Table) Unique() *btree.Tree[key.Key] { return t.unique }

// Multi returns the underlying multimap; callers must check
// Kind == MultiSecondary first.
func (t *Table) Multi() *btree.Multimap { return t.multi }

func (t *Table) String() string {
	return fmt.Sprintf("table(%s, kind=%d)", t.Name, t.Kind)
}
