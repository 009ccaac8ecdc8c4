package ndb

import (
	"github.com/ndbkit/ndb/internal/btree"
	"github.com/ndbkit/ndb/internal/store"
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/ndberr"
)

// KeysAll returns every primary key currently in col's primary table, in
// key order.
func KeysAll[T any](r *R, col *Collection[T]) ([]key.Key, error) {
	return KeysPrimaryRange(r, col, key.Full())
}

// KeysPrimaryRange returns, in key order, every primary key of col
// falling within kr.
func KeysPrimaryRange[T any](r *R, col *Collection[T], kr key.KeyRange) ([]key.Key, error) {
	pt, ok := r.db.engine.Table(col.TableName())
	if !ok {
		return nil, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}
	return scanTreeKeys(pt.Primary(), kr), nil
}

// KeysPrimaryStartWith returns, in key order, every primary key of col
// whose encoding starts with prefix.
func KeysPrimaryStartWith[T any](r *R, col *Collection[T], prefix key.Key) ([]key.Key, error) {
	pt, ok := r.db.engine.Table(col.TableName())
	if !ok {
		return nil, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}
	return scanTreePrefix(pt.Primary(), prefix), nil
}

// KeysSecondaryRange returns the primary keys of every record of col
// whose named secondary key falls within kr, de-duplicated and in
// (secondary key, primary key) order — the order the secondary index is
// walked in, not primary-key order.
func KeysSecondaryRange[T any](r *R, col *Collection[T], keyName string, kr key.KeyRange) ([]key.Key, error) {
	tableName, ok := col.secondaryTableName(keyName)
	if !ok {
		return nil, &ndberr.TableDefinitionNotFound{TableName: keyName}
	}
	st, ok := r.db.engine.Table(tableName)
	if !ok {
		return nil, &ndberr.TableDefinitionNotFound{TableName: tableName}
	}
	return scanSecondaryTableKeys(st, kr), nil
}

// KeysSecondaryStartWith is KeysSecondaryRange restricted to secondary
// keys whose encoding starts with prefix.
func KeysSecondaryStartWith[T any](r *R, col *Collection[T], keyName string, prefix key.Key) ([]key.Key, error) {
	tableName, ok := col.secondaryTableName(keyName)
	if !ok {
		return nil, &ndberr.TableDefinitionNotFound{TableName: keyName}
	}
	st, ok := r.db.engine.Table(tableName)
	if !ok {
		return nil, &ndberr.TableDefinitionNotFound{TableName: tableName}
	}
	return scanSecondaryTablePrefix(st, prefix), nil
}

// scanTreeKeys walks a primary-keyed tree's cursor across kr, collecting
// every key it visits.
func scanTreeKeys(tree *btree.Tree[int64], kr key.KeyRange) []key.Key {
	var out []key.Key
	cur := btree.NewCursor(tree)
	cur.Seek(kr.SeekStart())
	for cur.Valid() {
		k := cur.Key()
		if !kr.ContainsUpper(k) {
			break
		}
		if kr.ContainsLower(k) {
			out = append(out, k.Clone())
		}
		cur.Next()
	}
	cur.Close()
	return out
}

func scanTreePrefix(tree *btree.Tree[int64], prefix key.Key) []key.Key {
	var out []key.Key
	cur := btree.NewCursor(tree)
	cur.Seek(prefix)
	for cur.Valid() {
		k := cur.Key()
		if !k.HasPrefix(prefix) {
			break
		}
		out = append(out, k.Clone())
		cur.Next()
	}
	cur.Close()
	return out
}

// scanSecondaryTableKeys walks a secondary table (unique or multi)
// across kr and flattens its values into a de-duplicated list of primary
// keys, in the (secondary, primary) order the walk visits them.
func scanSecondaryTableKeys(st *store.Table, kr key.KeyRange) []key.Key {
	var out []key.Key
	switch st.Kind {
	case store.UniqueSecondary:
		cur := btree.NewCursor(st.Unique())
		cur.Seek(kr.SeekStart())
		for cur.Valid() {
			k := cur.Key()
			if !kr.ContainsUpper(k) {
				break
			}
			if kr.ContainsLower(k) {
				out = append(out, cur.Value().Clone())
			}
			cur.Next()
		}
		cur.Close()
	case store.MultiSecondary:
		tree := st.Multi().Tree()
		cur := btree.NewCursor(tree)
		cur.Seek(kr.SeekStart())
		for cur.Valid() {
			k := cur.Key()
			if !kr.ContainsUpper(k) {
				break
			}
			if kr.ContainsLower(k) {
				for _, pk := range cur.Value().Keys() {
					out = append(out, pk.Clone())
				}
			}
			cur.Next()
		}
		cur.Close()
	}
	return dedupKeepOrder(out)
}

func scanSecondaryTablePrefix(st *store.Table, prefix key.Key) []key.Key {
	var out []key.Key
	switch st.Kind {
	case store.UniqueSecondary:
		cur := btree.NewCursor(st.Unique())
		cur.Seek(prefix)
		for cur.Valid() {
			k := cur.Key()
			if !k.HasPrefix(prefix) {
				break
			}
			out = append(out, cur.Value().Clone())
			cur.Next()
		}
		cur.Close()
	case store.MultiSecondary:
		tree := st.Multi().Tree()
		cur := btree.NewCursor(tree)
		cur.Seek(prefix)
		for cur.Valid() {
			k := cur.Key()
			if !k.HasPrefix(prefix) {
				break
			}
			for _, pk := range cur.Value().Keys() {
				out = append(out, pk.Clone())
			}
			cur.Next()
		}
		cur.Close()
	}
	return dedupKeepOrder(out)
}

// dedupKeepOrder removes duplicate keys from ks while preserving the
// order they were visited in — a secondary scan visits in (secondary,
// primary) order, not primary-key order, so deduplication must not
// re-sort the result.
func dedupKeepOrder(ks []key.Key) []key.Key {
	if len(ks) < 2 {
		return ks
	}
	seen := make(map[string]struct{}, len(ks))
	out := ks[:0]
	for _, k := range ks {
		sk := string(k)
		if _, ok := seen[sk]; ok {
			continue
		}
		seen[sk] = struct{}{}
		out = append(out, k)
	}
	return out
}

// And intersects any number of primary-key sets. The result preserves
// the order of the first operand, a: the other operands are only
// consulted as membership sets, never used to drive iteration order,
// so And(a, b) and And(b, a) can return the same keys in different
// orders — callers pass operands in the order they want the result in.
func And(sets ...[]key.Key) []key.Key {
	sets = nonEmptySets(sets)
	if len(sets) == 0 {
		return nil
	}
	if len(sets) == 1 {
		return sets[0]
	}

	rest := make([]map[string]struct{}, len(sets)-1)
	for i, s := range sets[1:] {
		m := make(map[string]struct{}, len(s))
		for _, k := range s {
			m[string(k)] = struct{}{}
		}
		rest[i] = m
	}

	var out []key.Key
	for _, k := range sets[0] {
		if inAllSets(k, rest) {
			out = append(out, k)
		}
	}
	return out
}

func inAllSets(k key.Key, sets []map[string]struct{}) bool {
	sk := string(k)
	for _, s := range sets {
		if _, ok := s[sk]; !ok {
			return false
		}
	}
	return true
}

// Or unions any number of primary-key sets, de-duplicating: every item
// of the first set, in its order, then every item of the second set not
// already contributed, in its order, and so on. Every item of every set
// is visited once, so the cost scales with the sum of the sets' sizes.
func Or(sets ...[]key.Key) []key.Key {
	seen := make(map[string]struct{})
	var out []key.Key
	for _, s := range sets {
		for _, k := range s {
			sk := string(k)
			if _, ok := seen[sk]; ok {
				continue
			}
			seen[sk] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

func nonEmptySets(sets [][]key.Key) [][]key.Key {
	out := make([][]key.Key, 0, len(sets))
	for _, s := range sets {
		if len(s) == 0 {
			return nil // an empty operand makes the whole intersection empty
		}
		out = append(out, s)
	}
	return out
}

// Materialize decodes the record at each primary key in pks, skipping
// any that no longer exist (a race between the scan and a concurrent
// writer, or a dangling reference under development).
func Materialize[T any](r *R, col *Collection[T], pks []key.Key) ([]T, error) {
	out := make([]T, 0, len(pks))
	for _, pk := range pks {
		v, found, err := GetPrimary[T](r, col, pk)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, v)
		}
	}
	return out, nil
}

// ScanAll returns every record currently in col.
func ScanAll[T any](r *R, col *Collection[T]) ([]T, error) {
	pks, err := KeysAll(r, col)
	if err != nil {
		return nil, err
	}
	return Materialize(r, col, pks)
}

// ScanPrimaryRange returns every record of col whose primary key falls
// within kr.
func ScanPrimaryRange[T any](r *R, col *Collection[T], kr key.KeyRange) ([]T, error) {
	pks, err := KeysPrimaryRange(r, col, kr)
	if err != nil {
		return nil, err
	}
	return Materialize(r, col, pks)
}

// ScanPrimaryStartWith returns every record of col whose primary key
// starts with prefix.
func ScanPrimaryStartWith[T any](r *R, col *Collection[T], prefix key.Key) ([]T, error) {
	pks, err := KeysPrimaryStartWith(r, col, prefix)
	if err != nil {
		return nil, err
	}
	return Materialize(r, col, pks)
}

// ScanSecondaryRange returns every record of col whose named secondary
// key falls within kr.
func ScanSecondaryRange[T any](r *R, col *Collection[T], keyName string, kr key.KeyRange) ([]T, error) {
	pks, err := KeysSecondaryRange(r, col, keyName, kr)
	if err != nil {
		return nil, err
	}
	return Materialize(r, col, pks)
}

// ScanSecondaryStartWith returns every record of col whose named
// secondary key starts with prefix.
func ScanSecondaryStartWith[T any](r *R, col *Collection[T], keyName string, prefix key.Key) ([]T, error) {
	pks, err := KeysSecondaryStartWith(r, col, keyName, prefix)
	if err != nil {
		return nil, err
	}
	return Materialize(r, col, pks)
}
