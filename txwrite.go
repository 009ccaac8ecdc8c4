package ndb

import (
	"fmt"

	"github.com/ndbkit/ndb/internal/btree"
	"github.com/ndbkit/ndb/internal/wal"
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/ndberr"
	"github.com/ndbkit/ndb/watch"
)

// decodeCurrent reads the live (non-MVCC-filtered) body at offset in
// the heap backing primaryTable and decodes it as T. The write path
// always reads the tree's current pointer directly: the single active
// writer's own view of a row is always its latest version.
func decodeCurrent[T any](db *Database, primaryTable string, offset int64, targetVersion uint32) (T, error) {
	var zero T
	hm := db.engine.Heap(primaryTable)
	if hm == nil {
		return zero, &ndberr.Engine{Cause: fmt.Errorf("ndb: no heap backing table %q", primaryTable)}
	}
	body, _, err := hm.Read(offset)
	if err != nil {
		return zero, &ndberr.Engine{Cause: err}
	}
	var out T
	if err := db.codec.UpgradeDecode(body, db.converters, targetVersion, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// RW is a read-write transaction context. Only one may be open per
// Database at a time — Database.RW blocks until any prior one calls
// Commit or Rollback, per the single-writer rule. Every mutation takes
// effect immediately against the live tables; Commit's only remaining
// job is publishing the accumulated watch events as one batch, so a
// subscriber never observes a partial transaction.
type RW struct {
	*R
	batch []watch.Event
	done  bool
}

// RW opens a write context, serializing against any other open RW on
// the same Database.
func (db *Database) RW() *RW {
	db.writeMu.Lock()
	r := db.R()
	r.live = true
	return &RW{R: r}
}

// Commit publishes the transaction's accumulated change events and
// releases the writer lock. Safe to call once; a second call is a
// no-op.
func (rw *RW) Commit() error {
	if rw.done {
		return nil
	}
	rw.done = true
	for _, evt := range rw.batch {
		rw.db.bus.Publish(evt)
	}
	rw.R.Close()
	rw.db.writeMu.Unlock()
	return nil
}

// Rollback releases the writer lock without publishing any event.
// Mutations already applied to the live tables are NOT undone: this
// engine applies writes immediately rather than staging them, so
// Rollback's contract is "nobody is told about what happened," not
// "what happened is undone." Call sites that need true rollback
// semantics must not mutate before they are sure, or must issue a
// compensating write.
func (rw *RW) Rollback() {
	if rw.done {
		return
	}
	rw.done = true
	rw.R.Close()
	rw.db.writeMu.Unlock()
}

func (rw *RW) record(evt watch.Event) {
	rw.batch = append(rw.batch, evt)
}

// checkUniqueSecondaries verifies every present unique-secondary entry
// in entries is either unclaimed or already owned by owner (the record
// being written), returning *ndberr.DuplicateKey on the first conflict.
func checkUniqueSecondaries(rw *RW, entries []keyEntry, owner key.Key) error {
	for _, e := range entries {
		if !e.present || !e.def.Options.Unique {
			continue
		}
		st, ok := rw.db.engine.Table(e.def.UniqueTableName())
		if !ok {
			continue
		}
		if existingPK, exists := st.Unique().Get(e.bytes); exists && existingPK.Compare(owner) != 0 {
			return &ndberr.DuplicateKey{KeyName: e.def.Name}
		}
	}
	return nil
}

// Insert adds a new record of col. Fails with *ndberr.DuplicateKey if
// the primary key, or any unique secondary key, is already taken.
func Insert[T any](rw *RW, col *Collection[T], v T) error {
	pk, entries, err := col.schema.flattenChecked(v, "insert")
	if err != nil {
		return err
	}

	pt, ok := rw.db.engine.Table(col.TableName())
	if !ok {
		return &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}
	if _, exists := pt.Primary().Get(pk); exists {
		return &ndberr.DuplicateKey{KeyName: col.schema.PrimaryKey.Name}
	}
	if err := checkUniqueSecondaries(rw, entries, pk); err != nil {
		return err
	}

	body, err := rw.db.codec.Encode(col.schema.ModelID, col.schema.ModelVersion, v)
	if err != nil {
		return &ndberr.Engine{Cause: err}
	}

	rec := walRecord{
		PrimaryTable: col.TableName(),
		PrimaryKey:   []byte(pk),
		Body:         body,
		Added:        presentSecondaries(entries),
	}
	lsn, err := rw.db.commitRecord(wal.EntryInsert, rec)
	if err != nil {
		return err
	}

	rw.record(watch.Event{Table: col.TableName(), Op: watch.OpInsert, PrimaryKey: []byte(pk), SecondaryKeys: secondaryKeyBytes(entries), LSN: lsn})
	rw.db.metrics.Inserts.Inc()
	return nil
}

// Upsert writes v of col regardless of whether its primary key already
// exists, replacing the prior record's secondary-key entries with v's.
func Upsert[T any](rw *RW, col *Collection[T], v T) error {
	pk, entries, err := col.schema.flattenChecked(v, "upsert")
	if err != nil {
		return err
	}

	pt, ok := rw.db.engine.Table(col.TableName())
	if !ok {
		return &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}

	var removed []keyEntry
	offset, exists := pt.Primary().Get(pk)
	if exists {
		old, err := decodeCurrent[T](rw.db, pt.Name, offset, col.schema.ModelVersion)
		if err != nil {
			return err
		}
		_, removed = col.schema.flatten(old)
	}
	if err := checkUniqueSecondaries(rw, entries, pk); err != nil {
		return err
	}

	body, err := rw.db.codec.Encode(col.schema.ModelID, col.schema.ModelVersion, v)
	if err != nil {
		return &ndberr.Engine{Cause: err}
	}

	rec := walRecord{
		PrimaryTable: col.TableName(),
		PrimaryKey:   []byte(pk),
		Body:         body,
		Added:        presentSecondaries(entries),
		Removed:      presentSecondaries(removed),
	}

	entryType := uint8(wal.EntryInsert)
	op := watch.OpInsert
	if exists {
		entryType = wal.EntryUpdate
		op = watch.OpUpdate
	}

	lsn, err := rw.db.commitRecord(entryType, rec)
	if err != nil {
		return err
	}
	rw.record(watch.Event{Table: col.TableName(), Op: op, PrimaryKey: []byte(pk), SecondaryKeys: secondaryKeyBytes(entries), LSN: lsn})
	rw.db.metrics.Updates.Inc()
	return nil
}

// Remove deletes the record matching v's primary key, verifying v's
// secondary keys still match what is stored — the same safeguard
// native_db's remove(item) gives a caller holding a possibly-stale
// copy. Fails with *ndberr.IncorrectInputData if they no longer match.
// If the primary key is already absent, Remove succeeds as a no-op and
// emits no event: a missing key is not an integrity violation, just
// nothing left to do.
func Remove[T any](rw *RW, col *Collection[T], v T) error {
	pk, entries, err := col.schema.flattenChecked(v, "remove")
	if err != nil {
		return err
	}

	pt, ok := rw.db.engine.Table(col.TableName())
	if !ok {
		return &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}
	offset, exists := pt.Primary().Get(pk)
	if !exists {
		return nil
	}

	stored, err := decodeCurrent[T](rw.db, pt.Name, offset, col.schema.ModelVersion)
	if err != nil {
		return err
	}
	_, storedEntries := col.schema.flatten(stored)
	if !entriesMatch(entries, storedEntries) {
		return &ndberr.IncorrectInputData{Reason: "secondary key values of the supplied record no longer match what is stored"}
	}

	rec := walRecord{
		PrimaryTable: col.TableName(),
		PrimaryKey:   []byte(pk),
		Removed:      presentSecondaries(entries),
	}
	lsn, err := rw.db.commitRecord(wal.EntryDelete, rec)
	if err != nil {
		return err
	}
	rw.record(watch.Event{Table: col.TableName(), Op: watch.OpDelete, PrimaryKey: []byte(pk), SecondaryKeys: secondaryKeyBytes(entries), LSN: lsn})
	rw.db.metrics.Removes.Inc()
	return nil
}

// Update replaces old with newV, verifying old still matches what is
// stored (exactly like Remove's safeguard) before writing newV. If
// newV's primary key differs from old's, this is effectively a
// remove-then-insert under one commit.
func Update[T any](rw *RW, col *Collection[T], old, newV T) error {
	if err := Remove(rw, col, old); err != nil {
		return err
	}
	return Insert(rw, col, newV)
}

// AutoUpdate reads the record of col at primary key pk, applies mutate
// to it, and writes the result back — an atomic read-modify-write,
// serialized by the single active RW per Database. If pk is absent,
// AutoUpdate returns found=false without calling mutate or writing
// anything.
func AutoUpdate[T any](rw *RW, col *Collection[T], pk key.ToKey, mutate func(T) (T, error)) (found bool, err error) {
	if err := checkType(col.schema.PrimaryKey.Name, col.schema.PrimaryKey.AcceptedTypeNames, pk, "auto_update"); err != nil {
		return false, err
	}
	pt, ok := rw.db.engine.Table(col.TableName())
	if !ok {
		return false, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}
	offset, exists := pt.Primary().Get(pk.ToKey())
	if !exists {
		return false, nil
	}

	current, err := decodeCurrent[T](rw.db, pt.Name, offset, col.schema.ModelVersion)
	if err != nil {
		return false, err
	}
	next, err := mutate(current)
	if err != nil {
		return false, err
	}
	if err := Update(rw, col, current, next); err != nil {
		return false, err
	}
	return true, nil
}

// DrainPrimary removes every record currently in col's primary table,
// each through Remove, so its secondary entries go with it. Returns the
// number of rows removed.
func DrainPrimary[T any](rw *RW, col *Collection[T]) (int, error) {
	pt, ok := rw.db.engine.Table(col.TableName())
	if !ok {
		return 0, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}

	// Collect every current row before removing any of them: Remove
	// mutates the same tree the cursor walks, and the cursor's lock
	// coupling does not tolerate structural changes behind it mid-scan.
	var rows []T
	cur := btree.NewCursor(pt.Primary())
	cur.Seek(nil)
	for cur.Valid() {
		v, err := decodeCurrent[T](rw.db, pt.Name, cur.Value(), col.schema.ModelVersion)
		if err != nil {
			cur.Close()
			return 0, err
		}
		rows = append(rows, v)
		cur.Next()
	}
	cur.Close()

	for _, v := range rows {
		if err := Remove(rw, col, v); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}
