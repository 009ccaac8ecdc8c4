package ndb

import (
	"github.com/ndbkit/ndb/internal/heap"
	"github.com/ndbkit/ndb/internal/store"
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/ndberr"
)

// R is a read-only, snapshot-isolated transaction context: every lookup
// through it sees a consistent point-in-time view, pinned at the moment
// R was opened, for as long as it stays open.
type R struct {
	db  *Database
	txn *store.ReadTxn

	// live marks the embedded read context of an open RW: every read
	// re-pins the snapshot to the engine's current LSN first, giving the
	// writer a read-committed view of its own uncommitted writes.
	// Without it a writer could never see its own writes until it closed
	// and reopened a transaction.
	live bool
}

// R opens a new read context pinned at the database's current LSN.
func (db *Database) R() *R {
	return &R{db: db, txn: db.engine.BeginRead()}
}

func (r *R) refreshIfLive() {
	if r.live {
		r.txn.SnapshotLSN = r.db.engine.LSN.Current()
	}
}

// Close releases the snapshot, letting vacuum reclaim versions no older
// reader still needs.
func (r *R) Close() {
	r.txn.Close()
}

// readVisible walks a heap version chain starting at offset, returning
// the body of the newest version created at or before the transaction's
// snapshot LSN. A version created after the snapshot is invisible even
// though it is the tree's current pointer; this is how a long-lived
// reader keeps seeing a consistent record across a concurrent update.
func readVisible(hm *heap.Manager, offset int64, txn *store.ReadTxn) ([]byte, bool, error) {
	for offset != -1 {
		body, header, err := hm.Read(offset)
		if err != nil {
			return nil, false, err
		}
		if txn.IsVisible(header.CreateLSN) {
			return body, true, nil
		}
		offset = header.PrevOffset
	}
	return nil, false, nil
}

// GetPrimary looks up a record of col by its primary key.
func GetPrimary[T any](r *R, col *Collection[T], k key.ToKey) (T, bool, error) {
	var zero T
	if err := checkType(col.schema.PrimaryKey.Name, col.schema.PrimaryKey.AcceptedTypeNames, k, "get"); err != nil {
		return zero, false, err
	}
	r.refreshIfLive()

	pt, ok := r.db.engine.Table(col.TableName())
	if !ok {
		return zero, false, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}

	offset, found := pt.Primary().Get(k.ToKey())
	if !found {
		return zero, false, nil
	}

	hm := r.db.engine.Heap(pt.Name)
	if hm == nil {
		return zero, false, nil
	}
	body, found, err := readVisible(hm, offset, r.txn)
	if err != nil {
		return zero, false, &ndberr.Engine{Cause: err}
	}
	if !found {
		return zero, false, nil
	}

	var out T
	if err := r.db.codec.UpgradeDecode(body, r.db.converters, col.schema.ModelVersion, &out); err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// GetSecondary looks up a record of col by the value of one of its
// unique secondary keys. Returns *ndberr.SecondaryKeyConstraintMismatch
// if keyName does not name a unique secondary key.
func GetSecondary[T any](r *R, col *Collection[T], keyName string, k key.ToKey) (T, bool, error) {
	var zero T
	sk, ok := col.secondaryField(keyName)
	if !ok {
		return zero, false, &ndberr.TableDefinitionNotFound{TableName: keyName}
	}
	if !sk.Unique {
		return zero, false, &ndberr.SecondaryKeyConstraintMismatch{KeyName: keyName}
	}
	if err := checkType(keyName, sk.AcceptedTypeNames, k, "get"); err != nil {
		return zero, false, err
	}

	tableName, _ := col.secondaryTableName(keyName)
	st, ok := r.db.engine.Table(tableName)
	if !ok {
		return zero, false, &ndberr.TableDefinitionNotFound{TableName: tableName}
	}

	pk, found := st.Unique().Get(k.ToKey())
	if !found {
		return zero, false, nil
	}
	v, found, err := GetPrimary[T](r, col, pk)
	if err != nil {
		return zero, false, err
	}
	if !found {
		// The secondary index points at a primary key the primary table no
		// longer has: an integrity violation, not an ordinary miss.
		return zero, false, &ndberr.PrimaryKeyNotFound{PrimaryKey: string(pk)}
	}
	return v, true, nil
}

// LenPrimary returns the number of live records in col's primary table,
// as seen by the engine's current state (not snapshot-filtered: it is a
// diagnostic count, not a transactional read).
func LenPrimary[T any](r *R, col *Collection[T]) (int, error) {
	pt, ok := r.db.engine.Table(col.TableName())
	if !ok {
		return 0, &ndberr.TableDefinitionNotFound{TableName: col.TableName()}
	}
	return pt.Primary().Len(), nil
}
