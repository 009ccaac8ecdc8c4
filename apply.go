package ndb

import (
	"bytes"

	"github.com/ndbkit/ndb/internal/wal"
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/ndberr"
)

// commitRecord is the single choke point every mutation passes through:
// it allocates the next LSN, appends the WAL entry, and applies the
// change to the in-memory tables and heap. Recovery replays through
// applyWALRecord directly (the entry is already durable, so it must not
// be re-logged).
func (db *Database) commitRecord(entryType uint8, rec walRecord) (uint64, error) {
	lsn := db.engine.NextLSN()

	payload, err := encodeWALRecord(rec)
	if err != nil {
		return 0, &ndberr.Engine{Cause: err}
	}
	if err := db.engine.AppendWAL(entryType, lsn, payload); err != nil {
		return 0, &ndberr.Engine{Cause: err}
	}
	db.metrics.WALBytesWritten.Add(float64(len(payload)))

	if err := db.applyWALRecord(entryType, rec, lsn); err != nil {
		return 0, &ndberr.Engine{Cause: err}
	}
	return lsn, nil
}

// applyWALRecord mutates the primary table's heap/tree and every
// secondary table named in rec, per entryType. It is the one place both
// the live write path and WAL replay funnel through, so the two can
// never drift apart.
func (db *Database) applyWALRecord(entryType uint8, rec walRecord, lsn uint64) error {
	pt, ok := db.engine.Table(rec.PrimaryTable)
	if !ok {
		return nil // model no longer declared in this binary; skip
	}

	pk := key.Key(rec.PrimaryKey)
	hm := db.engine.Heap(pt.Name)

	for _, s := range rec.Removed {
		removeSecondary(db, s, pk)
	}

	if entryType == wal.EntryDelete {
		if offset, exists := pt.Primary().Get(pk); exists && hm != nil {
			if err := hm.Delete(offset, lsn); err != nil {
				return err
			}
		}
		pt.Primary().Remove(pk)
		return nil
	}

	var prevOffset int64 = -1
	if offset, exists := pt.Primary().Get(pk); exists {
		prevOffset = offset
	}
	if hm != nil {
		offset, err := hm.Write(rec.Body, lsn, prevOffset)
		if err != nil {
			return err
		}
		if err := pt.Primary().Replace(pk, offset); err != nil {
			return err
		}
	}

	for _, s := range rec.Added {
		if err := addSecondary(db, s, pk); err != nil {
			return err
		}
	}
	return nil
}

func addSecondary(db *Database, s walSecondary, pk key.Key) error {
	t, ok := db.engine.Table(s.Table)
	if !ok {
		return nil
	}
	if s.Unique {
		return t.Unique().Replace(key.Key(s.Key), pk)
	}
	return t.Multi().AddMember(key.Key(s.Key), pk)
}

func removeSecondary(db *Database, s walSecondary, pk key.Key) {
	t, ok := db.engine.Table(s.Table)
	if !ok {
		return
	}
	if s.Unique {
		if existing, ok := t.Unique().Get(key.Key(s.Key)); ok && bytes.Equal(existing, pk) {
			t.Unique().Remove(key.Key(s.Key))
		}
		return
	}
	t.Multi().RemoveMember(key.Key(s.Key), pk)
}
