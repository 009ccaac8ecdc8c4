package ndb

import (
	"github.com/ndbkit/ndb/internal/wal"
	"github.com/ndbkit/ndb/ndberr"
)

// recover replays every WAL entry whose LSN is past afterLSN (the
// highest LSN already reflected in the loaded checkpoints) and advances
// the engine's LSN tracker past the highest LSN observed, so newly
// allocated LSNs never collide with recovered ones.
func (db *Database) recover(afterLSN uint64) error {
	maxLSN, err := db.engine.ReplayWAL(func(entry *wal.Entry) error {
		if entry.Header.LSN <= afterLSN {
			return nil
		}
		rec, err := decodeWALRecord(entry.Payload)
		if err != nil {
			return err
		}
		return db.applyWALRecord(entry.Header.EntryType, rec, entry.Header.LSN)
	})
	if err != nil {
		return &ndberr.Engine{Cause: err}
	}
	if maxLSN > afterLSN {
		db.engine.LSN.Set(maxLSN)
	} else {
		db.engine.LSN.Set(afterLSN)
	}
	return nil
}
