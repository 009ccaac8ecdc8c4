package store

import (
	"io"

	"github.com/ndbkit/ndb/internal/wal"
)

// ReplayFunc handles one recovered WAL entry. Returning an error aborts
// recovery.
type ReplayFunc func(entry *wal.Entry) error

// ReplayWAL reads every entry across the log's segment files in order,
// invoking fn for each, and returns the highest LSN observed. It is a
// no-op (returning 0, nil) if the engine has no segments yet or runs
// in in-memory mode. The model-aware recovery orchestration (which
// table each entry's payload belongs to, how to rebuild secondary
// indices) lives above this package — ReplayWAL only guarantees
// ordered, checksum-verified delivery of raw entries.
func (e *Engine) ReplayWAL(fn ReplayFunc) (uint64, error) {
	if e.dir == "" {
		return 0, nil
	}

	reader, err := wal.NewSegmentReader(e.WALDir())
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	var maxLSN uint64
	for {
		entry, err := reader.ReadEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			return maxLSN, err
		}

		if entry.Header.LSN > maxLSN {
			maxLSN = entry.Header.LSN
		}

		if err := fn(entry); err != nil {
			wal.ReleaseEntry(entry)
			return maxLSN, err
		}
		wal.ReleaseEntry(entry)
	}

	return maxLSN, nil
}
