// Package store is the transactional, MVCC key-value engine underneath
// the model-aware collection API: it owns the write-ahead log, the
// segmented record heap, every table's B+Tree, and the recovery and
// vacuum machinery that keep them consistent. It has no notion of
// models, codecs, or multi-index records — those live one layer up.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ndbkit/ndb/internal/checkpoint"
	"github.com/ndbkit/ndb/internal/heap"
	"github.com/ndbkit/ndb/internal/wal"
)

// Engine owns every table and the durability machinery (WAL, heap,
// checkpoints) backing them.
type Engine struct {
	dir string

	mu     sync.RWMutex
	tables map[string]*Table
	heaps  map[string]*heap.Manager // keyed by the owning primary table's name

	WAL        *wal.Writer // nil in in-memory mode
	Checkpoint *checkpoint.Manager
	LSN        *LSNTracker
	Txns       *TxRegistry
}

// Open creates or reopens an Engine rooted at dir. If dir is empty, the
// engine opens no WAL and no checkpoint manager, and primary tables get
// no backing heap; a memory-only database passes a scratch directory
// instead (see Builder.CreateInMemory).
// walSegmentBytes, if non-zero, overrides the default size at which
// the log rotates to a new segment file.
func Open(dir string, syncPolicy wal.SyncPolicy, walSegmentBytes int64) (*Engine, error) {
	e := &Engine{
		dir:    dir,
		tables: make(map[string]*Table),
		heaps:  make(map[string]*heap.Manager),
		LSN:    NewLSNTracker(0),
		Txns:   NewTxRegistry(),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}

		walDir := filepath.Join(dir, "wal")
		walOpts := wal.DefaultOptions()
		walOpts.DirPath = walDir
		walOpts.SyncPolicy = syncPolicy
		if walSegmentBytes > 0 {
			walOpts.SegmentBytes = walSegmentBytes
		}

		w, err := wal.NewWriter(walDir, walOpts)
		if err != nil {
			return nil, err
		}
		e.WAL = w
		e.Checkpoint = checkpoint.NewManager(filepath.Join(dir, "checkpoints"))
	}

	return e, nil
}

// heapPath returns the on-disk path prefix for the heap belonging to
// primaryTable.
func (e *Engine) heapPath(primaryTable string) string {
	return filepath.Join(e.dir, "data.heap_"+primaryTable)
}

// EnsurePrimaryTable returns the primary table named name, creating it
// (and its backing heap, if persistent) if it does not exist yet.
func (e *Engine) EnsurePrimaryTable(name string) (*Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.tables[name]; ok {
		return t, nil
	}

	t := NewPrimaryTable(name)
	e.tables[name] = t

	if e.dir != "" {
		hm, err := heap.NewManager(e.heapPath(name))
		if err != nil {
			return nil, fmt.Errorf("store: open heap for %s: %w", name, err)
		}
		e.heaps[name] = hm
	}

	return t, nil
}

// EnsureUniqueSecondaryTable returns (creating if absent) the unique
// secondary table named name.
func (e *Engine) EnsureUniqueSecondaryTable(name string) *Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[name]; ok {
		return t
	}
	t := NewUniqueSecondaryTable(name)
	e.tables[name] = t
	return t
}

// EnsureMultiSecondaryTable returns (creating if absent) the non-unique
// secondary table named name.
func (e *Engine) EnsureMultiSecondaryTable(name string) *Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[name]; ok {
		return t
	}
	t := NewMultiSecondaryTable(name)
	e.tables[name] = t
	return t
}

// Table returns the named table, or false if it has not been created.
func (e *Engine) Table(name string) (*Table, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	return t, ok
}

// Heap returns the heap backing the given primary table name, or nil in
// in-memory mode.
func (e *Engine) Heap(primaryTable string) *heap.Manager {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.heaps[primaryTable]
}

// Tables returns every registered table name.
func (e *Engine) Tables() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tables))
	for n := range e.tables {
		names = append(names, n)
	}
	return names
}

// BeginRead opens a snapshot-isolated read transaction pinned at the
// engine's current LSN.
func (e *Engine) BeginRead() *ReadTxn {
	return e.Txns.Begin(e.LSN.Current())
}

// NextLSN allocates the next Log Sequence Number for a write.
func (e *Engine) NextLSN() uint64 { return e.LSN.Next() }

// AppendWAL writes one entry to the log, a no-op in in-memory mode.
func (e *Engine) AppendWAL(entryType uint8, lsn uint64, payload []byte) error {
	if e.WAL == nil {
		return nil
	}

	entry := wal.AcquireEntry()
	defer wal.ReleaseEntry(entry)

	entry.Header.Magic = wal.WALMagic
	entry.Header.Version = wal.WALVersion
	entry.Header.EntryType = entryType
	entry.Header.LSN = lsn
	entry.Header.PayloadLen = uint32(len(payload))
	entry.Header.CRC32 = wal.CalculateCRC32(payload)
	entry.Payload = append(entry.Payload, payload...)

	if err := e.WAL.WriteEntry(entry); err != nil {
		return fmt.Errorf("store: wal write: %w", err)
	}
	return nil
}

// Close flushes the WAL and closes every heap.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.WAL != nil {
		if wErr := e.WAL.Close(); wErr != nil {
			err = wErr
		}
	}
	for name, hm := range e.heaps {
		if hErr := hm.Close(); hErr != nil {
			if err == nil {
				err = hErr
			} else {
				err = fmt.Errorf("%v; heap %s close error: %w", err, name, hErr)
			}
		}
	}
	return err
}

// WALDir returns the directory holding the log's segment files, valid
// only in persistent mode.
func (e *Engine) WALDir() string {
	return filepath.Join(e.dir, "wal")
}

// Dir returns the engine's base directory ("" in pure in-memory mode).
func (e *Engine) Dir() string { return e.dir }
