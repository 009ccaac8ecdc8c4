package store

import (
	"math"
	"sync"
)

// ReadTxn is a snapshot-isolated read context: it sees every version
// with CreateLSN <= SnapshotLSN and no version deleted at or before it.
type ReadTxn struct {
	SnapshotLSN uint64
	registry    *TxRegistry
}

// IsVisible reports whether a version created at createLSN is visible to
// this snapshot.
func (tx *ReadTxn) IsVisible(createLSN uint64) bool {
	return createLSN <= tx.SnapshotLSN
}

// Close releases the transaction's slot in the registry, letting vacuum
// advance past its snapshot once no older reader remains.
func (tx *ReadTxn) Close() {
	tx.registry.unregister(tx)
}

// TxRegistry tracks every open ReadTxn so vacuum can compute the oldest
// snapshot any caller might still query — a tombstone with DeleteLSN
// below that floor is visible to nobody and safe to reclaim.
type TxRegistry struct {
	mu           sync.Mutex
	active       map[*ReadTxn]struct{}
	minActiveLSN uint64
}

// NewTxRegistry creates an empty registry.
func NewTxRegistry() *TxRegistry {
	return &TxRegistry{
		active:       make(map[*ReadTxn]struct{}),
		minActiveLSN: math.MaxUint64,
	}
}

// Begin opens a new read transaction pinned at snapshotLSN.
func (tr *TxRegistry) Begin(snapshotLSN uint64) *ReadTxn {
	tx := &ReadTxn{SnapshotLSN: snapshotLSN, registry: tr}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.active[tx] = struct{}{}
	if tx.SnapshotLSN < tr.minActiveLSN {
		tr.minActiveLSN = tx.SnapshotLSN
	}
	return tx
}

func (tr *TxRegistry) unregister(tx *ReadTxn) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	delete(tr.active, tx)

	if len(tr.active) == 0 {
		tr.minActiveLSN = math.MaxUint64
		return
	}

	min := uint64(math.MaxUint64)
	for t := range tr.active {
		if t.SnapshotLSN < min {
			min = t.SnapshotLSN
		}
	}
	tr.minActiveLSN = min
}

// MinActiveLSN returns the smallest SnapshotLSN among open transactions,
// or math.MaxUint64 if none are open.
func (tr *TxRegistry) MinActiveLSN() uint64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.minActiveLSN
}
