package store

import "sync/atomic"

// LSNTracker hands out monotonically increasing Log Sequence Numbers,
// the ordering primitive MVCC snapshot isolation is built on.
type LSNTracker struct {
	current uint64
}

// NewLSNTracker creates a tracker starting from start.
func NewLSNTracker(start uint64) *LSNTracker {
	return &LSNTracker{current: start}
}

// Next allocates and returns the next LSN.
func (lt *LSNTracker) Next() uint64 {
	return atomic.AddUint64(&lt.current, 1)
}

// Current returns the most recently allocated LSN.
func (lt *LSNTracker) Current() uint64 {
	return atomic.LoadUint64(&lt.current)
}

// Set overwrites the current LSN (used by recovery replay).
func (lt *LSNTracker) Set(val uint64) {
	atomic.StoreUint64(&lt.current, val)
}
