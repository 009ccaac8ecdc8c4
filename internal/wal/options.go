package wal

import "time"

// SyncPolicy selects the durability strategy for WAL writes.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every write. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval fsyncs periodically from a background goroutine.
	SyncInterval

	// SyncBatch fsyncs once accumulated bytes cross SyncBatchBytes.
	SyncBatch
)

// Options configures a Writer.
type Options struct {
	// DirPath is the directory the log segments live in.
	DirPath string

	// BufferSize is the bufio buffer size in front of the file.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is used when SyncPolicy == SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is used when SyncPolicy == SyncBatch.
	SyncBatchBytes int64

	// SegmentBytes rotates the log to a new segment file once the
	// current one reaches this size. 0 disables rotation, keeping a
	// single ever-growing file. Rotation bounds how much a single
	// segment file can cost to re-scan and lets TruncateBefore reclaim
	// whole files once a checkpoint has absorbed everything in them.
	SegmentBytes int64
}

// DefaultOptions returns a safe, balanced configuration.
func DefaultOptions() Options {
	return Options{
		DirPath:              "./wal_data",
		BufferSize:           64 * 1024,
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
		SegmentBytes:         64 * 1024 * 1024,
	}
}
