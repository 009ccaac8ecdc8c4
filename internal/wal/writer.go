package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const segmentSuffix = ".wal"

// segmentPath returns the on-disk path of the segment whose first
// entry carries lsn.
func segmentPath(dir string, lsn uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d%s", lsn, segmentSuffix))
}

// listSegments returns the starting LSN of every segment file in dir,
// ascending. A directory with no segments yet returns an empty slice,
// not an error.
func listSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var lsns []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		lsn, err := strconv.ParseUint(strings.TrimSuffix(name, segmentSuffix), 10, 64)
		if err != nil {
			continue // not one of our segment files
		}
		lsns = append(lsns, lsn)
	}
	sort.Slice(lsns, func(i, j int) bool { return lsns[i] < lsns[j] })
	return lsns, nil
}

// Writer manages appends to the log, split across segment files
// keyed by the LSN of their first entry. Splitting the log lets
// TruncateBefore reclaim disk space one whole file at a time instead
// of needing to rewrite a single monolithic log.
type Writer struct {
	mu      sync.Mutex
	dir     string
	options Options

	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	batchBytes int64 // bytes written since the last sync

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWriter opens (or resumes) a segmented log under dir, creating
// dir if needed. If dir already holds segments, the last one (by
// starting LSN) is reopened for append; otherwise the first segment
// is created lazily on the first WriteEntry call, named after that
// entry's LSN.
func NewWriter(dir string, opts Options) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("wal: create log dir: %w", err)
	}

	w := &Writer{dir: dir, options: opts, done: make(chan struct{})}

	segments, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		if err := w.openExisting(segments[len(segments)-1]); err != nil {
			return nil, err
		}
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

func (w *Writer) openExisting(lsn uint64) error {
	f, err := os.OpenFile(segmentPath(w.dir, lsn), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("wal: reopen segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("wal: stat segment: %w", err)
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, w.options.BufferSize)
	w.currentSize = info.Size()
	return nil
}

func (w *Writer) openNew(lsn uint64) error {
	f, err := os.OpenFile(segmentPath(w.dir, lsn), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("wal: create segment: %w", err)
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, w.options.BufferSize)
	w.currentSize = 0
	return nil
}

// WriteEntry appends entry to the current segment, rotating to a new
// one first if SegmentBytes is set and the current segment has grown
// past it, then applying the configured sync policy.
func (w *Writer) WriteEntry(entry *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.file == nil:
		if err := w.openNew(entry.Header.LSN); err != nil {
			return err
		}
	case w.options.SegmentBytes > 0 && w.currentSize >= w.options.SegmentBytes:
		if err := w.rotate(entry.Header.LSN); err != nil {
			return err
		}
	}

	n, err := entry.WriteTo(w.writer)
	if err != nil {
		return err
	}

	w.currentSize += n
	w.batchBytes += n

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return w.syncLocked()

	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			return w.syncLocked()
		}
	}

	return nil
}

func (w *Writer) rotate(nextLSN uint64) error {
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openNew(nextLSN)
}

// Sync forces the buffered data to disk.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if w.file == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.batchBytes = 0
	return nil
}

// TruncateBefore deletes every closed segment file that is entirely
// covered by a checkpoint at maxLSN: a segment is covered once the
// next segment's first LSN - 1 (the last LSN the segment could
// possibly hold) is no greater than maxLSN. The currently open
// segment is never removed, even if every entry written to it so far
// is already checkpointed, since it is still being appended to.
func (w *Writer) TruncateBefore(maxLSN uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	segments, err := listSegments(w.dir)
	if err != nil {
		return err
	}
	for i := 0; i < len(segments)-1; i++ {
		lastPossibleLSN := segments[i+1] - 1
		if lastPossibleLSN > maxLSN {
			break
		}
		if err := os.Remove(segmentPath(w.dir, segments[i])); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("wal: remove checkpointed segment: %w", err)
		}
	}
	return nil
}

// Close flushes, syncs, and closes the current segment file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if w.file == nil {
		return nil
	}
	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
