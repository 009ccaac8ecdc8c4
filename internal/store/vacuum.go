package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ndbkit/ndb/internal/heap"
)

// VacuumHooks lets the model-aware layer above store participate in
// compaction: it knows how to pull secondary-key values back out of a
// record body and how to repoint or drop index entries, which this
// package has no way to do on its own.
type VacuumHooks struct {
	// OnDeadTombstone is called once per record whose tombstone is no
	// longer visible to any open transaction, so its secondary index
	// entries can be dropped.
	OnDeadTombstone func(doc []byte) error

	// OnKept is called once per record that survives compaction, with
	// its new heap offset, so the primary table's entry for the record
	// can be repointed at it.
	OnKept func(doc []byte, newOffset int64) error
}

// VacuumPrimary reclaims space in the primary table's heap: tombstones
// whose DeleteLSN predates every open transaction's snapshot are
// dropped, and live records are copied to a fresh heap file. This
// function does not touch the primary table itself: it reports each
// copied record's new offset through hooks.OnKept, and the caller
// rewrites the primary table's offsets from there. Must be called with
// no concurrent writers to primaryTable (the caller is expected to hold
// whatever higher-level table lock guards that).
func (e *Engine) VacuumPrimary(primaryTable string, hooks VacuumHooks) error {
	t, ok := e.Table(primaryTable)
	if !ok || t.Kind != Primary {
		return fmt.Errorf("store: %q is not a registered primary table", primaryTable)
	}

	oldHeap := e.Heap(primaryTable)
	if oldHeap == nil {
		return nil // in-memory mode: nothing to compact on disk
	}

	minLSN := e.Txns.MinActiveLSN()

	newHeapPath := oldHeap.Path() + "_vacuum"
	os.Remove(newHeapPath + "_001.data")

	newHeap, err := heap.NewManager(newHeapPath)
	if err != nil {
		return fmt.Errorf("store: create vacuum heap: %w", err)
	}

	offsetMap := make(map[int64]int64)

	iter, err := oldHeap.NewIterator()
	if err != nil {
		newHeap.Close()
		return fmt.Errorf("store: iterate heap: %w", err)
	}

	for {
		doc, header, oldOffset, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			iter.Close()
			newHeap.Close()
			return fmt.Errorf("store: heap iteration: %w", err)
		}

		keep := header.Valid || header.DeleteLSN >= minLSN

		if !keep {
			if hooks.OnDeadTombstone != nil {
				if err := hooks.OnDeadTombstone(doc); err != nil {
					iter.Close()
					newHeap.Close()
					return err
				}
			}
			continue
		}

		newPrev := int64(-1)
		if header.PrevOffset != -1 {
			if mapped, ok := offsetMap[header.PrevOffset]; ok {
				newPrev = mapped
			}
		}

		newOffset, err := newHeap.Write(doc, header.CreateLSN, newPrev)
		if err != nil {
			iter.Close()
			newHeap.Close()
			return fmt.Errorf("store: write compacted record: %w", err)
		}
		if !header.Valid {
			if err := newHeap.Delete(newOffset, header.DeleteLSN); err != nil {
				iter.Close()
				newHeap.Close()
				return fmt.Errorf("store: restore tombstone: %w", err)
			}
		}

		offsetMap[oldOffset] = newOffset

		if hooks.OnKept != nil {
			if err := hooks.OnKept(doc, newOffset); err != nil {
				iter.Close()
				newHeap.Close()
				return err
			}
		}
	}
	iter.Close()

	oldHeap.Close()
	newHeap.Close()

	oldPath := oldHeap.Path()
	files, _ := filepath.Glob(oldPath + "_[0-9][0-9][0-9].data")
	for _, f := range files {
		os.Remove(f)
	}

	newFiles, _ := filepath.Glob(newHeapPath + "_[0-9][0-9][0-9].data")
	for _, f := range newFiles {
		suffix := f[len(newHeapPath):]
		dest := oldPath + suffix
		if err := os.Rename(f, dest); err != nil {
			return fmt.Errorf("store: rename compacted segment: %w", err)
		}
	}

	finalHeap, err := heap.NewManager(oldPath)
	if err != nil {
		return fmt.Errorf("store: reopen compacted heap: %w", err)
	}

	e.mu.Lock()
	e.heaps[primaryTable] = finalHeap
	e.mu.Unlock()

	return nil
}
