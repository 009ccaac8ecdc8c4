package ndb_test

import (
	"testing"
	"time"

	"github.com/ndbkit/ndb"
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/watch"
)

func TestWatchReceivesCommittedInsert(t *testing.T) {
	db, col := newTestDB(t)

	w, err := db.Watch(col.TableName())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Unwatch()

	rw := db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	select {
	case evt := <-w.Events():
		if evt.Op != watch.OpInsert {
			t.Fatalf("expected OpInsert, got %v", evt.Op)
		}
		if string(evt.PrimaryKey) != "p1" {
			t.Fatalf("expected primary key p1, got %q", evt.PrimaryKey)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a watch event")
	}
}

func TestWatchFilterExcludesOtherTables(t *testing.T) {
	db, col := newTestDB(t)

	w, err := db.Watch("some-other-table")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Unwatch()

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"})
	rw.Commit()

	select {
	case evt := <-w.Events():
		t.Fatalf("did not expect an event for an unfiltered table, got %+v", evt)
	case <-time.After(100 * time.Millisecond):
		// expected: nothing delivered
	}
}

func TestWatchGetPrimaryFiltersByKey(t *testing.T) {
	db, col := newTestDB(t)

	w, err := ndb.WatchGetPrimary(db, col, key.StringKey("p1"))
	if err != nil {
		t.Fatalf("WatchGetPrimary: %v", err)
	}
	defer w.Unwatch()

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p2", SKU: "SKU-2"})
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"})
	rw.Commit()

	select {
	case evt := <-w.Events():
		if string(evt.PrimaryKey) != "p1" {
			t.Fatalf("expected only the p1 event delivered, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the p1 watch event")
	}
	select {
	case extra := <-w.Events():
		t.Fatalf("did not expect a second event, got %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchGetSecondaryFiltersByKeyValue(t *testing.T) {
	db, col := newTestDB(t)

	w, err := ndb.WatchGetSecondary(db, col, "category", key.StringKey("kitchen"))
	if err != nil {
		t.Fatalf("WatchGetSecondary: %v", err)
	}
	defer w.Unwatch()

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Category: "electronics"})
	ndb.Insert(rw, col, product{ID: "p2", SKU: "SKU-2", Category: "kitchen"})
	rw.Commit()

	select {
	case evt := <-w.Events():
		if string(evt.PrimaryKey) != "p2" {
			t.Fatalf("expected only the kitchen product's event delivered, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the kitchen watch event")
	}
}

func TestWatchScanSecondaryRangeFiltersByRange(t *testing.T) {
	db, col := newTestDB(t)

	kr := key.Inclusive(key.StringKey("kitchen").ToKey(), key.StringKey("kitchen").ToKey())
	w, err := ndb.WatchScanSecondaryRange(db, col, "category", kr)
	if err != nil {
		t.Fatalf("WatchScanSecondaryRange: %v", err)
	}
	defer w.Unwatch()

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Category: "electronics"})
	rw.Commit()

	select {
	case evt := <-w.Events():
		t.Fatalf("did not expect an electronics event through a kitchen-only range filter, got %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	rw = db.RW()
	ndb.Insert(rw, col, product{ID: "p2", SKU: "SKU-2", Category: "kitchen"})
	rw.Commit()

	select {
	case evt := <-w.Events():
		if string(evt.PrimaryKey) != "p2" {
			t.Fatalf("expected the kitchen product's event, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the kitchen watch event")
	}
}

func TestUnwatchClosesChannel(t *testing.T) {
	db, _ := newTestDB(t)
	w, err := db.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	w.Unwatch()

	_, ok := <-w.Events()
	if ok {
		t.Fatalf("expected the events channel to be closed after Unwatch")
	}
}
