package ndb_test

import (
	"testing"

	"github.com/ndbkit/ndb"
	"github.com/ndbkit/ndb/key"
)

func TestVacuumCompactsAndRepointsSurvivors(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Category: "tools"})
	ndb.Insert(rw, col, product{ID: "p2", SKU: "SKU-2", Category: "tools"})
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rw = db.RW()
	if err := ndb.Remove(rw, col, product{ID: "p1", SKU: "SKU-1", Category: "tools"}); err != nil {
		rw.Rollback()
		t.Fatalf("Remove: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rw = db.RW()
	if err := ndb.Vacuum(rw, col); err != nil {
		rw.Rollback()
		t.Fatalf("Vacuum: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := db.R()
	defer r.Close()

	_, found, err := ndb.GetPrimary(r, col, key.StringKey("p1"))
	if err != nil {
		t.Fatalf("GetPrimary(p1): %v", err)
	}
	if found {
		t.Fatalf("expected p1's tombstone to stay gone after Vacuum")
	}

	got, found, err := ndb.GetPrimary(r, col, key.StringKey("p2"))
	if err != nil {
		t.Fatalf("GetPrimary(p2): %v", err)
	}
	if !found || got.SKU != "SKU-2" {
		t.Fatalf("expected p2 to still resolve correctly after its heap offset was repointed by Vacuum")
	}

	bySecondary, found, err := ndb.GetSecondary(r, col, "sku", key.StringKey("SKU-2"))
	if err != nil {
		t.Fatalf("GetSecondary(sku=SKU-2): %v", err)
	}
	if !found || bySecondary.ID != "p2" {
		t.Fatalf("expected p2's secondary index to survive Vacuum")
	}
}

func TestVacuumDropsDeadTombstoneSecondaryEntries(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"})
	rw.Commit()

	rw = db.RW()
	ndb.Remove(rw, col, product{ID: "p1", SKU: "SKU-1"})
	rw.Commit()

	rw = db.RW()
	if err := ndb.Vacuum(rw, col); err != nil {
		rw.Rollback()
		t.Fatalf("Vacuum: %v", err)
	}
	rw.Commit()

	// SKU-1 must still be free to reuse after Vacuum: Remove already
	// cleans its secondary entry immediately, and Vacuum must not
	// resurrect it while compacting the tombstone out of the heap.
	rw = db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p2", SKU: "SKU-1"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert reusing SKU-1 after Vacuum: %v", err)
	}
	rw.Commit()
}
