package ndb_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/ndbkit/ndb"
	"github.com/ndbkit/ndb/key"
)

func TestBuilderOptionsChain(t *testing.T) {
	b := ndb.NewBuilder().
		WithLogger(zerolog.Nop()).
		WithCacheSize(64 << 20).
		WithMode(ndb.Default).
		WithWatchBufferSize(128)

	if b == nil {
		t.Fatalf("expected a non-nil Builder from the chained options")
	}
}

func TestRegisterDuplicateModelVersionFails(t *testing.T) {
	b := ndb.NewBuilder()
	if _, err := ndb.Register(b, productSchema()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := ndb.Register(b, productSchema()); err == nil {
		t.Fatalf("expected registering the same (model_id, version) twice to fail")
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	db, col := newTestDB(t)
	rw := db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("second Commit should be a no-op, not an error: %v", err)
	}
}

func TestRollbackDoesNotUndoAppliedMutations(t *testing.T) {
	db, col := newTestDB(t)
	rw := db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	// Rollback releases the writer lock but this engine applies writes
	// immediately, so the insert above is already visible.
	rw.Rollback()

	r := db.R()
	defer r.Close()
	_, found, err := ndb.GetPrimary(r, col, key.StringKey("p1"))
	if err != nil {
		t.Fatalf("GetPrimary: %v", err)
	}
	if !found {
		t.Fatalf("expected the insert to remain visible after Rollback, per this engine's immediate-apply contract")
	}
}
