package ndb_test

import (
	"testing"

	"github.com/ndbkit/ndb"
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/ndberr"
)

type product struct {
	ID       string
	SKU      string
	Category string
	Price    int64
}

func productSchema() ndb.Schema[product] {
	return ndb.Schema[product]{
		ModelID:      1,
		ModelVersion: 1,
		PrimaryKey: ndb.KeyField[product]{
			Name:              "id",
			AcceptedTypeNames: []string{"String"},
			Extract:           func(p product) key.ToKey { return key.StringKey(p.ID) },
		},
		SecondaryKeys: []ndb.SecondaryKeyField[product]{
			{
				KeyField: ndb.KeyField[product]{
					Name:              "sku",
					AcceptedTypeNames: []string{"String"},
					Extract:           func(p product) key.ToKey { return key.StringKey(p.SKU) },
				},
				Unique: true,
			},
			{
				KeyField: ndb.KeyField[product]{
					Name:              "category",
					AcceptedTypeNames: []string{"String"},
					Extract:           func(p product) key.ToKey { return key.StringKey(p.Category) },
				},
			},
		},
	}
}

func newTestDB(t *testing.T) (*ndb.Database, *ndb.Collection[product]) {
	t.Helper()
	b := ndb.NewBuilder()
	col, err := ndb.Register(b, productSchema())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	db, err := b.CreateInMemory()
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, col
}

func TestInsertAndGetPrimary(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	p := product{ID: "p1", SKU: "SKU-1", Category: "tools", Price: 500}
	if err := ndb.Insert(rw, col, p); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := db.R()
	defer r.Close()
	got, found, err := ndb.GetPrimary(r, col, key.StringKey("p1"))
	if err != nil {
		t.Fatalf("GetPrimary: %v", err)
	}
	if !found {
		t.Fatalf("expected p1 to be found")
	}
	if got != p {
		t.Fatalf("GetPrimary = %+v, want %+v", got, p)
	}
}

func TestInsertDuplicatePrimaryIsHardError(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-2"})
	rw.Rollback()
	if err == nil {
		t.Fatalf("expected DuplicateKey inserting an existing primary key")
	}
	if _, ok := err.(*ndberr.DuplicateKey); !ok {
		t.Fatalf("expected *ndberr.DuplicateKey, got %T (%v)", err, err)
	}
}

func TestUpsertOverwritesExisting(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Price: 100}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rw = db.RW()
	if err := ndb.Upsert(rw, col, product{ID: "p1", SKU: "SKU-1", Price: 999}); err != nil {
		rw.Rollback()
		t.Fatalf("Upsert: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := db.R()
	defer r.Close()
	got, _, err := ndb.GetPrimary(r, col, key.StringKey("p1"))
	if err != nil {
		t.Fatalf("GetPrimary: %v", err)
	}
	if got.Price != 999 {
		t.Fatalf("expected upserted price 999, got %d", got.Price)
	}
}

func TestDuplicateUniqueSecondaryKeyRejected(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	err := ndb.Insert(rw, col, product{ID: "p2", SKU: "SKU-1"})
	rw.Rollback()
	if err == nil {
		t.Fatalf("expected DuplicateKey for a colliding unique secondary key")
	}
	if dk, ok := err.(*ndberr.DuplicateKey); !ok || dk.KeyName != "sku" {
		t.Fatalf("expected *ndberr.DuplicateKey{KeyName: sku}, got %#v", err)
	}
}

func TestGetSecondaryUnique(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"})
	rw.Commit()

	r := db.R()
	defer r.Close()
	got, found, err := ndb.GetSecondary(r, col, "sku", key.StringKey("SKU-1"))
	if err != nil {
		t.Fatalf("GetSecondary: %v", err)
	}
	if !found || got.ID != "p1" {
		t.Fatalf("GetSecondary(sku=SKU-1) = %+v, found=%v", got, found)
	}
}

func TestGetSecondaryNonUniqueRejected(t *testing.T) {
	db, col := newTestDB(t)
	r := db.R()
	defer r.Close()
	_, _, err := ndb.GetSecondary(r, col, "category", key.StringKey("tools"))
	if err == nil {
		t.Fatalf("expected SecondaryKeyConstraintMismatch for a non-unique key")
	}
	if _, ok := err.(*ndberr.SecondaryKeyConstraintMismatch); !ok {
		t.Fatalf("expected *ndberr.SecondaryKeyConstraintMismatch, got %T", err)
	}
}

func TestRemoveRejectsStaleCopy(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Category: "tools"})
	rw.Commit()

	rw = db.RW()
	stale := product{ID: "p1", SKU: "SKU-1", Category: "garden"} // caller's stale copy
	err := ndb.Remove(rw, col, stale)
	rw.Rollback()
	if err == nil {
		t.Fatalf("expected IncorrectInputData removing with a stale secondary key value")
	}
	if _, ok := err.(*ndberr.IncorrectInputData); !ok {
		t.Fatalf("expected *ndberr.IncorrectInputData, got %T", err)
	}
}

func TestRemoveThenGetMisses(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	p := product{ID: "p1", SKU: "SKU-1"}
	ndb.Insert(rw, col, p)
	rw.Commit()

	rw = db.RW()
	if err := ndb.Remove(rw, col, p); err != nil {
		rw.Rollback()
		t.Fatalf("Remove: %v", err)
	}
	rw.Commit()

	r := db.R()
	defer r.Close()
	_, found, _ := ndb.GetPrimary(r, col, key.StringKey("p1"))
	if found {
		t.Fatalf("expected p1 to be gone after Remove")
	}
}

func TestRemoveOnMissingKeyIsNoOp(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	p := product{ID: "p1", SKU: "SKU-1"}
	ndb.Insert(rw, col, p)
	rw.Commit()

	rw = db.RW()
	if err := ndb.Remove(rw, col, p); err != nil {
		rw.Rollback()
		t.Fatalf("first Remove: %v", err)
	}
	// p1 is already gone; removing it again must succeed silently rather
	// than raise PrimaryKeyNotFound.
	if err := ndb.Remove(rw, col, p); err != nil {
		rw.Rollback()
		t.Fatalf("second Remove on an already-missing key should be a no-op, got: %v", err)
	}
	rw.Commit()
}

func TestAutoUpdate(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Price: 100})
	rw.Commit()

	rw = db.RW()
	found, err := ndb.AutoUpdate(rw, col, key.StringKey("p1"), func(p product) (product, error) {
		p.Price += 50
		return p, nil
	})
	if err != nil {
		rw.Rollback()
		t.Fatalf("AutoUpdate: %v", err)
	}
	if !found {
		rw.Rollback()
		t.Fatalf("expected p1 to be found")
	}
	rw.Commit()

	r := db.R()
	defer r.Close()
	got, _, _ := ndb.GetPrimary(r, col, key.StringKey("p1"))
	if got.Price != 150 {
		t.Fatalf("expected price 150 after AutoUpdate, got %d", got.Price)
	}
}

func TestAutoUpdateOnMissingKeyIsNotFoundNotError(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	defer rw.Rollback()
	found, err := ndb.AutoUpdate(rw, col, key.StringKey("does-not-exist"), func(p product) (product, error) {
		t.Fatalf("mutate should not run when the primary key is absent")
		return p, nil
	})
	if err != nil {
		t.Fatalf("AutoUpdate on a missing key should not error, got: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for a missing key")
	}
}

func TestRWSeesOwnUncommittedWrites(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	defer rw.Rollback()
	if err := ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, found, err := ndb.GetPrimary(rw.R, col, key.StringKey("p1"))
	if err != nil {
		t.Fatalf("GetPrimary inside open RW: %v", err)
	}
	if !found || got.ID != "p1" {
		t.Fatalf("expected the RW's own embedded reader to see its uncommitted insert")
	}
}

func TestMismatchedKeyTypeRejected(t *testing.T) {
	db, col := newTestDB(t)
	r := db.R()
	defer r.Close()
	_, _, err := ndb.GetPrimary(r, col, key.Int64Key(1))
	if err == nil {
		t.Fatalf("expected MismatchedKeyType querying a String primary key with an i64")
	}
	if _, ok := err.(*ndberr.MismatchedKeyType); !ok {
		t.Fatalf("expected *ndberr.MismatchedKeyType, got %T", err)
	}
}

func TestLenPrimary(t *testing.T) {
	db, col := newTestDB(t)
	rw := db.RW()
	for _, id := range []string{"p1", "p2", "p3"} {
		ndb.Insert(rw, col, product{ID: id, SKU: id + "-sku"})
	}
	rw.Commit()

	r := db.R()
	defer r.Close()
	n, err := ndb.LenPrimary(r, col)
	if err != nil {
		t.Fatalf("LenPrimary: %v", err)
	}
	if n != 3 {
		t.Fatalf("LenPrimary = %d, want 3", n)
	}
}
