package ndb_test

import (
	"testing"

	"github.com/ndbkit/ndb"
	"github.com/ndbkit/ndb/key"
)

type userV1 struct {
	ID   string
	Name string
}

type userV2 struct {
	ID       string
	FullName string
}

func userV1Schema() ndb.Schema[userV1] {
	return ndb.Schema[userV1]{
		ModelID:      42,
		ModelVersion: 1,
		PrimaryKey: ndb.KeyField[userV1]{
			Name:              "id",
			AcceptedTypeNames: []string{"String"},
			Extract:           func(u userV1) key.ToKey { return key.StringKey(u.ID) },
		},
	}
}

func userV2Schema() ndb.Schema[userV2] {
	return ndb.Schema[userV2]{
		ModelID:      42,
		ModelVersion: 2,
		PrimaryKey: ndb.KeyField[userV2]{
			Name:              "id",
			AcceptedTypeNames: []string{"String"},
			Extract:           func(u userV2) key.ToKey { return key.StringKey(u.ID) },
		},
	}
}

func TestMigrateCarriesLegacyRowsForward(t *testing.T) {
	b := ndb.NewBuilder()
	b.RegisterConverter(42, 1, func(old map[string]interface{}) (map[string]interface{}, error) {
		old["fullname"] = old["name"]
		delete(old, "name")
		return old, nil
	})

	v1, err := ndb.Register(b, userV1Schema())
	if err != nil {
		t.Fatalf("Register v1: %v", err)
	}
	v2, err := ndb.Register(b, userV2Schema())
	if err != nil {
		t.Fatalf("Register v2: %v", err)
	}

	db, err := b.CreateInMemory()
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	defer db.Close()

	rw := db.RW()
	if err := ndb.Insert(rw, v1, userV1{ID: "u1", Name: "Ada Lovelace"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert legacy row: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rw = db.RW()
	if err := ndb.Migrate(rw, v2); err != nil {
		rw.Rollback()
		t.Fatalf("Migrate: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := db.R()
	defer r.Close()

	migrated, found, err := ndb.GetPrimary(r, v2, key.StringKey("u1"))
	if err != nil {
		t.Fatalf("GetPrimary(v2): %v", err)
	}
	if !found {
		t.Fatalf("expected u1 to exist in the new model after Migrate")
	}
	if migrated.FullName != "Ada Lovelace" {
		t.Fatalf("expected FullName carried from the legacy Name field, got %q", migrated.FullName)
	}

	legacyCount, err := ndb.LenPrimary(r, v1)
	if err != nil {
		t.Fatalf("LenPrimary(v1): %v", err)
	}
	if legacyCount != 0 {
		t.Fatalf("expected legacy table drained after Migrate, got %d rows left", legacyCount)
	}
}

func TestRefreshRewritesSecondaryEntries(t *testing.T) {
	db, col := newTestDB(t)

	rw := db.RW()
	ndb.Insert(rw, col, product{ID: "p1", SKU: "SKU-1", Category: "tools"})
	rw.Commit()

	rw = db.RW()
	n, err := ndb.Refresh(rw, col)
	if err != nil {
		rw.Rollback()
		t.Fatalf("Refresh: %v", err)
	}
	rw.Commit()
	if n != 1 {
		t.Fatalf("Refresh should report 1 row refreshed, got %d", n)
	}

	r := db.R()
	defer r.Close()
	got, found, err := ndb.GetSecondary(r, col, "sku", key.StringKey("SKU-1"))
	if err != nil {
		t.Fatalf("GetSecondary after Refresh: %v", err)
	}
	if !found || got.ID != "p1" {
		t.Fatalf("expected sku index to still resolve to p1 after Refresh")
	}
}
