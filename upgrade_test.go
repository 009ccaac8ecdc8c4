package ndb_test

import (
	"os"
	"testing"

	"github.com/ndbkit/ndb"
	"github.com/ndbkit/ndb/key"
)

func TestUpgradeMigratesAndSwapsAtomically(t *testing.T) {
	dir, err := os.MkdirTemp("", "ndb_upgrade_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	oldBuilder := ndb.NewBuilder()
	oldCol, err := ndb.Register(oldBuilder, userV1Schema())
	if err != nil {
		t.Fatalf("Register old: %v", err)
	}
	oldDBForSeed, err := oldBuilder.Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rw := oldDBForSeed.RW()
	if err := ndb.Insert(rw, oldCol, userV1{ID: "u1", Name: "Grace Hopper"}); err != nil {
		rw.Rollback()
		t.Fatalf("Insert: %v", err)
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := oldDBForSeed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh Builder pair mirrors what two different process generations
	// would construct: oldBuilder's registrations describe what is on
	// disk today, newBuilder's describe the target shape.
	oldBuilderForUpgrade := ndb.NewBuilder()
	oldColForUpgrade, err := ndb.Register(oldBuilderForUpgrade, userV1Schema())
	if err != nil {
		t.Fatalf("Register old (upgrade side): %v", err)
	}

	newBuilder := ndb.NewBuilder()
	newCol, err := ndb.Register(newBuilder, userV2Schema())
	if err != nil {
		t.Fatalf("Register new: %v", err)
	}

	err = newBuilder.Upgrade(dir, oldBuilderForUpgrade, func(oldDB, newDB *ndb.Database) error {
		oldR := oldDB.R()
		rows, err := ndb.ScanAll(oldR, oldColForUpgrade)
		oldR.Close()
		if err != nil {
			return err
		}

		rw := newDB.RW()
		for _, row := range rows {
			v2 := userV2{ID: row.ID, FullName: row.Name}
			if err := ndb.Insert(rw, newCol, v2); err != nil {
				rw.Rollback()
				return err
			}
		}
		return rw.Commit()
	})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	db, err := newBuilder.Open(dir)
	if err != nil {
		t.Fatalf("Open after upgrade: %v", err)
	}
	defer db.Close()

	r := db.R()
	defer r.Close()
	got, found, err := ndb.GetPrimary(r, newCol, key.StringKey("u1"))
	if err != nil {
		t.Fatalf("GetPrimary: %v", err)
	}
	if !found || got.FullName != "Grace Hopper" {
		t.Fatalf("expected u1 upgraded to FullName, got %+v found=%v", got, found)
	}
}

func TestUpgradeLockPreventsConcurrentUpgrade(t *testing.T) {
	dir, err := os.MkdirTemp("", "ndb_upgrade_lock_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	lockPath := dir + ".upgrade.lock"
	f, err := os.Create(lockPath)
	if err != nil {
		t.Fatalf("create lock file: %v", err)
	}
	f.Close()
	defer os.Remove(lockPath)

	oldBuilder := ndb.NewBuilder()
	newBuilder := ndb.NewBuilder()
	err = newBuilder.Upgrade(dir, oldBuilder, func(oldDB, newDB *ndb.Database) error {
		t.Fatalf("migrateFn should not run when the lock file is already held")
		return nil
	})
	if err == nil {
		t.Fatalf("expected Upgrade to fail while the lock file exists")
	}
}
