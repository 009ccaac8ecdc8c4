package ndb

import (
	"os"

	"github.com/ndbkit/ndb/ndberr"
)

// Upgrade runs an explicit schema migration at path: it opens the
// existing database through oldBuilder (the registrations a prior
// binary used), creates a fresh database alongside it through b (the
// new registrations), and calls migrateFn to carry data across — typically
// a sequence of Migrate[NewT] calls, one per model that changed shape.
// On success the old directory at path is removed and the staged one is
// renamed into its place; these are two separate steps, not one atomic
// swap. A failure before that point leaves path untouched; if the rename
// itself fails, path is gone and the new database stays at
// "{path}.upgrade.tmp".
//
// An "{path}.upgrade.lock" file guards against two processes upgrading
// the same database concurrently; Upgrade returns *ndberr.AlreadyExists
// if the lock is already held.
func (b *Builder) Upgrade(path string, oldBuilder *Builder, migrateFn func(oldDB, newDB *Database) error) error {
	lockPath := path + ".upgrade.lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return &ndberr.AlreadyExists{Path: lockPath}
		}
		return &ndberr.IO{Cause: err}
	}
	defer func() {
		lockFile.Close()
		os.Remove(lockPath)
	}()

	oldDB, err := oldBuilder.open(path, false)
	if err != nil {
		return err
	}
	defer oldDB.Close()

	stagePath := path + ".upgrade.tmp"
	os.RemoveAll(stagePath)
	newDB, err := b.open(stagePath, true)
	if err != nil {
		os.RemoveAll(stagePath)
		return err
	}

	if err := migrateFn(oldDB, newDB); err != nil {
		newDB.Close()
		os.RemoveAll(stagePath)
		return err
	}

	if err := newDB.Close(); err != nil {
		os.RemoveAll(stagePath)
		return &ndberr.IO{Cause: err}
	}
	if err := oldDB.Close(); err != nil {
		os.RemoveAll(stagePath)
		return &ndberr.IO{Cause: err}
	}

	if err := os.RemoveAll(path); err != nil {
		return &ndberr.IO{Cause: err}
	}
	if err := os.Rename(stagePath, path); err != nil {
		return &ndberr.IO{Cause: err}
	}
	return nil
}
