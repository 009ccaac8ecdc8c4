package ndb

import (
	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/watch"
)

// Watcher is a live subscription to a Database's change-notification
// bus, scoped to the table(s) and key filter given at Watch time.
type Watcher struct {
	receiver *watch.Receiver
}

// Watch subscribes to every committed change on the named tables
// (every table, if none are given), with no key-level restriction. A
// table argument is a Collection's TableName(). For a subscription
// scoped to a single key or a range/prefix of keys, use WatchGetPrimary,
// WatchGetSecondary, WatchScanPrimaryStartWith,
// WatchScanSecondaryStartWith, or WatchScanSecondaryRange instead.
func (db *Database) Watch(tables ...string) (*Watcher, error) {
	return db.watch(watch.NewTableFilter(tables...))
}

func (db *Database) watch(filter watch.TableFilter) (*Watcher, error) {
	r, err := db.bus.Watch(filter, db.watchBufferSize)
	if err != nil {
		return nil, err
	}
	return &Watcher{receiver: r}, nil
}

// Events returns the channel new matching Events arrive on. It is
// closed once Unwatch is called or the Database is closed.
func (w *Watcher) Events() <-chan watch.Event {
	return w.receiver.Events()
}

// Unwatch cancels the subscription.
func (w *Watcher) Unwatch() {
	w.receiver.Unwatch()
}

// WatchGetPrimary subscribes to changes to col's primary table whose
// primary key equals pk, or to every change if pk is nil — the
// Primary(Option<Key>) key filter.
func WatchGetPrimary[T any](db *Database, col *Collection[T], pk key.ToKey) (*Watcher, error) {
	var k key.Key
	if pk != nil {
		k = pk.ToKey()
	}
	return db.watch(watch.NewKeyedTableFilter(col.TableName(), watch.PrimaryKeyFilter(k)))
}

// WatchGetSecondary subscribes to changes to col's primary table whose
// named secondary key equals k, or to every change carrying that
// secondary key if k is nil — the Secondary(KeyDefinition,
// Option<Key>) key filter.
func WatchGetSecondary[T any](db *Database, col *Collection[T], keyName string, k key.ToKey) (*Watcher, error) {
	var kb key.Key
	if k != nil {
		kb = k.ToKey()
	}
	return db.watch(watch.NewKeyedTableFilter(col.TableName(), watch.SecondaryKeyFilter(keyName, kb)))
}

// WatchScanPrimaryStartWith subscribes to changes whose primary key
// starts with prefix — the PrimaryStartWith(Key) key filter.
func WatchScanPrimaryStartWith[T any](db *Database, col *Collection[T], prefix key.Key) (*Watcher, error) {
	return db.watch(watch.NewKeyedTableFilter(col.TableName(), watch.PrimaryStartWithFilter(prefix)))
}

// WatchScanSecondaryStartWith subscribes to changes whose named
// secondary key starts with prefix — the SecondaryStartWith
// (KeyDefinition, Key) key filter.
func WatchScanSecondaryStartWith[T any](db *Database, col *Collection[T], keyName string, prefix key.Key) (*Watcher, error) {
	return db.watch(watch.NewKeyedTableFilter(col.TableName(), watch.SecondaryStartWithFilter(keyName, prefix)))
}

// WatchScanSecondaryRange subscribes to changes whose named secondary
// key falls within kr — the SecondaryRange(KeyDefinition, KeyRange)
// key filter.
func WatchScanSecondaryRange[T any](db *Database, col *Collection[T], keyName string, kr key.KeyRange) (*Watcher, error) {
	return db.watch(watch.NewKeyedTableFilter(col.TableName(), watch.SecondaryRangeFilter(keyName, kr)))
}
