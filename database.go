package ndb

import (
	"errors"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ndbkit/ndb/codec"
	"github.com/ndbkit/ndb/internal/metrics"
	"github.com/ndbkit/ndb/internal/store"
	"github.com/ndbkit/ndb/model"
	"github.com/ndbkit/ndb/ndberr"
	"github.com/ndbkit/ndb/watch"
)

// Database binds one opened STORE instance to a Models registry, a
// change-notification bus, and engine statistics. It is safe for
// concurrent use from multiple goroutines; each caller should open its
// own R or RW context.
type Database struct {
	engine     *store.Engine
	codec      *codec.Codec
	converters *codec.Converters
	models     *model.Models
	bus        *watch.Bus
	metrics    *metrics.Registry
	promReg    *prometheus.Registry
	logger     zerolog.Logger

	mode            Mode
	watchBufferSize int

	ephemeralDir string // set for CreateInMemory; removed on Close

	writeMu sync.Mutex // serializes RW transactions: single writer at a time
}

func newDatabase(b *Builder, e *store.Engine) *Database {
	reg := prometheus.NewRegistry()
	db := &Database{
		engine:          e,
		codec:           codec.New(),
		converters:      b.converters,
		models:          b.models,
		bus:             watch.NewBus(),
		metrics:         metrics.NewRegistry(reg),
		promReg:         reg,
		logger:          b.logger,
		mode:            b.mode,
		watchBufferSize: b.watchBufferSize,
	}
	return db
}

// ensureTables creates the primary table and every secondary table
// declared by m, if they do not already exist.
func (db *Database) ensureTables(m model.Model) error {
	if _, err := db.engine.EnsurePrimaryTable(m.PrimaryKey.UniqueTableName()); err != nil {
		return &ndberr.Engine{Cause: err}
	}
	for _, name := range m.SecondaryKeyNames() {
		def := m.SecondaryKeys[name]
		if def.Options.Unique {
			db.engine.EnsureUniqueSecondaryTable(def.UniqueTableName())
		} else {
			db.engine.EnsureMultiSecondaryTable(def.UniqueTableName())
		}
	}
	return nil
}

// Create opens a database at path without the version check Open makes:
// data already at path is opened and recovered whatever version wrote
// it, and meta.json is rewritten with this binary's versions. Every
// model registered against b has its missing tables created empty.
func (b *Builder) Create(path string) (*Database, error) {
	return b.open(path, true)
}

// CreateInMemory opens a database backed by a scratch directory in the
// OS temp filesystem: the heap manager is file-backed unconditionally,
// so even a "memory-only" database needs somewhere to put record
// bodies. The directory is removed on Close; nothing here survives a
// process restart since nothing references it afterward.
func (b *Builder) CreateInMemory() (*Database, error) {
	dir, err := os.MkdirTemp("", "ndb-mem-*")
	if err != nil {
		return nil, &ndberr.IO{Cause: err}
	}
	db, err := b.openEngine(dir, false)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	db.ephemeralDir = dir
	return db, nil
}

// Open opens an existing database at path, or creates one if path does
// not yet hold a database. Returns *ndberr.UpgradeRequired if the
// on-disk format is older than this binary in a way it cannot bridge
// transparently.
func (b *Builder) Open(path string) (*Database, error) {
	return b.open(path, false)
}

func (b *Builder) open(path string, forceCreate bool) (*Database, error) {
	existing, found, err := loadMeta(path)
	if err != nil {
		return nil, err
	}

	if found && !forceCreate {
		nativeSpan := versionSpanIfOlder(existing.NativeDBVersion, currentNativeDBVersion)
		codecSpan := versionSpanIfOlder(existing.CodecVersion, currentCodecVersion)
		engineSpan := versionSpanIfOlder(existing.EngineVersion, currentEngineVersion)
		if nativeSpan != nil || codecSpan != nil || engineSpan != nil {
			return nil, &ndberr.UpgradeRequired{NativeDBVersion: nativeSpan, CodecVersion: codecSpan, EngineVersion: engineSpan}
		}
	}

	db, err := b.openEngine(path, true)
	if err != nil {
		return nil, err
	}

	if err := saveMeta(path, versionMeta{
		NativeDBVersion: currentNativeDBVersion,
		CodecVersion:    currentCodecVersion,
		EngineVersion:   currentEngineVersion,
	}); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (b *Builder) openEngine(dir string, persistent bool) (*Database, error) {
	e, err := store.Open(dir, b.syncPolicy, b.walSegmentBytes)
	if err != nil {
		return nil, &ndberr.Engine{Cause: err}
	}

	db := newDatabase(b, e)

	for _, bind := range b.binders {
		if err := bind(db); err != nil {
			e.Close()
			return nil, err
		}
	}

	if persistent && dir != "" {
		var maxCheckpointLSN uint64
		for _, name := range e.Tables() {
			t, ok := e.Table(name)
			if !ok {
				continue
			}
			lsn, err := e.LoadCheckpoint(t)
			if err != nil {
				if !isNotExist(err) {
					db.logger.Warn().Err(err).Str("table", name).Msg("checkpoint load failed, relying on WAL replay")
				}
				continue
			}
			if lsn > maxCheckpointLSN {
				maxCheckpointLSN = lsn
			}
		}

		if err := db.recover(maxCheckpointLSN); err != nil {
			e.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close flushes and closes the underlying engine and the notification
// bus. Any open watchers stop receiving events.
func (db *Database) Close() error {
	db.bus.Close()
	err := db.engine.Close()
	if db.ephemeralDir != "" {
		os.RemoveAll(db.ephemeralDir)
	}
	return err
}

// Stats returns the prometheus registry this Database reports engine
// statistics through (table sizes, WAL bytes, checkpoint/vacuum counts).
// The core does not expose an HTTP endpoint; the host process wires this
// registry to its own.
func (db *Database) Stats() *prometheus.Registry {
	return db.promReg
}

// CreateCheckpoint forces an immediate checkpoint of every table, ahead
// of the engine's own schedule.
func (db *Database) CreateCheckpoint() error {
	if err := db.engine.CreateCheckpoint(); err != nil {
		return &ndberr.Engine{Cause: err}
	}
	db.metrics.Checkpoints.Inc()
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
