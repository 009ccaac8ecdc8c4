package ndb

import (
	"github.com/rs/zerolog"

	"github.com/ndbkit/ndb/codec"
	"github.com/ndbkit/ndb/internal/wal"
	"github.com/ndbkit/ndb/model"
)

// Mode names a durability/repair mode. The builder records the chosen
// mode on the Database but does not pass it to the engine, and nothing
// reads it: all three modes behave like Default, and choosing another
// one logs nothing.
type Mode int

const (
	Default Mode = iota
	TwoPhaseCommit
	QuickRepair
)

// Builder collects model registrations and engine options before opening
// or creating a Database. It is the Go counterpart of native_db's
// DatabaseBuilder.
type Builder struct {
	models     *model.Models
	converters *codec.Converters
	binders    []func(*Database) error

	cacheSizeBytes  int64
	mode            Mode
	watchBufferSize int
	syncPolicy      wal.SyncPolicy
	walSegmentBytes int64
	logger          zerolog.Logger
}

// NewBuilder creates an empty Builder with the ambient defaults: a
// discard logger, SyncEveryWrite durability, and the default watch
// buffer size.
func NewBuilder() *Builder {
	return &Builder{
		models:          model.NewModels(),
		converters:      codec.NewConverters(),
		cacheSizeBytes:  1 << 30, // 1 GB, STORE's documented default
		mode:            Default,
		watchBufferSize: 64,
		syncPolicy:      wal.SyncEveryWrite,
		logger:          zerolog.Nop(),
	}
}

// WithLogger installs a zerolog.Logger every component above the STORE
// boundary logs through.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// WithCacheSize records a page-cache size hint on the Builder. The value
// is not passed to the engine, which has no page cache, so it has no
// effect.
func (b *Builder) WithCacheSize(bytes int64) *Builder {
	b.cacheSizeBytes = bytes
	return b
}

// WithMode records the durability/repair mode; see Mode for its effect.
func (b *Builder) WithMode(m Mode) *Builder {
	b.mode = m
	return b
}

// WithWatchBufferSize sets the per-subscription channel buffer size new
// watchers are created with.
func (b *Builder) WithWatchBufferSize(n int) *Builder {
	b.watchBufferSize = n
	return b
}

// WithSyncPolicy selects the WAL's fsync policy.
func (b *Builder) WithSyncPolicy(p wal.SyncPolicy) *Builder {
	b.syncPolicy = p
	return b
}

// WithWALSegmentBytes overrides the size at which the log rotates to
// a new segment file. 0 (the zero value) keeps wal.DefaultOptions'
// built-in default.
func (b *Builder) WithWALSegmentBytes(n int64) *Builder {
	b.walSegmentBytes = n
	return b
}

// RegisterConverter adds a chained old->new conversion step for modelID,
// applied when decoding or migrating a record stored at fromVersion.
func (b *Builder) RegisterConverter(modelID, fromVersion uint32, fn codec.ConvertFunc) *Builder {
	b.converters.Register(modelID, fromVersion, fn)
	return b
}
