// Package ndberr holds the store's typed error taxonomy: one exported
// struct per error kind, each implementing error with a descriptive
// message.
package ndberr

import "fmt"

// TableDefinitionNotFound is returned when the registry does not carry a
// model for the table a caller references.
type TableDefinitionNotFound struct {
	TableName string
}

func (e *TableDefinitionNotFound) Error() string {
	return fmt.Sprintf("ndb: table definition not found: %q", e.TableName)
}

// DuplicateKey is returned when a unique constraint is violated on insert
// or on a unique secondary key entry.
type DuplicateKey struct {
	KeyName string
}

func (e *DuplicateKey) Error() string {
	return fmt.Sprintf("ndb: duplicate key violation on %q", e.KeyName)
}

// IncorrectInputData is returned by remove when the secondary key bytes
// recomputed from the caller's record do not match what is stored.
type IncorrectInputData struct {
	Reason string
}

func (e *IncorrectInputData) Error() string {
	return fmt.Sprintf("ndb: incorrect input data: %s", e.Reason)
}

// MismatchedKeyType is returned when a query key's runtime type does not
// match an index's declared accepted type names.
type MismatchedKeyType struct {
	KeyName   string
	Expected  []string
	Got       string
	Operation string
}

func (e *MismatchedKeyType) Error() string {
	return fmt.Sprintf("ndb: mismatched key type for %q in %s: expected one of %v, got %q", e.KeyName, e.Operation, e.Expected, e.Got)
}

// SecondaryKeyConstraintMismatch is returned by get().secondary when the
// referenced key is not declared unique.
type SecondaryKeyConstraintMismatch struct {
	KeyName string
}

func (e *SecondaryKeyConstraintMismatch) Error() string {
	return fmt.Sprintf("ndb: %q is not a unique secondary key; use scan().secondary instead", e.KeyName)
}

// PrimaryKeyNotFound signals a secondary index entry pointing at a
// primary key that no longer exists — an integrity violation.
type PrimaryKeyNotFound struct {
	PrimaryKey string
}

func (e *PrimaryKeyNotFound) Error() string {
	return fmt.Sprintf("ndb: secondary index points at missing primary key %q", e.PrimaryKey)
}

// VersionSpan describes an (from, to) version pair, used by Upgrade and
// UpgradeRequired.
type VersionSpan struct {
	From uint32
	To   uint32
}

// Upgrade is returned when the codec cannot bridge a version gap while
// decoding or migrating a record body.
type Upgrade struct {
	From, To uint32
}

func (e *Upgrade) Error() string {
	return fmt.Sprintf("ndb: cannot upgrade record from version %d to %d: no conversion chain registered", e.From, e.To)
}

// UpgradeRequired is returned by Open when the on-disk format is older
// than the compiled version in a way the core cannot bridge transparently.
type UpgradeRequired struct {
	NativeDBVersion *VersionSpan
	CodecVersion    *VersionSpan
	EngineVersion   *VersionSpan
}

func (e *UpgradeRequired) Error() string {
	return fmt.Sprintf("ndb: database requires an explicit upgrade (native_db=%v, codec=%v, engine=%v)", e.NativeDBVersion, e.CodecVersion, e.EngineVersion)
}

// MigrateLegacyModel is returned when migrate[NewT]() targets a model
// that is itself legacy.
type MigrateLegacyModel struct {
	ModelName string
}

func (e *MigrateLegacyModel) Error() string {
	return fmt.Sprintf("ndb: cannot migrate into legacy model %q", e.ModelName)
}

// MaxWatcherReached signals the watcher-id counter has rolled over.
type MaxWatcherReached struct{}

func (e *MaxWatcherReached) Error() string {
	return "ndb: maximum number of watchers reached"
}

// AlreadyExists wraps an *fs.PathError-style condition where the upgrade
// lock file already exists; Error()'s message intentionally contains the
// phrase "Upgrade already in progress".
type AlreadyExists struct {
	Path string
}

func (e *AlreadyExists) Error() string {
	return fmt.Sprintf("ndb: Upgrade already in progress: lock file %q already exists", e.Path)
}

// Engine wraps an error surfaced by the underlying storage engine
// (transaction, table-open, or commit failure).
type Engine struct {
	Cause error
}

func (e *Engine) Error() string { return fmt.Sprintf("ndb: engine error: %v", e.Cause) }
func (e *Engine) Unwrap() error { return e.Cause }

// IO wraps an underlying file-system error.
type IO struct {
	Cause error
}

func (e *IO) Error() string { return fmt.Sprintf("ndb: io error: %v", e.Cause) }
func (e *IO) Unwrap() error { return e.Cause }
