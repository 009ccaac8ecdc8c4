package ndb

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ndbkit/ndb/ndberr"
)

// Current on-disk format versions. Bumped whenever a change to the
// engine, codec framing, or core semantics requires an explicit upgrade
// path rather than silent forward-compatibility.
const (
	currentNativeDBVersion uint32 = 1
	currentCodecVersion    uint32 = 1
	currentEngineVersion   uint32 = 1
)

// versionMeta is the version metadata a Database reads on open. It is
// kept as a small sidecar JSON file (meta.json) rather than a STORE
// metadata table, since our STORE has no generic string->string table —
// see DESIGN.md for why this is a standard-library-only concern.
type versionMeta struct {
	NativeDBVersion uint32 `json:"native_db_version"`
	CodecVersion    uint32 `json:"codec_version"`
	EngineVersion   uint32 `json:"engine_version"`
}

func metaPath(dir string) string { return filepath.Join(dir, "meta.json") }

func loadMeta(dir string) (versionMeta, bool, error) {
	data, err := os.ReadFile(metaPath(dir))
	if os.IsNotExist(err) {
		return versionMeta{}, false, nil
	}
	if err != nil {
		return versionMeta{}, false, &ndberr.IO{Cause: err}
	}
	var m versionMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return versionMeta{}, false, &ndberr.IO{Cause: err}
	}
	return m, true, nil
}

func saveMeta(dir string, m versionMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &ndberr.IO{Cause: err}
	}
	if err := os.WriteFile(metaPath(dir), data, 0644); err != nil {
		return &ndberr.IO{Cause: err}
	}
	return nil
}

// VersionInfo is the public view of a database directory's meta.json,
// read by operator tooling that has no reason to open the database
// itself (cmd/ndbctl's meta command).
type VersionInfo struct {
	NativeDBVersion uint32
	CodecVersion    uint32
	EngineVersion   uint32
}

// ReadMeta reads the meta.json sidecar at path without opening the
// database. found is false if path holds no database yet.
func ReadMeta(path string) (info VersionInfo, found bool, err error) {
	m, found, err := loadMeta(path)
	if err != nil || !found {
		return VersionInfo{}, found, err
	}
	return VersionInfo{
		NativeDBVersion: m.NativeDBVersion,
		CodecVersion:    m.CodecVersion,
		EngineVersion:   m.EngineVersion,
	}, true, nil
}

// versionSpanIfOlder reports a VersionSpan{from, to} if from is older
// than to, or nil if they match (a from newer than to should not occur
// and is treated as matching — it means a newer binary already wrote
// this file).
func versionSpanIfOlder(from, to uint32) *ndberr.VersionSpan {
	if from >= to {
		return nil
	}
	return &ndberr.VersionSpan{From: from, To: to}
}
