package ndb

import (
	"bytes"
	"encoding/gob"
)

// walSecondary is one secondary-table entry a WAL record carries,
// already flattened into table name and key bytes so replay never needs
// to re-derive it from a model's extractor functions — the engine layer
// has no notion of models, and recovery must not depend on one either.
// Only present entries are ever carried; an optional key with no value
// is simply omitted.
type walSecondary struct {
	Table  string
	Unique bool
	Key    []byte
}

// walRecord is the gob-encoded WAL payload for one mutating operation.
// It carries everything replay needs: which primary table and key it
// touches, the encoded body (nil for a delete), and the secondary-table
// entries to add and remove alongside it — an upsert that changes a
// secondary key's value carries both (Removed holds the stale entry,
// Added the new one); a plain insert carries only Added; a remove
// carries only Removed.
type walRecord struct {
	PrimaryTable string
	PrimaryKey   []byte
	Body         []byte
	Added        []walSecondary
	Removed      []walSecondary
}

func encodeWALRecord(r walRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWALRecord(data []byte) (walRecord, error) {
	var r walRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return walRecord{}, err
	}
	return r, nil
}

// presentSecondaries flattens the present entries of entries into their
// WAL-wire form, skipping absent optional keys.
func presentSecondaries(entries []keyEntry) []walSecondary {
	out := make([]walSecondary, 0, len(entries))
	for _, e := range entries {
		if !e.present {
			continue
		}
		out = append(out, walSecondary{
			Table:  e.def.UniqueTableName(),
			Unique: e.def.Options.Unique,
			Key:    []byte(e.bytes),
		})
	}
	return out
}

// secondaryKeyBytes maps each present entry's key name to its encoded
// value, for watch.Event.SecondaryKeys — the bus's key-filter matching
// has no notion of models, so it is handed plain name/bytes pairs
// rather than keyEntry values.
func secondaryKeyBytes(entries []keyEntry) map[string][]byte {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if !e.present {
			continue
		}
		out[e.def.Name] = []byte(e.bytes)
	}
	return out
}
