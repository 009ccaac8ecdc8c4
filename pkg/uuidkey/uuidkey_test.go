package uuidkey_test

import (
	"testing"

	"github.com/ndbkit/ndb/pkg/uuidkey"
)

func TestNewGeneratesDistinctOrderedKeys(t *testing.T) {
	a, err := uuidkey.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := uuidkey.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a == b {
		t.Fatalf("two consecutive New() calls produced the same UUID")
	}
	// UUIDv7 is time-ordered: a key generated later must sort after one
	// generated earlier.
	if a.ToKey().Compare(b.ToKey()) >= 0 {
		t.Fatalf("expected the first UUIDv7 to sort before the second")
	}
}

func TestTypeName(t *testing.T) {
	id, err := uuidkey.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if id.TypeName() != "Uuid" {
		t.Fatalf("TypeName() = %q, want %q", id.TypeName(), "Uuid")
	}
}

func TestParseRoundTrip(t *testing.T) {
	id, err := uuidkey.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	parsed, err := uuidkey.Parse(id.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("Parse(String()) round-trip mismatch: got %v, want %v", parsed, id)
	}
}
