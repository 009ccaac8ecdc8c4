package key_test

import (
	"testing"

	"github.com/ndbkit/ndb/key"
)

func TestFullContainsEverything(t *testing.T) {
	r := key.Full()
	if !r.Contains(key.String("anything")) {
		t.Fatalf("Full() should contain any key")
	}
	if r.SeekStart() != nil {
		t.Fatalf("Full().SeekStart() should be nil")
	}
}

func TestAtLeast(t *testing.T) {
	r := key.AtLeast(key.Int64(10))
	if !r.Contains(key.Int64(10)) {
		t.Fatalf("AtLeast(10) should contain 10")
	}
	if !r.Contains(key.Int64(100)) {
		t.Fatalf("AtLeast(10) should contain 100")
	}
	if r.Contains(key.Int64(9)) {
		t.Fatalf("AtLeast(10) should not contain 9")
	}
}

func TestBeforeIsExclusive(t *testing.T) {
	r := key.Before(key.Int64(10))
	if r.Contains(key.Int64(10)) {
		t.Fatalf("Before(10) should not contain 10")
	}
	if !r.Contains(key.Int64(9)) {
		t.Fatalf("Before(10) should contain 9")
	}
}

func TestAtMostIsInclusive(t *testing.T) {
	r := key.AtMost(key.Int64(10))
	if !r.Contains(key.Int64(10)) {
		t.Fatalf("AtMost(10) should contain 10")
	}
	if r.Contains(key.Int64(11)) {
		t.Fatalf("AtMost(10) should not contain 11")
	}
}

func TestHalfOpen(t *testing.T) {
	r := key.HalfOpen(key.Int64(1), key.Int64(5))
	for _, v := range []int64{1, 2, 3, 4} {
		if !r.Contains(key.Int64(v)) {
			t.Errorf("HalfOpen(1,5) should contain %d", v)
		}
	}
	if r.Contains(key.Int64(5)) {
		t.Fatalf("HalfOpen(1,5) should not contain the upper bound")
	}
}

func TestInclusive(t *testing.T) {
	r := key.Inclusive(key.Int64(1), key.Int64(5))
	if !r.Contains(key.Int64(1)) || !r.Contains(key.Int64(5)) {
		t.Fatalf("Inclusive(1,5) should contain both endpoints")
	}
}

func TestNewKeyRangeRejectsExcludedLower(t *testing.T) {
	_, err := key.NewKeyRange(key.Bound{Kind: key.Excluded, Bytes: key.Int64(1)}, key.Bound{Kind: key.Unbounded})
	if err == nil {
		t.Fatalf("expected ErrUnsupportedBound for an Excluded lower bound")
	}
	if _, ok := err.(*key.ErrUnsupportedBound); !ok {
		t.Fatalf("expected *ErrUnsupportedBound, got %T", err)
	}
}

func TestSeekStartReflectsLowerBound(t *testing.T) {
	r := key.AtLeast(key.Int64(42))
	if r.SeekStart().Compare(key.Int64(42)) != 0 {
		t.Fatalf("SeekStart() should equal the lower bound bytes")
	}
}
