package key_test

import (
	"sort"
	"testing"

	"github.com/ndbkit/ndb/key"
)

func TestInt64OrderPreserving(t *testing.T) {
	vals := []int64{-1 << 62, -1000, -1, 0, 1, 1000, 1 << 62}
	keys := make([]key.Key, len(vals))
	for i, v := range vals {
		keys[i] = key.Int64(v)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1].Compare(keys[i]) >= 0 {
			t.Fatalf("Int64(%d) >= Int64(%d) in byte order, want strictly increasing", vals[i-1], vals[i])
		}
	}
}

func TestInt32OrderPreserving(t *testing.T) {
	a := key.Int32(-5)
	b := key.Int32(5)
	if a.Compare(b) >= 0 {
		t.Fatalf("Int32(-5) should sort before Int32(5)")
	}
}

func TestFloat64OrderPreservingAcrossSign(t *testing.T) {
	vals := []float64{-100.5, -1.0, -0.001, 0.0, 0.001, 1.0, 100.5}
	keys := make([]key.Key, len(vals))
	for i, v := range vals {
		keys[i] = key.Float64(v)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1].Compare(keys[i]) >= 0 {
			t.Fatalf("Float64(%v) >= Float64(%v) in byte order, want strictly increasing", vals[i-1], vals[i])
		}
	}
}

func TestFloat32OrderPreservingAcrossSign(t *testing.T) {
	vals := []float32{-42.5, -0.5, 0, 0.5, 42.5}
	keys := make([]key.Key, len(vals))
	for i, v := range vals {
		keys[i] = key.Float32(v)
	}
	sorted := sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	if !sorted {
		t.Fatalf("Float32 keys not in sorted order: %v", vals)
	}
}

func TestBoolOrder(t *testing.T) {
	f := key.Bool(false)
	tr := key.Bool(true)
	if f.Compare(tr) >= 0 {
		t.Fatalf("Bool(false) should sort before Bool(true)")
	}
}

func TestStringOrder(t *testing.T) {
	a := key.String("alpha")
	b := key.String("beta")
	if a.Compare(b) >= 0 {
		t.Fatalf("String(alpha) should sort before String(beta)")
	}
}

func TestConcat(t *testing.T) {
	got := key.Concat(key.String("a"), key.String("b"), key.String("c"))
	if string(got) != "abc" {
		t.Fatalf("Concat = %q, want %q", got, "abc")
	}
}

func TestHasPrefix(t *testing.T) {
	k := key.String("hello-world")
	if !k.HasPrefix(key.String("hello")) {
		t.Fatalf("expected %q to have prefix %q", k, "hello")
	}
	if k.HasPrefix(key.String("world")) {
		t.Fatalf("did not expect %q to have prefix %q", k, "world")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := key.String("mutable")
	clone := original.Clone()
	clone[0] = 'M'
	if string(original) == string(clone) {
		t.Fatalf("mutating clone affected original: %q", original)
	}
}

func TestGenericKeyBypassesTypeCheck(t *testing.T) {
	var k key.Key = key.String("anything")
	if k.CheckType() {
		t.Fatalf("a raw key.Key must opt out of the type check")
	}
	if k.TypeName() != "key.Key" {
		t.Fatalf("TypeName = %q, want %q", k.TypeName(), "key.Key")
	}
}
