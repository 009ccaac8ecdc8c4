package key_test

import (
	"testing"
	"time"

	"github.com/ndbkit/ndb/key"
)

func TestTypedWrapperNamesMatchSpec(t *testing.T) {
	cases := []struct {
		name string
		k    key.ToKey
		want string
	}{
		{"StringKey", key.StringKey("x"), "String"},
		{"Int64Key", key.Int64Key(1), "i64"},
		{"Uint32Key", key.Uint32Key(1), "u32"},
		{"Float64Key", key.Float64Key(1), "f64"},
		{"BoolKey", key.BoolKey(true), "bool"},
		{"BytesKey", key.BytesKey("x"), "Bytes"},
		{"TimeKey", key.TimeKey(time.Now()), "DateTime"},
		{"Raw", key.Raw{}, "Key"},
	}
	for _, c := range cases {
		if got := c.k.TypeName(); got != c.want {
			t.Errorf("%s.TypeName() = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestRawKeyDisablesTypeCheck(t *testing.T) {
	var r key.ToKey = key.Raw("pk-bytes")
	ct, ok := r.(key.CheckTyped)
	if !ok {
		t.Fatalf("Raw should implement CheckTyped")
	}
	if ct.CheckType() {
		t.Fatalf("Raw.CheckType() should be false")
	}
}

func TestOptionSomeNone(t *testing.T) {
	some := key.Some(key.StringKey("present"))
	if !some.Present {
		t.Fatalf("Some should be present")
	}
	if string(some.ToKey()) != "present" {
		t.Fatalf("Some.ToKey() = %q, want %q", some.ToKey(), "present")
	}

	none := key.None[key.StringKey]()
	if none.Present {
		t.Fatalf("None should not be present")
	}
	if len(none.ToKey()) != 0 {
		t.Fatalf("None.ToKey() should be empty, got %q", none.ToKey())
	}
	if none.TypeName() != "Option<String>" {
		t.Fatalf("Option.TypeName() = %q, want Option<String>", none.TypeName())
	}
}

func TestTimeKeyOrdersChronologically(t *testing.T) {
	earlier := key.TimeKey(time.Unix(1000, 0))
	later := key.TimeKey(time.Unix(2000, 0))
	if earlier.ToKey().Compare(later.ToKey()) >= 0 {
		t.Fatalf("earlier time should sort before later time")
	}
}
