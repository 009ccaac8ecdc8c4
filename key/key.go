// Package key implements the order-preserving byte encodings used to turn
// typed Go values into the sorted binary keys the storage engine compares
// with bytes.Compare.
package key

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Key is an owned, order-preserving byte sequence. Two keys compare equal,
// less, or greater exactly as their byte slices do under bytes.Compare.
type Key []byte

// Compare returns -1, 0 or 1 following bytes.Compare semantics.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k, other)
}

// HasPrefix reports whether k starts with prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return bytes.HasPrefix(k, prefix)
}

// Clone returns an independent copy of the key bytes.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// ToKey is implemented by any Go type that can be flattened into an
// order-preserving Key. TypeName identifies the concrete Go type for the
// runtime mismatch check described by MismatchedKeyType; CheckType lets a
// type opt out of that check (the generic Key type does, so callers can
// query any index generically).
type ToKey interface {
	ToKey() Key
	TypeName() string
}

// ToKey returns k itself: a Key is already in its encoded form.
func (k Key) ToKey() Key { return k }

// TypeName identifies k as the generic encoded-key type.
func (k Key) TypeName() string { return "key.Key" }

// CheckType always returns false: a caller passing a raw Key is
// bypassing the typed accessors on purpose, so the runtime type check
// does not apply to it.
func (k Key) CheckType() bool { return false }

// CheckTyped is an optional extension: types that return false from
// CheckType() are exempt from the MismatchedKeyType runtime check.
type CheckTyped interface {
	CheckType() bool
}

// Concat concatenates the encodings of several key fragments, used for
// tuples, slices, and composite secondary+primary keys.
func Concat(parts ...Key) Key {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(Key, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Delimiter separates a secondary key's bytes from the primary key's bytes
// in the legacy composite-key layout.
const Delimiter byte = 0x00

// WithDelimiter appends Delimiter then other to k, producing a key in the
// legacy composite secondary-index layout.
func (k Key) WithDelimiter(other Key) Key {
	out := make(Key, 0, len(k)+1+len(other))
	out = append(out, k...)
	out = append(out, Delimiter)
	out = append(out, other...)
	return out
}

// --- primitive encoders -----------------------------------------------

// Bool encodes a bool as a single byte, 0 or 1.
func Bool(v bool) Key {
	if v {
		return Key{1}
	}
	return Key{0}
}

// Char encodes a rune as its 4-byte big-endian scalar value.
func Char(v rune) Key {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return Key(b[:])
}

// Uint8 encodes an unsigned 8-bit integer.
func Uint8(v uint8) Key { return Key{v} }

// Uint16 encodes an unsigned 16-bit integer, big-endian.
func Uint16(v uint16) Key {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return Key(b[:])
}

// Uint32 encodes an unsigned 32-bit integer, big-endian.
func Uint32(v uint32) Key {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return Key(b[:])
}

// Uint64 encodes an unsigned 64-bit integer, big-endian.
func Uint64(v uint64) Key {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return Key(b[:])
}

// Int8 encodes a signed 8-bit integer with the sign bit flipped so that
// lexicographic byte order matches numeric order.
func Int8(v int8) Key {
	return Key{uint8(v) ^ 0x80}
}

// Int16 encodes a signed 16-bit integer with the sign bit flipped.
func Int16(v int16) Key {
	u := uint16(v) ^ 0x8000
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], u)
	return Key(b[:])
}

// Int32 encodes a signed 32-bit integer with the sign bit flipped.
func Int32(v int32) Key {
	u := uint32(v) ^ 0x80000000
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], u)
	return Key(b[:])
}

// Int64 encodes a signed 64-bit integer with the sign bit flipped.
func Int64(v int64) Key {
	u := uint64(v) ^ 0x8000000000000000
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	return Key(b[:])
}

// Float32 encodes a float32 with an order-preserving transform: flip the
// sign bit for non-negative values, flip every bit for negative values.
// A raw big-endian bit-pattern encoding would not order correctly across
// the sign bit; this transform fixes that.
func Float32(v float32) Key {
	bits := math.Float32bits(v)
	if bits&0x80000000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x80000000
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], bits)
	return Key(b[:])
}

// Float64 encodes a float64 with the same order-preserving transform as
// Float32.
func Float64(v float64) Key {
	bits := math.Float64bits(v)
	if bits&0x8000000000000000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x8000000000000000
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return Key(b[:])
}

// String encodes a string as its raw UTF-8 bytes.
func String(v string) Key {
	return Key(v)
}

// Bytes encodes a byte slice verbatim.
func Bytes(v []byte) Key {
	return Key(v)
}

// Optional encodes an optional value: empty when absent (present=false),
// otherwise the wrapped key.
func Optional(present bool, v Key) Key {
	if !present {
		return Key{}
	}
	return v
}
