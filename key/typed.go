package key

import (
	"fmt"
	"time"
)

// The wrapper types below give the common primitive types a ToKey
// implementation plus a stable TypeName for the runtime key-type check
// (MismatchedKeyType). Each encodes to order-preserving bytes instead of
// holding the native Go value behind a Compare method.

// BoolKey is a ToKey wrapper for bool.
type BoolKey bool

func (k BoolKey) ToKey() Key      { return Bool(bool(k)) }
func (BoolKey) TypeName() string  { return "bool" }
func (k BoolKey) String() string  { return fmt.Sprintf("%t", bool(k)) }

// CharKey is a ToKey wrapper for rune.
type CharKey rune

func (k CharKey) ToKey() Key     { return Char(rune(k)) }
func (CharKey) TypeName() string { return "char" }

// Int8Key .. Int64Key are ToKey wrappers for signed integers.
type (
	Int8Key  int8
	Int16Key int16
	Int32Key int32
	Int64Key int64
)

func (k Int8Key) ToKey() Key      { return Int8(int8(k)) }
func (Int8Key) TypeName() string  { return "i8" }
func (k Int16Key) ToKey() Key     { return Int16(int16(k)) }
func (Int16Key) TypeName() string { return "i16" }
func (k Int32Key) ToKey() Key     { return Int32(int32(k)) }
func (Int32Key) TypeName() string { return "i32" }
func (k Int64Key) ToKey() Key     { return Int64(int64(k)) }
func (Int64Key) TypeName() string { return "i64" }

// Uint8Key .. Uint64Key are ToKey wrappers for unsigned integers.
type (
	Uint8Key  uint8
	Uint16Key uint16
	Uint32Key uint32
	Uint64Key uint64
)

func (k Uint8Key) ToKey() Key      { return Uint8(uint8(k)) }
func (Uint8Key) TypeName() string  { return "u8" }
func (k Uint16Key) ToKey() Key     { return Uint16(uint16(k)) }
func (Uint16Key) TypeName() string { return "u16" }
func (k Uint32Key) ToKey() Key     { return Uint32(uint32(k)) }
func (Uint32Key) TypeName() string { return "u32" }
func (k Uint64Key) ToKey() Key     { return Uint64(uint64(k)) }
func (Uint64Key) TypeName() string { return "u64" }

// Float32Key / Float64Key are ToKey wrappers for floating point keys.
// Callers should prefer integer or string keys where exact ordering
// matters for values that may carry NaN; see DESIGN.md for the
// order-preserving encoding this uses.
type (
	Float32Key float32
	Float64Key float64
)

func (k Float32Key) ToKey() Key     { return Float32(float32(k)) }
func (Float32Key) TypeName() string { return "f32" }
func (k Float64Key) ToKey() Key     { return Float64(float64(k)) }
func (Float64Key) TypeName() string { return "f64" }

// StringKey is a ToKey wrapper for string.
type StringKey string

func (k StringKey) ToKey() Key     { return String(string(k)) }
func (StringKey) TypeName() string { return "String" }
func (k StringKey) String() string { return string(k) }

// BytesKey is a ToKey wrapper for []byte.
type BytesKey []byte

func (k BytesKey) ToKey() Key     { return Bytes(k) }
func (BytesKey) TypeName() string { return "Bytes" }

// TimeKey is a ToKey wrapper for time.Time, encoding UnixNano as a sorted
// signed 64-bit integer.
type TimeKey time.Time

func (k TimeKey) ToKey() Key     { return Int64(time.Time(k).UnixNano()) }
func (TimeKey) TypeName() string { return "DateTime" }
func (k TimeKey) String() string { return time.Time(k).Format(time.RFC3339Nano) }

// Raw is a ToKey wrapper around an already-encoded Key. Per the source
// (native_db's ToKey for Key), it disables the runtime type check so a
// generic Key can be used to query any index regardless of its declared
// type.
type Raw Key

func (k Raw) ToKey() Key        { return Key(k) }
func (Raw) TypeName() string    { return "Key" }
func (Raw) CheckType() bool     { return false }

// Option wraps an optional ToKey value for use as an optional secondary
// key field. Present=false encodes as the empty key (see Optional()).
type Option[T ToKey] struct {
	Present bool
	Value   T
}

func Some[T ToKey](v T) Option[T] { return Option[T]{Present: true, Value: v} }
func None[T ToKey]() Option[T]    { var zero T; return Option[T]{Present: false, Value: zero} }

func (o Option[T]) ToKey() Key {
	if !o.Present {
		return Key{}
	}
	return o.Value.ToKey()
}

func (o Option[T]) TypeName() string {
	var zero T
	return "Option<" + zero.TypeName() + ">"
}
