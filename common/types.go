package common

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

const (
	PageSize     int = 4096
	IntSize      int = 8
	FloatSize    int = 8
	BoolSize     int = 8
	StringLength int = 32
)

type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	FloatType
	BoolType
	StringType
)

// Size returns the fixed-width storage size of the type in bytes. Booleans are padded to a full word so that
// every record stays 8-byte aligned on a page.
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case FloatType:
		return FloatSize
	case BoolType:
		return BoolSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case BoolType:
		return "bool"
	case StringType:
		return "string"
	}
	return "unknown"
}

// MarshalText lets catalog metadata store types by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name written by MarshalText.
func (t *Type) UnmarshalText(text []byte) error {
	switch string(text) {
	case "int":
		*t = IntType
	case "float":
		*t = FloatType
	case "bool":
		*t = BoolType
	case "string":
		*t = StringType
	default:
		return fmt.Errorf("unknown type %q", string(text))
	}
	return nil
}

// ObjectID is a unique identifier for a table in the database.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// PageID uniquely identifies a page within the database.
type PageID struct {
	Oid     ObjectID
	PageNum int32
}

func (p *PageID) String() string {
	return fmt.Sprintf("Page(%d, %d)", p.Oid, p.PageNum)
}

// IsNil checks if the PageID is valid.
func (p *PageID) IsNil() bool {
	return p.Oid == 0
}

// RecordID identifies a specific record in the database via its PageID and Slot index.
type RecordID struct {
	PageID
	Slot int32
}

func (r *RecordID) IsNil() bool {
	return r.PageID.IsNil()
}

func (r *RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.Slot)
}

type TransactionID uint64

const InvalidTransactionID TransactionID = 0

// Value is a typed scalar stored in a record. Two values are only comparable when they share the same Type.
type Value struct {
	t Type
	i int64
	f float64
	s string
}

func NewIntValue(v int64) Value {
	return Value{t: IntType, i: v}
}

func NewFloatValue(v float64) Value {
	return Value{t: FloatType, f: v}
}

func NewBoolValue(v bool) Value {
	val := Value{t: BoolType}
	if v {
		val.i = 1
	}
	return val
}

// NewStringValue creates a new string Value. Strings longer than StringLength cannot be stored on a page.
func NewStringValue(v string) Value {
	Assert(len(v) <= StringLength, "string too long: %d bytes", len(v))
	return Value{t: StringType, s: v}
}

// IsNil returns true if the Value is uninitialized.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

func (v Value) Type() Type {
	return v.t
}

func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue: %s", v.t)
	return v.i
}

func (v Value) FloatValue() float64 {
	Assert(v.t == FloatType, "type mismatch in FloatValue: %s", v.t)
	return v.f
}

func (v Value) BoolValue() bool {
	Assert(v.t == BoolType, "type mismatch in BoolValue: %s", v.t)
	return v.i != 0
}

func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue: %s", v.t)
	return v.s
}

// SizeInBytes returns the serialization size (fixed width).
func (v Value) SizeInBytes() int {
	return v.t.Size()
}

// WriteTo serializes the Value into storage format.
func (v Value) WriteTo(data []byte) {
	Assert(len(data) >= v.SizeInBytes(), "buffer too small")
	switch v.t {
	case IntType, BoolType:
		binary.LittleEndian.PutUint64(data, uint64(v.i))
	case FloatType:
		binary.LittleEndian.PutUint64(data, math.Float64bits(v.f))
	case StringType:
		n := copy(data, v.s)
		for i := n; i < StringLength; i++ {
			data[i] = 0
		}
	default:
		panic("cannot serialize an uninitialized value")
	}
}

// ReadValue deserializes a value of type t from a raw storage buffer. The result never aliases source.
func ReadValue(t Type, source []byte) Value {
	switch t {
	case IntType:
		return NewIntValue(int64(binary.LittleEndian.Uint64(source)))
	case FloatType:
		return NewFloatValue(math.Float64frombits(binary.LittleEndian.Uint64(source)))
	case BoolType:
		return NewBoolValue(binary.LittleEndian.Uint64(source) != 0)
	case StringType:
		n := StringLength
		for i := 0; i < StringLength; i++ {
			if source[i] == 0 {
				n = i
				break
			}
		}
		return Value{t: StringType, s: string(source[:n])}
	}
	panic("unknown type")
}

// Equals is exact equality. Values of different types are never equal.
func (v Value) Equals(other Value) bool {
	if v.t != other.t {
		return false
	}
	return v.Compare(other) == 0
}

// Compare compares two Values of the same type. Floats are totally ordered with NaN sorting last.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison: %s vs %s", v.t, other.t)

	switch v.t {
	case IntType, BoolType:
		return compareOrdered(v.i, other.i)
	case FloatType:
		return compareFloats(v.f, other.f)
	case StringType:
		return compareOrdered(v.s, other.s)
	}
	panic("unreachable")
}

// compareFloats orders NaN after every other float and equal only to itself.
func compareFloats(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return compareOrdered(a, b)
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (v Value) String() string {
	switch v.t {
	case IntType:
		return strconv.FormatInt(v.i, 10)
	case FloatType:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case BoolType:
		return strconv.FormatBool(v.i != 0)
	case StringType:
		return v.s
	}
	return "<nil>"
}
