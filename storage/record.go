package storage

import (
	"fmt"
	"strings"

	"github.com/Frederickfan/Database-management-system/common"
)

// Record is an ordered, fixed-arity sequence of Values. It is immutable once constructed: accessors hand out
// copies so no caller can change a record another operator still holds.
type Record struct {
	values []common.Value
}

// NewRecord creates a Record holding a private copy of values.
func NewRecord(values ...common.Value) Record {
	return Record{values: append([]common.Value(nil), values...)}
}

// Len returns the number of fields in the record.
func (r Record) Len() int {
	return len(r.values)
}

// Get returns the value at column i.
func (r Record) Get(i int) common.Value {
	return r.values[i]
}

// Values returns a copy of the record's values.
func (r Record) Values() []common.Value {
	return append([]common.Value(nil), r.values...)
}

// IsNil checks if the record is the zero value.
func (r Record) IsNil() bool {
	return r.values == nil
}

// Concat returns a new record with r's values followed by right's values, each side in its own order.
// This is the shape of every joined output record.
func (r Record) Concat(right Record) Record {
	values := make([]common.Value, 0, len(r.values)+len(right.values))
	values = append(values, r.values...)
	values = append(values, right.values...)
	return Record{values: values}
}

// Equal reports whether both records hold equal values in the same positions.
func (r Record) Equal(other Record) bool {
	if len(r.values) != len(other.values) {
		return false
	}
	for i := range r.values {
		if !r.values[i].Equals(other.values[i]) {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// RawRecord is the physical view of a record: a compact slice of bytes laid out as on a heap page. A RecordDesc
// is needed to interpret it.
type RawRecord []byte

// RecordDesc describes the physical binary layout of a RawRecord.
type RecordDesc struct {
	fields      []common.Type
	offsets     []int
	bytesPerRow int
}

// NewRecordDesc creates a descriptor for the given list of field types.
func NewRecordDesc(fields []common.Type) *RecordDesc {
	size := 0
	offsets := make([]int, len(fields))
	for i, f := range fields {
		offsets[i] = size
		size += f.Size()
	}
	common.Assert(common.AlignedTo8(size), "record size should always be aligned to 8 bytes")
	common.Assert(size <= common.PageSize-heapPageHeaderSize-8, "record does not fit on a page")
	return &RecordDesc{fields: append([]common.Type(nil), fields...), offsets: offsets, bytesPerRow: size}
}

func (desc *RecordDesc) String() string {
	return fmt.Sprintf("%v", desc.fields)
}

func (desc *RecordDesc) NumColumns() int {
	return len(desc.fields)
}

// BytesPerRecord returns the fixed size in bytes of one encoded record.
func (desc *RecordDesc) BytesPerRecord() int {
	return desc.bytesPerRow
}

func (desc *RecordDesc) FieldTypes() []common.Type {
	return desc.fields
}

// Validate checks that rec has this descriptor's arity and field types.
func (desc *RecordDesc) Validate(rec Record) error {
	if rec.Len() != len(desc.fields) {
		return common.NewError(common.TypeMismatchError, "record has %d fields, schema %s has %d", rec.Len(), desc, len(desc.fields))
	}
	for i, t := range desc.fields {
		if rec.Get(i).Type() != t {
			return common.NewError(common.TypeMismatchError, "field %d of record %s is %s, schema expects %s", i, rec, rec.Get(i).Type(), t)
		}
	}
	return nil
}

// Encode serializes rec into buf, which must hold at least BytesPerRecord bytes.
func (desc *RecordDesc) Encode(rec Record, buf RawRecord) {
	common.Assert(len(buf) >= desc.bytesPerRow, "buffer too small")
	common.Assert(rec.Len() == len(desc.fields), "record descriptor mismatch")
	for i, v := range rec.values {
		common.Assert(v.Type() == desc.fields[i], "type mismatch at field %d", i)
		v.WriteTo(buf[desc.offsets[i]:])
	}
}

// Decode materializes the record stored in raw. The result does not alias raw, so it stays valid after the page
// holding raw is unpinned or evicted.
func (desc *RecordDesc) Decode(raw RawRecord) Record {
	values := make([]common.Value, len(desc.fields))
	for i, t := range desc.fields {
		values[i] = common.ReadValue(t, raw[desc.offsets[i]:])
	}
	return Record{values: values}
}
