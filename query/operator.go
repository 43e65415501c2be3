// Package query implements the pull-based query operators: scans, selection, materialization, external sort and
// the three equi-join algorithms.
package query

import (
	"errors"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/iterator"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
)

// RecordIterator is the output contract of every operator. HasNext is a pure query of whether a record is
// ready; Next returns and consumes it, or common.ErrNoSuchElement if there is none.
type RecordIterator = iterator.Iterator[storage.Record]

// QueryOperator is a node of a physical query plan.
type QueryOperator interface {
	// Schema returns the output columns in order.
	Schema() []catalog.Column
	// Stats returns the estimated cardinality and page count of the output.
	Stats() table.Stats
	// IOCost returns the estimated number of page reads needed to produce the output.
	IOCost() int
	// Iterator starts a fresh execution of the operator.
	Iterator() (RecordIterator, error)
	String() string
}

// columnIndex resolves name against schema.
func columnIndex(schema []catalog.Column, name string) (int, error) {
	for i, col := range schema {
		if col.Name == name {
			return i, nil
		}
	}
	return -1, common.NewError(common.NoSuchColumnError, "no column named '%s' in %v", name, schema)
}

func columnTypes(schema []catalog.Column) []common.Type {
	types := make([]common.Type, len(schema))
	for i, col := range schema {
		types[i] = col.Type
	}
	return types
}

// estimatePages returns the number of full heap pages needed to hold numRecords records of schema.
func estimatePages(schema []catalog.Column, numRecords int) int {
	if numRecords == 0 {
		return 0
	}
	return common.CeilDiv(numRecords, storage.HeapPageCapacity(storage.NewRecordDesc(columnTypes(schema))))
}

// nextOrNil advances it and returns the record, or the zero Record if it is exhausted.
func nextOrNil(it RecordIterator) (storage.Record, error) {
	if !it.HasNext() {
		return storage.Record{}, nil
	}
	rec, err := it.Next()
	if errors.Is(err, common.ErrNoSuchElement) {
		return storage.Record{}, nil
	}
	return rec, err
}

// lookahead holds the single precomputed output record of an iterator. fetch computes the next record; it
// reports ok == false once the input is exhausted, after which it is never called again.
type lookahead struct {
	fetch func() (rec storage.Record, ok bool, err error)

	next storage.Record
	ok   bool
	done bool
	err  error
}

func (l *lookahead) advance() {
	if l.done {
		l.ok = false
		return
	}
	rec, ok, err := l.fetch()
	if err != nil {
		l.err = err
		ok = false
	}
	l.next, l.ok = rec, ok
	if !ok {
		l.done = true
	}
}

// HasNext also reports true when an error is pending, so that the caller collects it from Next.
func (l *lookahead) HasNext() bool {
	return l.ok || l.err != nil
}

func (l *lookahead) Next() (storage.Record, error) {
	if l.err != nil {
		err := l.err
		l.err = nil
		return storage.Record{}, err
	}
	if !l.ok {
		return storage.Record{}, common.ErrNoSuchElement
	}
	rec := l.next
	l.advance()
	return rec, nil
}

// Drain collects every record of it.
func Drain(it RecordIterator) ([]storage.Record, error) {
	var out []storage.Record
	for it.HasNext() {
		rec, err := it.Next()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
