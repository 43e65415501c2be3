package query

import (
	"fmt"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
)

type PredicateOperator int

const (
	Equals PredicateOperator = iota
	NotEquals
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (op PredicateOperator) String() string {
	switch op {
	case Equals:
		return "="
	case NotEquals:
		return "!="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	}
	return "?"
}

// holds reports whether a comparison result satisfies the operator.
func (op PredicateOperator) holds(cmp int) bool {
	switch op {
	case Equals:
		return cmp == 0
	case NotEquals:
		return cmp != 0
	case LessThan:
		return cmp < 0
	case LessThanOrEqual:
		return cmp <= 0
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEqual:
		return cmp >= 0
	}
	panic("unknown predicate operator")
}

// SelectOperator keeps the records of its child whose column compares to a constant as requested.
type SelectOperator struct {
	child       QueryOperator
	column      string
	columnIndex int
	op          PredicateOperator
	value       common.Value
}

func NewSelectOperator(child QueryOperator, column string, op PredicateOperator, value common.Value) (*SelectOperator, error) {
	idx, err := columnIndex(child.Schema(), column)
	if err != nil {
		return nil, err
	}
	if t := child.Schema()[idx].Type; t != value.Type() {
		return nil, common.NewError(common.TypeMismatchError, "cannot compare column '%s' of type %s with %s", column, t, value.Type())
	}
	return &SelectOperator{child: child, column: column, columnIndex: idx, op: op, value: value}, nil
}

func (s *SelectOperator) Schema() []catalog.Column {
	return s.child.Schema()
}

// Stats assumes a fixed selectivity: 1/10 for equality, 1/2 for everything else.
func (s *SelectOperator) Stats() table.Stats {
	childStats := s.child.Stats()
	divisor := 2
	if s.op == Equals {
		divisor = 10
	}
	numRecords := common.CeilDiv(childStats.NumRecords, divisor)
	return table.Stats{NumRecords: numRecords, NumPages: estimatePages(s.Schema(), numRecords)}
}

func (s *SelectOperator) IOCost() int {
	return s.child.IOCost()
}

func (s *SelectOperator) Iterator() (RecordIterator, error) {
	childIter, err := s.child.Iterator()
	if err != nil {
		return nil, err
	}
	it := &selectIterator{op: s, child: childIter}
	it.fetch = it.fetchNextRecord
	it.advance()
	return it, nil
}

func (s *SelectOperator) String() string {
	return fmt.Sprintf("Select(%s %s %s)\n  %s", s.column, s.op, s.value, s.child)
}

type selectIterator struct {
	lookahead
	op    *SelectOperator
	child RecordIterator
}

func (it *selectIterator) fetchNextRecord() (storage.Record, bool, error) {
	for {
		rec, err := nextOrNil(it.child)
		if err != nil || rec.IsNil() {
			return storage.Record{}, false, err
		}
		if it.op.op.holds(rec.Get(it.op.columnIndex).Compare(it.op.value)) {
			return rec, true, nil
		}
	}
}
