package query

import (
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

// SortMergeOperator sorts both inputs on their join columns with external merge sort and merges the sorted
// relations, replaying each right duplicate-key group once per matching left record.
type SortMergeOperator struct {
	*JoinOperator
	cost int
}

// NewSortMergeOperator builds a sort-merge join of left and right on leftColumn = rightColumn. It fails with
// InvalidConfigError if the transaction's budget is below 3 pages.
func NewSortMergeOperator(left, right QueryOperator, leftColumn, rightColumn string, txn *transaction.TransactionContext) (*SortMergeOperator, error) {
	base, err := newJoinOperator(left, right, leftColumn, rightColumn, txn, SortMerge)
	if err != nil {
		return nil, err
	}
	if err = base.requireBuffers(3); err != nil {
		return nil, err
	}
	op := &SortMergeOperator{JoinOperator: base}
	op.cost = SortMergeIOCost(op.numBuffers, left.Stats().NumPages, right.Stats().NumPages)
	op.logConstruction(op.cost)
	return op, nil
}

// SortMergeIOCost is the cost of sorting both inputs plus one pass over each sorted relation.
func SortMergeIOCost(numBuffers, numLeftPages, numRightPages int) int {
	return SortIOCost(numLeftPages, numBuffers) + SortIOCost(numRightPages, numBuffers) + numLeftPages + numRightPages
}

func (op *SortMergeOperator) IOCost() int {
	return op.cost
}

// Iterator sorts both inputs into new temporary relations of the transaction and returns the merging cursor.
func (op *SortMergeOperator) Iterator() (RecordIterator, error) {
	it, err := newSortMergeIterator(op.JoinOperator)
	if err != nil {
		return nil, err
	}
	return it, nil
}

type sortMergeIterator struct {
	lookahead
	op *JoinOperator

	leftRecords, rightRecords *table.RecordIterator
	leftRecord, rightRecord   storage.Record
	// marked is set while the right cursor's mark holds the start of the current duplicate-key group
	marked  bool
	emitted int
}

func newSortMergeIterator(op *JoinOperator) (*sortMergeIterator, error) {
	it := &sortMergeIterator{op: op}
	it.fetch = it.fetchNextRecord

	leftSorted, err := sortRelation(op, op.leftTableName, op.leftColumnIndex)
	if err != nil {
		return nil, err
	}
	rightSorted, err := sortRelation(op, op.rightTableName, op.rightColumnIndex)
	if err != nil {
		return nil, err
	}
	if it.leftRecords, err = op.recordIterator(leftSorted); err != nil {
		return nil, err
	}
	if it.rightRecords, err = op.recordIterator(rightSorted); err != nil {
		return nil, err
	}

	if err = it.advanceLeft(); err != nil {
		return nil, err
	}
	if err = it.advanceRight(); err != nil {
		return nil, err
	}
	it.advance()
	if it.err != nil {
		return nil, it.err
	}
	return it, nil
}

func sortRelation(op *JoinOperator, tableName string, columnIndex int) (string, error) {
	sorter, err := NewSortOperator(op.txn, tableName, ColumnComparator(columnIndex))
	if err != nil {
		return "", err
	}
	return sorter.Sort()
}

func (it *sortMergeIterator) advanceLeft() (err error) {
	it.leftRecord, err = nextOrNil(it.leftRecords)
	return err
}

func (it *sortMergeIterator) advanceRight() (err error) {
	it.rightRecord, err = nextOrNil(it.rightRecords)
	return err
}

// compare orders the current left record against the current right record by join value.
func (it *sortMergeIterator) compare() int {
	leftValue, rightValue := it.op.joinValues(it.leftRecord, it.rightRecord)
	return leftValue.Compare(rightValue)
}

func (it *sortMergeIterator) fetchNextRecord() (storage.Record, bool, error) {
	for {
		if !it.marked {
			// Align both cursors on the next key present on both sides.
			for !it.leftRecord.IsNil() && !it.rightRecord.IsNil() && it.compare() < 0 {
				if err := it.advanceLeft(); err != nil {
					return storage.Record{}, false, err
				}
			}
			for !it.leftRecord.IsNil() && !it.rightRecord.IsNil() && it.compare() > 0 {
				if err := it.advanceRight(); err != nil {
					return storage.Record{}, false, err
				}
			}
			if it.leftRecord.IsNil() || it.rightRecord.IsNil() {
				it.op.logExhausted(it.emitted)
				return storage.Record{}, false, nil
			}
			if it.compare() != 0 {
				continue
			}
			it.rightRecords.Mark()
			it.marked = true
		} else if !it.leftRecord.IsNil() && !it.rightRecord.IsNil() && it.compare() == 0 {
			out := it.leftRecord.Concat(it.rightRecord)
			if err := it.advanceRight(); err != nil {
				return storage.Record{}, false, err
			}
			it.emitted++
			return out, true, nil
		} else {
			// The group is done for this left record: replay it for the next one.
			it.rightRecords.Reset()
			if err := it.advanceLeft(); err != nil {
				return storage.Record{}, false, err
			}
			if err := it.advanceRight(); err != nil {
				return storage.Record{}, false, err
			}
			it.marked = false
		}
	}
}
