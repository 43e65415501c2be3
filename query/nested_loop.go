package query

import (
	"github.com/Frederickfan/Database-management-system/iterator"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
)

// nestedLoopIterator joins a block of leftBlockPages left pages against each right page in turn. BNLJ uses
// blocks of B-2 pages, PNLJ blocks of one page.
//
// The loop nests, outer to inner: left blocks, right pages, left records of the block, right records of the
// page. Both record cursors are marked at their first record so that each inner pass can be replayed.
type nestedLoopIterator struct {
	lookahead
	op             *JoinOperator
	leftBlockPages int

	leftPages, rightPages     *table.PageIterator
	leftRecords, rightRecords *iterator.Window[storage.Record]
	leftRecord, rightRecord   storage.Record
	emitted                   int
}

func newNestedLoopIterator(op *JoinOperator, leftBlockPages int) (*nestedLoopIterator, error) {
	it := &nestedLoopIterator{op: op, leftBlockPages: leftBlockPages}
	it.fetch = it.fetchNextRecord

	var err error
	if it.leftPages, err = op.pageIterator(op.leftTableName); err != nil {
		return nil, err
	}
	if it.rightPages, err = op.pageIterator(op.rightTableName); err != nil {
		return nil, err
	}
	// skip the header pages
	if _, err = it.leftPages.Next(); err != nil {
		return nil, err
	}
	if _, err = it.rightPages.Next(); err != nil {
		return nil, err
	}

	if it.leftRecords, err = op.blockIterator(op.leftTableName, it.leftPages, leftBlockPages); err != nil {
		return nil, err
	}
	if it.rightRecords, err = op.blockIterator(op.rightTableName, it.rightPages, 1); err != nil {
		return nil, err
	}
	it.leftRecord = nextRecord(it.leftRecords)
	it.rightRecord = nextRecord(it.rightRecords)
	if it.leftRecord.IsNil() || it.rightRecord.IsNil() {
		// one of the inputs is empty
		it.done = true
		op.logExhausted(0)
		return it, nil
	}
	it.leftRecords.Mark()
	it.rightRecords.Mark()

	it.advance()
	if it.err != nil {
		return nil, it.err
	}
	return it, nil
}

// nextRecord advances an in-memory cursor, returning the zero Record once it is exhausted.
func nextRecord(w *iterator.Window[storage.Record]) storage.Record {
	if !w.HasNext() {
		return storage.Record{}
	}
	rec, _ := w.Next()
	return rec
}

// resetRightRecord rewinds the right page to its first record and marks it again.
func (it *nestedLoopIterator) resetRightRecord() {
	it.rightRecords.Reset()
	it.rightRecord = nextRecord(it.rightRecords)
	it.rightRecords.Mark()
}

// resetLeftRecord rewinds the left block to its first record and marks it again.
func (it *nestedLoopIterator) resetLeftRecord() {
	it.leftRecords.Reset()
	it.leftRecord = nextRecord(it.leftRecords)
	it.leftRecords.Mark()
}

func (it *nestedLoopIterator) fetchNextRecord() (storage.Record, bool, error) {
	var err error
	for {
		switch {
		case !it.leftRecord.IsNil() && !it.rightRecord.IsNil():
			leftValue, rightValue := it.op.joinValues(it.leftRecord, it.rightRecord)
			matched := leftValue.Equals(rightValue)
			var out storage.Record
			if matched {
				out = it.leftRecord.Concat(it.rightRecord)
			}
			it.rightRecord = nextRecord(it.rightRecords)
			if matched {
				it.emitted++
				return out, true, nil
			}
		case it.leftRecords.HasNext():
			// next left record of the block against the same right page
			it.leftRecord = nextRecord(it.leftRecords)
			it.resetRightRecord()
		case it.rightPages.HasNext():
			// block done with this right page: move to the next one
			if it.rightRecords, err = it.op.blockIterator(it.op.rightTableName, it.rightPages, 1); err != nil {
				return storage.Record{}, false, err
			}
			it.rightRecord = nextRecord(it.rightRecords)
			it.rightRecords.Mark()
			it.resetLeftRecord()
		case it.leftPages.HasNext():
			// block done with the whole right relation: load the next block and rescan the right side
			if it.leftRecords, err = it.op.blockIterator(it.op.leftTableName, it.leftPages, it.leftBlockPages); err != nil {
				return storage.Record{}, false, err
			}
			it.leftRecord = nextRecord(it.leftRecords)
			it.leftRecords.Mark()

			if it.rightPages, err = it.op.pageIterator(it.op.rightTableName); err != nil {
				return storage.Record{}, false, err
			}
			if _, err = it.rightPages.Next(); err != nil {
				return storage.Record{}, false, err
			}
			if it.rightRecords, err = it.op.blockIterator(it.op.rightTableName, it.rightPages, 1); err != nil {
				return storage.Record{}, false, err
			}
			it.resetRightRecord()
		default:
			it.op.logExhausted(it.emitted)
			return storage.Record{}, false, nil
		}
	}
}
