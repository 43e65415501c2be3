package query

import (
	"sort"

	"github.com/tidwall/btree"

	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/logging"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

// RecordComparator orders two records, returning a negative, zero or positive number.
type RecordComparator func(a, b storage.Record) int

// ColumnComparator orders records by the value in one column.
func ColumnComparator(columnIndex int) RecordComparator {
	return func(a, b storage.Record) int {
		return a.Get(columnIndex).Compare(b.Get(columnIndex))
	}
}

// SortIOCost estimates the page I/O of an external merge sort of numPages pages with numBuffers buffers: every
// pass reads and writes the whole relation, and there is one pass to build runs of numBuffers pages plus
// ceil(log_{numBuffers-1}(runs)) merge passes.
func SortIOCost(numPages, numBuffers int) int {
	if numPages == 0 {
		return 0
	}
	common.Assert(numBuffers >= 3, "external sort needs at least 3 buffers, got %d", numBuffers)
	runs := common.CeilDiv(numPages, numBuffers)
	passes := 1
	for runs > 1 {
		runs = common.CeilDiv(runs, numBuffers-1)
		passes++
	}
	return 2 * numPages * passes
}

// SortOperator sorts a stored relation into a new temporary relation using external merge sort within the
// transaction's memory budget.
type SortOperator struct {
	txn        *transaction.TransactionContext
	tableName  string
	comparator RecordComparator
	numBuffers int
}

func NewSortOperator(txn *transaction.TransactionContext, tableName string, comparator RecordComparator) (*SortOperator, error) {
	if txn.NumMemoryPages() < 3 {
		return nil, common.NewError(common.InvalidConfigError, "external sort needs at least 3 memory pages, got %d", txn.NumMemoryPages())
	}
	if _, err := txn.GetHeap(tableName); err != nil {
		return nil, err
	}
	return &SortOperator{txn: txn, tableName: tableName, comparator: comparator, numBuffers: txn.NumMemoryPages()}, nil
}

// Sort produces a new temporary relation holding the records of the input in ascending comparator order and
// returns its name. Records that compare equal keep their input order.
func (s *SortOperator) Sort() (string, error) {
	source, err := s.txn.GetHeap(s.tableName)
	if err != nil {
		return "", err
	}

	runs, err := s.buildRuns(source)
	if err != nil {
		return "", common.WrapError(common.SortError, err, "sorting '%s'", s.tableName)
	}
	numRuns := len(runs)

	passes := 0
	for len(runs) > 1 {
		var merged []*table.Heap
		for i := 0; i < len(runs); i += s.numBuffers - 1 {
			group := runs[i:min(i+s.numBuffers-1, len(runs))]
			run, err := s.mergeRuns(source, group)
			if err != nil {
				return "", common.WrapError(common.SortError, err, "merging runs of '%s'", s.tableName)
			}
			merged = append(merged, run)
		}
		runs = merged
		passes++
	}

	logging.WithTxn(s.txn.ID()).WithField("table", s.tableName).
		WithField("runs", numRuns).WithField("merge_passes", passes).Debug("external sort finished")
	return runs[0].Name(), nil
}

// buildRuns reads the source numBuffers pages at a time and writes each chunk, sorted, as its own run. An empty
// source yields a single empty run.
func (s *SortOperator) buildRuns(source *table.Heap) ([]*table.Heap, error) {
	pages := source.PageIterator()
	// skip the header page
	if _, err := pages.Next(); err != nil {
		return nil, err
	}

	var runs []*table.Heap
	for pages.HasNext() || len(runs) == 0 {
		block, err := source.BlockIterator(pages, s.numBuffers)
		if err != nil {
			return nil, err
		}
		records, err := Drain(block)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(records, func(i, j int) bool {
			return s.comparator(records[i], records[j]) < 0
		})
		run, err := s.writeRun(source, records)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *SortOperator) writeRun(source *table.Heap, records []storage.Record) (*table.Heap, error) {
	run, err := s.txn.CreateTempTable(source.Table().Columns, source.Table().RecordsPerPage)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err = run.Append(rec); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// runHead is the smallest unconsumed record of one input run during a merge.
type runHead struct {
	rec storage.Record
	run int
}

// mergeRuns merges up to numBuffers-1 sorted runs into one and drops the inputs. Ties are broken by run
// order, which keeps the merge stable.
func (s *SortOperator) mergeRuns(source *table.Heap, group []*table.Heap) (*table.Heap, error) {
	heads := btree.NewBTreeG(func(a, b runHead) bool {
		if c := s.comparator(a.rec, b.rec); c != 0 {
			return c < 0
		}
		return a.run < b.run
	})

	cursors := make([]*table.RecordIterator, len(group))
	for i, run := range group {
		cursors[i] = run.RecordIterator()
		rec, err := nextOrNil(cursors[i])
		if err != nil {
			return nil, err
		}
		if !rec.IsNil() {
			heads.Set(runHead{rec: rec, run: i})
		}
	}

	out, err := s.txn.CreateTempTable(source.Table().Columns, source.Table().RecordsPerPage)
	if err != nil {
		return nil, err
	}
	for heads.Len() > 0 {
		head, _ := heads.PopMin()
		if err = out.Append(head.rec); err != nil {
			return nil, err
		}
		rec, err := nextOrNil(cursors[head.run])
		if err != nil {
			return nil, err
		}
		if !rec.IsNil() {
			heads.Set(runHead{rec: rec, run: head.run})
		}
	}

	for _, run := range group {
		if err = s.txn.DropTempTable(run.Name()); err != nil {
			return nil, err
		}
	}
	return out, nil
}
