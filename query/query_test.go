package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/iterator"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

var (
	leftColumns  = []catalog.Column{{Name: "id", Type: common.IntType}, {Name: "name", Type: common.StringType}}
	rightColumns = []catalog.Column{{Name: "rid", Type: common.IntType}, {Name: "tag", Type: common.StringType}}
)

type testDB struct {
	tables *table.Manager
	txns   *transaction.TransactionManager
}

func makeTestDB(t *testing.T) *testDB {
	return makeTestDBWithPool(t, 64)
}

func makeTestDBWithPool(t *testing.T, numFrames int) *testDB {
	dir := t.TempDir()
	provider := catalog.NewDiskCatalogManager(dir)
	cat, err := catalog.NewCatalog(provider)
	require.NoError(t, err)
	tables, err := table.NewManager(cat, provider, storage.NewBufferPool(numFrames, storage.NewDiskStorageManager(dir)))
	require.NoError(t, err)
	return &testDB{tables: tables, txns: transaction.NewTransactionManager(tables)}
}

func (db *testDB) begin(t *testing.T, numMemoryPages int) *transaction.TransactionContext {
	txn := db.txns.Begin(numMemoryPages)
	t.Cleanup(func() { _ = txn.Close() })
	return txn
}

func (db *testDB) createTable(t *testing.T, name string, columns []catalog.Column, recordsPerPage int, records ...storage.Record) {
	heap, err := db.tables.CreateTable(name, columns, recordsPerPage)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, heap.Append(rec))
	}
}

// pinPages pins the first n pages of a table until the returned func is called.
func (db *testDB) pinPages(t *testing.T, name string, n int) func() {
	heap, err := db.tables.GetHeap(name)
	require.NoError(t, err)
	bp := db.tables.BufferPool()
	var frames []*storage.PageFrame
	for i := 0; i < n; i++ {
		frame, err := bp.GetPage(common.PageID{Oid: heap.Table().Oid, PageNum: int32(i)})
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	return func() {
		for _, frame := range frames {
			bp.UnpinPage(frame, false)
		}
	}
}

func pair(id int64, s string) storage.Record {
	return storage.NewRecord(common.NewIntValue(id), common.NewStringValue(s))
}

func scan(t *testing.T, txn *transaction.TransactionContext, name string) *SequentialScanOperator {
	op, err := NewSequentialScanOperator(txn, name)
	require.NoError(t, err)
	return op
}

func drain(t *testing.T, op QueryOperator) []string {
	it, err := op.Iterator()
	require.NoError(t, err)
	records, err := Drain(it)
	require.NoError(t, err)
	return recordStrings(records)
}

func recordStrings(records []storage.Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.String()
	}
	return out
}

// stubOperator reports fixed statistics and produces no records.
type stubOperator struct {
	schema []catalog.Column
	stats  table.Stats
}

func (s *stubOperator) Schema() []catalog.Column {
	return s.schema
}

func (s *stubOperator) Stats() table.Stats {
	return s.stats
}

func (s *stubOperator) IOCost() int {
	return s.stats.NumPages
}

func (s *stubOperator) Iterator() (RecordIterator, error) {
	return iterator.Empty[storage.Record](), nil
}

func (s *stubOperator) String() string {
	return "Stub"
}
