package transaction

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
)

var testColumns = []catalog.Column{{Name: "id", Type: common.IntType}}

func makeTestTransactionManager(t *testing.T) *TransactionManager {
	dir := t.TempDir()
	provider := catalog.NewDiskCatalogManager(dir)
	cat, err := catalog.NewCatalog(provider)
	require.NoError(t, err)
	tables, err := table.NewManager(cat, provider, storage.NewBufferPool(8, storage.NewDiskStorageManager(dir)))
	require.NoError(t, err)
	return NewTransactionManager(tables)
}

func TestTransaction_TempTablesAreUniqueAndDroppedOnClose(t *testing.T) {
	tm := makeTestTransactionManager(t)
	txn1 := tm.Begin(5)
	txn2 := tm.Begin(3)
	assert.NotEqual(t, txn1.ID(), txn2.ID())
	assert.Equal(t, 5, txn1.NumMemoryPages())
	assert.Equal(t, 2, tm.NumActive())

	a, err := txn1.CreateTempTable(testColumns, 0)
	require.NoError(t, err)
	b, err := txn1.CreateTempTable(testColumns, 0)
	require.NoError(t, err)
	c, err := txn2.CreateTempTable(testColumns, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Name(), b.Name())
	assert.NotEqual(t, a.Name(), c.Name())
	assert.True(t, a.Table().Temporary)

	require.NoError(t, a.Append(storage.NewRecord(common.NewIntValue(1))))
	got, err := txn1.GetHeap(a.Name())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, txn1.Close())
	assert.Equal(t, 0, txn1.NumTempTables())
	_, err = txn2.GetHeap(a.Name())
	assert.True(t, common.IsCode(err, common.NoSuchObjectError))
	_, err = txn2.GetHeap(c.Name())
	assert.NoError(t, err, "other transactions keep their temporary tables")
	assert.Equal(t, 1, tm.NumActive())

	// Closing twice is a no-op.
	require.NoError(t, txn1.Close())

	require.NoError(t, tm.CloseAll())
	assert.Equal(t, 0, tm.NumActive())
}

func TestTransaction_DropTempTable(t *testing.T) {
	tm := makeTestTransactionManager(t)
	txn := tm.Begin(3)
	defer func() { _ = txn.Close() }()

	heap, err := txn.CreateTempTable(testColumns, 0)
	require.NoError(t, err)
	require.NoError(t, txn.DropTempTable(heap.Name()))
	assert.Equal(t, 0, txn.NumTempTables())
	assert.True(t, common.IsCode(txn.DropTempTable(heap.Name()), common.NoSuchObjectError))
}

func TestTransaction_CreateTempTableAfterClose(t *testing.T) {
	tm := makeTestTransactionManager(t)
	txn := tm.Begin(3)
	require.NoError(t, txn.Close())

	heap, err := txn.CreateTempTable(testColumns, 0)
	assert.Nil(t, heap)
	assert.True(t, common.IsCode(err, common.InvalidConfigError), "got %v", err)
	assert.Equal(t, 0, txn.NumTempTables())
}

func TestTransaction_FailedTempTableIsNotTracked(t *testing.T) {
	dir := t.TempDir()
	provider := catalog.NewDiskCatalogManager(dir)
	cat, err := catalog.NewCatalog(provider)
	require.NoError(t, err)
	bp := storage.NewBufferPool(1, storage.NewDiskStorageManager(dir))
	tables, err := table.NewManager(cat, provider, bp)
	require.NoError(t, err)
	tm := NewTransactionManager(tables)
	txn := tm.Begin(3)
	defer func() { _ = txn.Close() }()

	// hold the only frame so the new relation cannot format its header page
	first, err := txn.CreateTempTable(testColumns, 0)
	require.NoError(t, err)
	frame, err := bp.GetPage(common.PageID{Oid: first.Table().Oid, PageNum: 0})
	require.NoError(t, err)

	_, err = txn.CreateTempTable(testColumns, 0)
	bp.UnpinPage(frame, false)
	assert.True(t, common.IsCode(err, common.StorageError), "got %v", err)
	assert.Equal(t, 1, txn.NumTempTables())
	_, statErr := os.Stat(filepath.Join(dir, fmt.Sprintf("dbo_%d.dat", first.Table().Oid+1)))
	assert.True(t, os.IsNotExist(statErr), "the half-created relation file is removed")

	// the frame is free again, so creation succeeds
	_, err = txn.CreateTempTable(testColumns, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, txn.NumTempTables())
}
