package transaction

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/logging"
	"github.com/Frederickfan/Database-management-system/table"
)

// TransactionContext is the execution context handed to query operators. It carries the memory budget available
// to each operator and owns every temporary relation the operators create on its behalf.
type TransactionContext struct {
	id             common.TransactionID
	numMemoryPages int
	tables         *table.Manager
	manager        *TransactionManager

	tempTables  *xsync.MapOf[string, common.ObjectID]
	nextTempNum atomic.Int64
	closed      atomic.Bool
}

// ID returns the unique identifier of the transaction.
func (txn *TransactionContext) ID() common.TransactionID {
	return txn.id
}

// NumMemoryPages returns the number of buffer pages one operator of this transaction may use.
func (txn *TransactionContext) NumMemoryPages() int {
	return txn.numMemoryPages
}

// Tables returns the table manager through which operators reach relations.
func (txn *TransactionContext) Tables() *table.Manager {
	return txn.tables
}

// GetHeap returns the heap of a permanent or temporary table by name.
func (txn *TransactionContext) GetHeap(name string) (*table.Heap, error) {
	return txn.tables.GetHeap(name)
}

// CreateTempTable creates a temporary relation with a name unique to this transaction. A positive
// recordsPerPage caps the slots of each of its pages. A closed transaction cannot create temporary relations.
func (txn *TransactionContext) CreateTempTable(columns []catalog.Column, recordsPerPage int) (*table.Heap, error) {
	if txn.closed.Load() {
		return nil, common.NewError(common.InvalidConfigError, "transaction %d is closed", txn.id)
	}
	name := fmt.Sprintf("temp_%d_%d", txn.id, txn.nextTempNum.Add(1)-1)
	heap, err := txn.tables.CreateTempTable(name, columns, recordsPerPage)
	if err != nil {
		return nil, err
	}
	txn.tempTables.Store(name, heap.Table().Oid)
	return heap, nil
}

// DropTempTable drops one temporary relation before the transaction ends.
func (txn *TransactionContext) DropTempTable(name string) error {
	if _, ok := txn.tempTables.LoadAndDelete(name); !ok {
		return common.NewError(common.NoSuchObjectError, "'%s' is not a temporary table of transaction %d", name, txn.id)
	}
	return txn.tables.DropTable(name)
}

// NumTempTables returns the number of temporary relations currently owned by the transaction.
func (txn *TransactionContext) NumTempTables() int {
	return txn.tempTables.Size()
}

// Close drops every temporary relation created by the transaction. It is safe to call more than once.
func (txn *TransactionContext) Close() error {
	if !txn.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	dropped := 0
	txn.tempTables.Range(func(name string, _ common.ObjectID) bool {
		if err := txn.tables.DropTable(name); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "drop temporary table '%s'", name)
		} else if err == nil {
			dropped++
		}
		txn.tempTables.Delete(name)
		return true
	})
	txn.manager.finish(txn)
	logging.WithTxn(txn.id).WithField("temp_tables", dropped).Debug("transaction closed")
	return firstErr
}
