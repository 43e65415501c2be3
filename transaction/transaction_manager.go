package transaction

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/table"
)

// TransactionManager hands out transaction contexts and tracks the ones still running.
type TransactionManager struct {
	activeTxns *xsync.MapOf[common.TransactionID, *TransactionContext]
	tables     *table.Manager
	nextTxnID  atomic.Uint64
}

// NewTransactionManager initializes the transaction manager.
func NewTransactionManager(tables *table.Manager) *TransactionManager {
	return &TransactionManager{
		activeTxns: xsync.NewMapOf[common.TransactionID, *TransactionContext](),
		tables:     tables,
	}
}

// Begin starts a new transaction whose operators may each use numMemoryPages buffer pages. The budget is not
// checked here: operators that cannot run within it reject it when they are constructed.
func (tm *TransactionManager) Begin(numMemoryPages int) *TransactionContext {
	txn := &TransactionContext{
		id:             common.TransactionID(tm.nextTxnID.Add(1)),
		numMemoryPages: numMemoryPages,
		tables:         tm.tables,
		manager:        tm,
		tempTables:     xsync.NewMapOf[string, common.ObjectID](),
	}
	tm.activeTxns.Store(txn.id, txn)
	return txn
}

func (tm *TransactionManager) finish(txn *TransactionContext) {
	tm.activeTxns.Delete(txn.id)
}

// NumActive returns the number of transactions that have not been closed.
func (tm *TransactionManager) NumActive() int {
	return tm.activeTxns.Size()
}

// CloseAll closes every transaction still running, dropping their temporary relations.
func (tm *TransactionManager) CloseAll() error {
	var firstErr error
	tm.activeTxns.Range(func(_ common.TransactionID, txn *TransactionContext) bool {
		if err := txn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}
