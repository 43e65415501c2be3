package query

import (
	"fmt"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

// SequentialScanOperator reads every record of a stored table in file order.
type SequentialScanOperator struct {
	txn  *transaction.TransactionContext
	heap *table.Heap
}

func NewSequentialScanOperator(txn *transaction.TransactionContext, tableName string) (*SequentialScanOperator, error) {
	heap, err := txn.GetHeap(tableName)
	if err != nil {
		return nil, err
	}
	return &SequentialScanOperator{txn: txn, heap: heap}, nil
}

// TableName returns the name of the scanned table.
func (s *SequentialScanOperator) TableName() string {
	return s.heap.Name()
}

func (s *SequentialScanOperator) Schema() []catalog.Column {
	return s.heap.Table().Columns
}

// Stats are the table's actual statistics.
func (s *SequentialScanOperator) Stats() table.Stats {
	return s.heap.Stats()
}

// IOCost is one read per data page.
func (s *SequentialScanOperator) IOCost() int {
	return s.heap.Stats().NumPages
}

func (s *SequentialScanOperator) Iterator() (RecordIterator, error) {
	return s.heap.RecordIterator(), nil
}

func (s *SequentialScanOperator) String() string {
	return fmt.Sprintf("SequentialScan(%s)", s.heap.Name())
}
