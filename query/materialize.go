package query

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

// MaterializeOperator drains its child into a temporary relation so that page cursors can read the output. The
// relation is built on first use and reused afterwards; it belongs to the transaction.
type MaterializeOperator struct {
	txn       *transaction.TransactionContext
	child     QueryOperator
	tableName string
}

func NewMaterializeOperator(txn *transaction.TransactionContext, child QueryOperator) *MaterializeOperator {
	return &MaterializeOperator{txn: txn, child: child}
}

// Materialize returns the name of the temporary relation holding the child's output, building it if needed.
func (m *MaterializeOperator) Materialize() (string, error) {
	if m.tableName != "" {
		return m.tableName, nil
	}
	heap, err := m.txn.CreateTempTable(m.child.Schema(), 0)
	if err != nil {
		return "", err
	}
	it, err := m.child.Iterator()
	if err != nil {
		return "", errors.Wrapf(err, "materialize %s", m.child)
	}
	for it.HasNext() {
		rec, err := it.Next()
		if err != nil {
			return "", err
		}
		if err = heap.Append(rec); err != nil {
			return "", err
		}
	}
	m.tableName = heap.Name()
	return m.tableName, nil
}

func (m *MaterializeOperator) Schema() []catalog.Column {
	return m.child.Schema()
}

func (m *MaterializeOperator) Stats() table.Stats {
	return m.child.Stats()
}

// IOCost is the child's cost plus writing its output once.
func (m *MaterializeOperator) IOCost() int {
	return m.child.IOCost() + m.child.Stats().NumPages
}

func (m *MaterializeOperator) Iterator() (RecordIterator, error) {
	name, err := m.Materialize()
	if err != nil {
		return nil, err
	}
	heap, err := m.txn.GetHeap(name)
	if err != nil {
		return nil, err
	}
	return heap.RecordIterator(), nil
}

func (m *MaterializeOperator) String() string {
	return fmt.Sprintf("Materialize\n  %s", m.child)
}
