package query

import (
	"github.com/Frederickfan/Database-management-system/transaction"
)

// PNLJOperator is a page nested loop join: every left page is joined against every right page. It ignores the
// memory budget and is the baseline the other joins are measured against.
type PNLJOperator struct {
	*JoinOperator
	cost int
}

func NewPNLJOperator(left, right QueryOperator, leftColumn, rightColumn string, txn *transaction.TransactionContext) (*PNLJOperator, error) {
	base, err := newJoinOperator(left, right, leftColumn, rightColumn, txn, PNLJ)
	if err != nil {
		return nil, err
	}
	op := &PNLJOperator{JoinOperator: base}
	op.cost = PNLJIOCost(left.Stats().NumPages, right.Stats().NumPages)
	op.logConstruction(op.cost)
	return op, nil
}

// PNLJIOCost is P*Q + P: one full scan of the right relation per left page, plus one scan of the left relation.
func PNLJIOCost(numLeftPages, numRightPages int) int {
	return numLeftPages*numRightPages + numLeftPages
}

func (op *PNLJOperator) IOCost() int {
	return op.cost
}

func (op *PNLJOperator) Iterator() (RecordIterator, error) {
	it, err := newNestedLoopIterator(op.JoinOperator, 1)
	if err != nil {
		return nil, err
	}
	return it, nil
}
