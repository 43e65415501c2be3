package query

import (
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/transaction"
)

// BNLJOperator is a block nested loop join. Of its B memory pages, B-2 hold a block of the left relation and
// one holds the current right page; the remaining two belong to the storage layer's input and output buffering.
type BNLJOperator struct {
	*JoinOperator
	cost int
}

// NewBNLJOperator builds a block nested loop join of left and right on leftColumn = rightColumn. It fails with
// InvalidConfigError if the transaction's budget is below 3 pages.
func NewBNLJOperator(left, right QueryOperator, leftColumn, rightColumn string, txn *transaction.TransactionContext) (*BNLJOperator, error) {
	base, err := newJoinOperator(left, right, leftColumn, rightColumn, txn, BNLJ)
	if err != nil {
		return nil, err
	}
	if err = base.requireBuffers(3); err != nil {
		return nil, err
	}
	op := &BNLJOperator{JoinOperator: base}
	op.cost = BNLJIOCost(op.numBuffers, left.Stats().NumPages, right.Stats().NumPages)
	op.logConstruction(op.cost)
	return op, nil
}

// BNLJIOCost is ceil(P/(B-2))*Q + P: the right relation is read once per left block, and the left relation once.
func BNLJIOCost(numBuffers, numLeftPages, numRightPages int) int {
	usableBuffers := numBuffers - 2
	return common.CeilDiv(numLeftPages, usableBuffers)*numRightPages + numLeftPages
}

func (op *BNLJOperator) IOCost() int {
	return op.cost
}

func (op *BNLJOperator) Iterator() (RecordIterator, error) {
	it, err := newNestedLoopIterator(op.JoinOperator, op.numBuffers-2)
	if err != nil {
		return nil, err
	}
	return it, nil
}
