package query

import (
	"fmt"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/iterator"
	"github.com/Frederickfan/Database-management-system/logging"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

type JoinType int

const (
	BNLJ JoinType = iota
	PNLJ
	SortMerge
)

func (jt JoinType) String() string {
	switch jt {
	case BNLJ:
		return "BNLJ"
	case PNLJ:
		return "PNLJ"
	case SortMerge:
		return "SortMerge"
	}
	return "unknown"
}

// JoinOperator holds what every equi-join algorithm shares: the resolved join columns, the names of the stored
// relations the join reads, the buffer budget and the output shape. Algorithms embed it and add an iterator and
// a cost model.
type JoinOperator struct {
	joinType    JoinType
	left, right QueryOperator

	leftColumn, rightColumn           string
	leftColumnIndex, rightColumnIndex int
	leftTableName, rightTableName     string

	txn        *transaction.TransactionContext
	numBuffers int
	schema     []catalog.Column
}

// newJoinOperator resolves the join columns and the input relations. A child that is not a sequential scan is
// materialized into a temporary relation of txn so that page cursors can read it.
func newJoinOperator(left, right QueryOperator, leftColumn, rightColumn string, txn *transaction.TransactionContext,
	joinType JoinType) (*JoinOperator, error) {
	op := &JoinOperator{
		joinType:    joinType,
		left:        left,
		right:       right,
		leftColumn:  leftColumn,
		rightColumn: rightColumn,
		txn:         txn,
		numBuffers:  txn.NumMemoryPages(),
	}

	var err error
	if op.leftColumnIndex, err = columnIndex(left.Schema(), leftColumn); err != nil {
		return nil, err
	}
	if op.rightColumnIndex, err = columnIndex(right.Schema(), rightColumn); err != nil {
		return nil, err
	}
	leftType, rightType := left.Schema()[op.leftColumnIndex].Type, right.Schema()[op.rightColumnIndex].Type
	if leftType != rightType {
		return nil, common.NewError(common.TypeMismatchError, "cannot join %s column '%s' with %s column '%s'",
			leftType, leftColumn, rightType, rightColumn)
	}

	if op.leftTableName, err = relationName(txn, left); err != nil {
		return nil, err
	}
	if op.rightTableName, err = relationName(txn, right); err != nil {
		return nil, err
	}
	op.schema = joinedSchema(left.Schema(), right.Schema(), op.rightTableName)
	return op, nil
}

func relationName(txn *transaction.TransactionContext, child QueryOperator) (string, error) {
	if scan, ok := child.(*SequentialScanOperator); ok {
		return scan.TableName(), nil
	}
	return NewMaterializeOperator(txn, child).Materialize()
}

// joinedSchema lists the left columns followed by the right columns. A right column whose name is already taken
// is qualified with the right relation's name.
func joinedSchema(left, right []catalog.Column, rightTableName string) []catalog.Column {
	schema := make([]catalog.Column, 0, len(left)+len(right))
	taken := make(map[string]bool, len(left))
	for _, col := range left {
		schema = append(schema, col)
		taken[col.Name] = true
	}
	for _, col := range right {
		if taken[col.Name] {
			col.Name = rightTableName + "." + col.Name
		}
		taken[col.Name] = true
		schema = append(schema, col)
	}
	return schema
}

// requireBuffers rejects budgets too small for the algorithm's block sizing.
func (op *JoinOperator) requireBuffers(minimum int) error {
	if op.numBuffers < minimum {
		return common.NewError(common.InvalidConfigError, "%s join needs at least %d memory pages, got %d",
			op.joinType, minimum, op.numBuffers)
	}
	return nil
}

func (op *JoinOperator) logConstruction(cost int) {
	logging.WithTxn(op.txn.ID()).WithField("algorithm", op.joinType.String()).
		WithField("left", op.leftTableName).WithField("right", op.rightTableName).
		WithField("buffers", op.numBuffers).WithField("io_cost", cost).Debug("join operator constructed")
}

func (op *JoinOperator) logExhausted(emitted int) {
	logging.WithTxn(op.txn.ID()).WithField("algorithm", op.joinType.String()).
		WithField("records", emitted).Debug("join exhausted")
}

func (op *JoinOperator) JoinType() JoinType {
	return op.joinType
}

func (op *JoinOperator) LeftSource() QueryOperator {
	return op.left
}

func (op *JoinOperator) RightSource() QueryOperator {
	return op.right
}

func (op *JoinOperator) LeftColumnIndex() int {
	return op.leftColumnIndex
}

func (op *JoinOperator) RightColumnIndex() int {
	return op.rightColumnIndex
}

// LeftTableName returns the stored relation the join reads as its left input.
func (op *JoinOperator) LeftTableName() string {
	return op.leftTableName
}

// RightTableName returns the stored relation the join reads as its right input.
func (op *JoinOperator) RightTableName() string {
	return op.rightTableName
}

// NumBuffers returns the number of memory pages the join may use.
func (op *JoinOperator) NumBuffers() int {
	return op.numBuffers
}

func (op *JoinOperator) Transaction() *transaction.TransactionContext {
	return op.txn
}

func (op *JoinOperator) Schema() []catalog.Column {
	return op.schema
}

// Stats estimates the output as |L|*|R| / max(|L|, |R|) records, i.e. every record of the smaller input matches
// one record of the larger one.
func (op *JoinOperator) Stats() table.Stats {
	l, r := op.left.Stats().NumRecords, op.right.Stats().NumRecords
	if l == 0 || r == 0 {
		return table.Stats{}
	}
	numRecords := common.CeilDiv(l*r, max(l, r, 1))
	return table.Stats{NumRecords: numRecords, NumPages: estimatePages(op.schema, numRecords)}
}

func (op *JoinOperator) String() string {
	return fmt.Sprintf("%s(%s.%s = %s.%s)\n  %s\n  %s", op.joinType, op.leftTableName, op.leftColumn,
		op.rightTableName, op.rightColumn, op.left, op.right)
}

func (op *JoinOperator) heap(name string) (*table.Heap, error) {
	return op.txn.GetHeap(name)
}

// pageIterator returns the page cursor of a relation. Its first page is the header page.
func (op *JoinOperator) pageIterator(name string) (*table.PageIterator, error) {
	heap, err := op.heap(name)
	if err != nil {
		return nil, err
	}
	return heap.PageIterator(), nil
}

// blockIterator reads the next numPages pages of pages into a backtracking cursor.
func (op *JoinOperator) blockIterator(name string, pages *table.PageIterator, numPages int) (*iterator.Window[storage.Record], error) {
	heap, err := op.heap(name)
	if err != nil {
		return nil, err
	}
	return heap.BlockIterator(pages, numPages)
}

// recordIterator returns a backtracking cursor over a whole relation.
func (op *JoinOperator) recordIterator(name string) (*table.RecordIterator, error) {
	heap, err := op.heap(name)
	if err != nil {
		return nil, err
	}
	return heap.RecordIterator(), nil
}

// joinValues returns the join-column values of a left and a right record.
func (op *JoinOperator) joinValues(left, right storage.Record) (common.Value, common.Value) {
	return left.Get(op.leftColumnIndex), right.Get(op.rightColumnIndex)
}
