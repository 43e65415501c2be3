package query

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

type joinConstructor func(left, right QueryOperator, leftColumn, rightColumn string,
	txn *transaction.TransactionContext) (QueryOperator, error)

var joinAlgorithms = map[string]joinConstructor{
	"BNLJ": func(l, r QueryOperator, lc, rc string, txn *transaction.TransactionContext) (QueryOperator, error) {
		return NewBNLJOperator(l, r, lc, rc, txn)
	},
	"PNLJ": func(l, r QueryOperator, lc, rc string, txn *transaction.TransactionContext) (QueryOperator, error) {
		return NewPNLJOperator(l, r, lc, rc, txn)
	},
	"SortMerge": func(l, r QueryOperator, lc, rc string, txn *transaction.TransactionContext) (QueryOperator, error) {
		return NewSortMergeOperator(l, r, lc, rc, txn)
	},
}

// expectedJoin computes the equi-join on the first column of both inputs by brute force.
func expectedJoin(left, right []storage.Record) []string {
	var out []string
	for _, l := range left {
		for _, r := range right {
			if l.Get(0).Equals(r.Get(0)) {
				out = append(out, l.Concat(r).String())
			}
		}
	}
	return out
}

func TestJoin_SmallScenario(t *testing.T) {
	left := []storage.Record{pair(1, "a"), pair(2, "b"), pair(1, "c")}
	right := []storage.Record{pair(1, "x"), pair(3, "y"), pair(1, "z")}
	expected := []string{"(1, a, 1, x)", "(1, a, 1, z)", "(1, c, 1, x)", "(1, c, 1, z)"}

	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", leftColumns, 1, left...)
			db.createTable(t, "r", rightColumns, 1, right...)
			txn := db.begin(t, 3)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
			require.NoError(t, err)
			assert.ElementsMatch(t, expected, drain(t, op))
		})
	}
}

func TestJoin_SortMergeOutputOrder(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 2, pair(3, "c"), pair(1, "a"), pair(2, "b"), pair(1, "d"))
	db.createTable(t, "r", rightColumns, 2, pair(2, "y"), pair(1, "x"), pair(3, "z"), pair(1, "w"))
	txn := db.begin(t, 3)

	op, err := NewSortMergeOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(1, a, 1, x)", "(1, a, 1, w)",
		"(1, d, 1, x)", "(1, d, 1, w)",
		"(2, b, 2, y)",
		"(3, c, 3, z)",
	}, drain(t, op))
}

func TestJoin_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var left, right []storage.Record
	for i := 0; i < 57; i++ {
		left = append(left, pair(int64(rng.Intn(15)), fmt.Sprintf("l%d", i)))
	}
	for i := 0; i < 43; i++ {
		right = append(right, pair(int64(rng.Intn(15)), fmt.Sprintf("r%d", i)))
	}
	expected := expectedJoin(left, right)
	require.NotEmpty(t, expected)

	for _, numBuffers := range []int{3, 4, 7} {
		for name, newJoin := range joinAlgorithms {
			t.Run(fmt.Sprintf("%s/B=%d", name, numBuffers), func(t *testing.T) {
				db := makeTestDB(t)
				db.createTable(t, "l", leftColumns, 4, left...)
				db.createTable(t, "r", rightColumns, 3, right...)
				txn := db.begin(t, numBuffers)

				op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
				require.NoError(t, err)
				assert.ElementsMatch(t, expected, drain(t, op))
			})
		}
	}
}

func TestJoin_DuplicateGroupsProduceCrossProduct(t *testing.T) {
	var left, right []storage.Record
	for i := 0; i < 3; i++ {
		left = append(left, pair(5, fmt.Sprintf("l%d", i)))
	}
	for i := 0; i < 4; i++ {
		right = append(right, pair(5, fmt.Sprintf("r%d", i)))
	}
	right = append(right, pair(6, "other"))

	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", leftColumns, 2, left...)
			db.createTable(t, "r", rightColumns, 2, right...)
			txn := db.begin(t, 4)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
			require.NoError(t, err)
			got := drain(t, op)
			assert.Len(t, got, 12)
			assert.ElementsMatch(t, expectedJoin(left, right), got)
		})
	}
}

func TestJoin_EmptyInputs(t *testing.T) {
	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", leftColumns, 0)
			db.createTable(t, "r", rightColumns, 0, pair(1, "x"))
			txn := db.begin(t, 3)

			for _, sides := range [][2]string{{"l", "r"}, {"r", "l"}} {
				leftCol, rightCol := "id", "rid"
				if sides[0] == "r" {
					leftCol, rightCol = "rid", "id"
				}
				op, err := newJoin(scan(t, txn, sides[0]), scan(t, txn, sides[1]), leftCol, rightCol, txn)
				require.NoError(t, err)
				assert.Equal(t, table.Stats{}, op.Stats())

				it, err := op.Iterator()
				require.NoError(t, err)
				assert.False(t, it.HasNext())
				_, err = it.Next()
				assert.True(t, errors.Is(err, common.ErrNoSuchElement))
			}
		})
	}
}

func TestJoin_NoMatches(t *testing.T) {
	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", leftColumns, 2, pair(1, "a"), pair(3, "b"), pair(5, "c"))
			db.createTable(t, "r", rightColumns, 2, pair(2, "x"), pair(4, "y"), pair(6, "z"))
			txn := db.begin(t, 3)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
			require.NoError(t, err)
			assert.Empty(t, drain(t, op))
		})
	}
}

func TestJoin_FloatKeysWithNaN(t *testing.T) {
	float := func(f float64) storage.Record { return storage.NewRecord(common.NewFloatValue(f)) }
	left := []storage.Record{float(math.NaN()), float(2), float(-0.5)}
	right := []storage.Record{float(1.5), float(2), float(math.NaN()), float(-0.5)}

	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", []catalog.Column{{Name: "f", Type: common.FloatType}}, 1, left...)
			db.createTable(t, "r", []catalog.Column{{Name: "g", Type: common.FloatType}}, 1, right...)
			txn := db.begin(t, 3)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "f", "g", txn)
			require.NoError(t, err)
			// NaN matches only NaN, never 1.5 or 2
			assert.ElementsMatch(t, []string{"(NaN, NaN)", "(2, 2)", "(-0.5, -0.5)"}, drain(t, op))
		})
	}
}

func TestJoin_ExhaustedIteratorStaysExhausted(t *testing.T) {
	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", leftColumns, 1, pair(1, "a"))
			db.createTable(t, "r", rightColumns, 1, pair(1, "x"))
			txn := db.begin(t, 3)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
			require.NoError(t, err)
			it, err := op.Iterator()
			require.NoError(t, err)

			// HasNext does not consume
			assert.True(t, it.HasNext())
			assert.True(t, it.HasNext())
			rec, err := it.Next()
			require.NoError(t, err)
			assert.Equal(t, "(1, a, 1, x)", rec.String())

			for i := 0; i < 3; i++ {
				assert.False(t, it.HasNext())
				_, err = it.Next()
				assert.True(t, errors.Is(err, common.ErrNoSuchElement))
			}
		})
	}
}

func TestJoin_IteratorIsRepeatable(t *testing.T) {
	left := []storage.Record{pair(2, "a"), pair(1, "b"), pair(2, "c"), pair(4, "d"), pair(1, "e")}
	right := []storage.Record{pair(1, "x"), pair(2, "y"), pair(2, "z"), pair(3, "w")}

	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDB(t)
			db.createTable(t, "l", leftColumns, 2, left...)
			db.createTable(t, "r", rightColumns, 2, right...)
			txn := db.begin(t, 3)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
			require.NoError(t, err)
			first := drain(t, op)
			second := drain(t, op)
			assert.Equal(t, first, second)
			assert.ElementsMatch(t, expectedJoin(left, right), first)
		})
	}
}

func TestJoin_NestedLoopOrder(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 1, pair(1, "a"), pair(1, "b"))
	db.createTable(t, "r", rightColumns, 1, pair(1, "x"), pair(1, "y"))

	// PNLJ: for each left page, every right page, then every record pair on them
	txn := db.begin(t, 3)
	pnlj, err := NewPNLJOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"(1, a, 1, x)", "(1, a, 1, y)", "(1, b, 1, x)", "(1, b, 1, y)"}, drain(t, pnlj))

	// BNLJ with a two page block: both left records meet right page 1 before right page 2
	txn = db.begin(t, 4)
	bnlj, err := NewBNLJOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"(1, a, 1, x)", "(1, b, 1, x)", "(1, a, 1, y)", "(1, b, 1, y)"}, drain(t, bnlj))
}

func TestJoin_Schema(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 0)
	db.createTable(t, "l2", leftColumns, 0)
	txn := db.begin(t, 3)

	op, err := NewBNLJOperator(scan(t, txn, "l"), scan(t, txn, "l2"), "id", "id", txn)
	require.NoError(t, err)
	var names []string
	for _, col := range op.Schema() {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"id", "name", "l2.id", "l2.name"}, names)
	assert.Equal(t, 0, op.LeftColumnIndex())
	assert.Equal(t, 0, op.RightColumnIndex())
	assert.Equal(t, "l", op.LeftTableName())
	assert.Equal(t, "l2", op.RightTableName())
	assert.Equal(t, BNLJ, op.JoinType())
	assert.Equal(t, 3, op.NumBuffers())
}

func TestJoin_ConstructionErrors(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 0, pair(1, "a"))
	db.createTable(t, "r", rightColumns, 0, pair(1, "x"))

	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			txn := db.begin(t, 3)
			_, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "missing", "rid", txn)
			assert.True(t, common.IsCode(err, common.NoSuchColumnError), "got %v", err)
			_, err = newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "missing", txn)
			assert.True(t, common.IsCode(err, common.NoSuchColumnError), "got %v", err)
			_, err = newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "tag", txn)
			assert.True(t, common.IsCode(err, common.TypeMismatchError), "got %v", err)
		})
	}
}

func TestJoin_BufferBudget(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 0, pair(1, "a"))
	db.createTable(t, "r", rightColumns, 0, pair(1, "x"))
	txn := db.begin(t, 2)

	_, err := NewBNLJOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	assert.True(t, common.IsCode(err, common.InvalidConfigError), "got %v", err)
	_, err = NewSortMergeOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	assert.True(t, common.IsCode(err, common.InvalidConfigError), "got %v", err)

	pnlj, err := NewPNLJOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"(1, a, 1, x)"}, drain(t, pnlj))
}

func TestJoin_IOCost(t *testing.T) {
	db := makeTestDB(t)
	txn := db.begin(t, 5)
	left := &stubOperator{schema: leftColumns, stats: table.Stats{NumRecords: 100, NumPages: 10}}
	right := &stubOperator{schema: rightColumns, stats: table.Stats{NumRecords: 200, NumPages: 20}}

	bnlj, err := NewBNLJOperator(left, right, "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, 90, bnlj.IOCost())

	pnlj, err := NewPNLJOperator(left, right, "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, 210, pnlj.IOCost())

	smj, err := NewSortMergeOperator(left, right, "id", "rid", txn)
	require.NoError(t, err)
	assert.Equal(t, SortIOCost(10, 5)+SortIOCost(20, 5)+30, smj.IOCost())
	assert.Equal(t, 40+80+30, smj.IOCost())

	assert.Equal(t, 100, bnlj.Stats().NumRecords)
}

func TestJoin_IOCostFormulas(t *testing.T) {
	assert.Equal(t, 90, BNLJIOCost(5, 10, 20))
	assert.Equal(t, 10*20+10, BNLJIOCost(3, 10, 20))
	assert.Equal(t, 1*20+10, BNLJIOCost(12, 10, 20))
	assert.Equal(t, 0, BNLJIOCost(5, 0, 20))
	assert.Equal(t, 210, PNLJIOCost(10, 20))
	assert.Equal(t, 0, SortMergeIOCost(3, 0, 0))
}

func TestJoin_MaterializesNonScanChildren(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 2, pair(1, "a"), pair(2, "b"), pair(3, "c"), pair(2, "d"))
	db.createTable(t, "r", rightColumns, 2, pair(2, "x"), pair(3, "y"))
	txn := db.begin(t, 3)

	filtered, err := NewSelectOperator(scan(t, txn, "l"), "id", GreaterThanOrEqual, common.NewIntValue(2))
	require.NoError(t, err)
	op, err := NewBNLJOperator(filtered, scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)

	assert.NotEqual(t, "l", op.LeftTableName())
	assert.Equal(t, "r", op.RightTableName())
	assert.Equal(t, 1, txn.NumTempTables())

	got := drain(t, op)
	sort.Strings(got)
	assert.Equal(t, []string{"(2, b, 2, x)", "(2, d, 2, x)", "(3, c, 3, y)"}, got)
}

func TestJoin_TempTablesReleasedOnClose(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 1, pair(2, "a"), pair(1, "b"))
	db.createTable(t, "r", rightColumns, 1, pair(1, "x"), pair(2, "y"))

	txn := db.txns.Begin(3)
	op, err := NewSortMergeOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)
	assert.Len(t, drain(t, op), 2)
	assert.Greater(t, txn.NumTempTables(), 0)

	// the first sorted relation of the transaction
	sortedName := fmt.Sprintf("temp_%d_0", txn.ID())
	_, err = db.tables.GetHeap(sortedName)
	require.NoError(t, err)

	require.NoError(t, txn.Close())
	assert.Equal(t, 0, txn.NumTempTables())
	_, err = db.tables.GetHeap(sortedName)
	assert.True(t, common.IsCode(err, common.NoSuchObjectError), "got %v", err)
	assert.Equal(t, []string{"l", "r"}, db.tables.Catalog().TableNames())
}

func TestJoin_SortMergeReportsSortFailure(t *testing.T) {
	db := makeTestDBWithPool(t, 4)
	left := []storage.Record{pair(4, "d"), pair(2, "b"), pair(3, "c"), pair(1, "a"), pair(2, "e")}
	right := []storage.Record{pair(2, "x"), pair(1, "y")}
	db.createTable(t, "l", leftColumns, 1, left...)
	db.createTable(t, "r", rightColumns, 1, right...)
	txn := db.begin(t, 3)

	op, err := NewSortMergeOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)

	// every frame is pinned, so no sorted run can be written
	unpin := db.pinPages(t, "l", 4)
	_, err = op.Iterator()
	unpin()
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.SortError), "got %v", err)
	assert.True(t, common.IsCode(err, common.StorageError), "got %v", err)
	assert.Contains(t, err.Error(), "buffer pool exhausted")
	assert.Equal(t, 0, txn.NumTempTables())

	// the operator is usable once frames are available again
	assert.Equal(t, []string{"(1, a, 1, y)", "(2, b, 2, x)", "(2, e, 2, x)"}, drain(t, op))
}

func TestJoin_StorageFailureDuringIteration(t *testing.T) {
	for name, newJoin := range joinAlgorithms {
		t.Run(name, func(t *testing.T) {
			db := makeTestDBWithPool(t, 4)
			var left, right []storage.Record
			for i := 0; i < 6; i++ {
				left = append(left, pair(int64(i), fmt.Sprintf("l%d", i)))
				right = append(right, pair(int64(i), fmt.Sprintf("r%d", i)))
			}
			db.createTable(t, "l", leftColumns, 1, left...)
			db.createTable(t, "r", rightColumns, 1, right...)
			db.createTable(t, "filler", leftColumns, 1, left[:4]...)
			txn := db.begin(t, 3)

			op, err := newJoin(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
			require.NoError(t, err)
			it, err := op.Iterator()
			require.NoError(t, err)

			unpin := db.pinPages(t, "filler", 4)
			defer unpin()
			_, err = Drain(it)
			assert.True(t, common.IsCode(err, common.StorageError), "got %v", err)
			// a failed iterator stays exhausted
			assert.False(t, it.HasNext())
		})
	}
}

func TestJoin_SortMergeAfterTransactionClosed(t *testing.T) {
	db := makeTestDB(t)
	db.createTable(t, "l", leftColumns, 1, pair(2, "b"), pair(1, "a"))
	db.createTable(t, "r", rightColumns, 1, pair(1, "x"))
	txn := db.begin(t, 3)

	op, err := NewSortMergeOperator(scan(t, txn, "l"), scan(t, txn, "r"), "id", "rid", txn)
	require.NoError(t, err)
	require.NoError(t, txn.Close())

	it, err := op.Iterator()
	assert.Nil(t, it)
	assert.True(t, common.IsCode(err, common.InvalidConfigError), "got %v", err)
	assert.True(t, common.IsCode(err, common.SortError), "got %v", err)
}
