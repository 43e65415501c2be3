// Command godbjoin generates two random relations and runs the equi-join algorithms over them, printing the
// result size, the estimated I/O cost and the pages actually read from disk.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	godb "github.com/Frederickfan/Database-management-system"
	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/config"
	"github.com/Frederickfan/Database-management-system/logging"
	"github.com/Frederickfan/Database-management-system/query"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/transaction"
)

var runFlags struct {
	configPath     string
	leftRows       int
	rightRows      int
	keys           int
	recordsPerPage int
	memoryPages    int
	algorithm      string
	seed           int64
}

var rootCmd = &cobra.Command{
	Use:          "godbjoin",
	Short:        "run and cost disk-backed equi-joins",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "join two generated relations",
	Long: `
  Creates two relations of random integer keys, joins them with the selected
  algorithm (bnlj, pnlj, smj or all) and reports output size, estimated I/O
  cost and measured page reads.
`,
	Args: cobra.NoArgs,
	RunE: runJoin,
}

var costCmd = &cobra.Command{
	Use:   "cost B P Q",
	Short: "print the I/O cost of each join algorithm",
	Long: `
  Prints the estimated page I/O of BNLJ, PNLJ and sort-merge join for a memory
  budget of B pages, a left relation of P pages and a right relation of Q pages.
`,
	Args: cobra.ExactArgs(3),
	RunE: runCost,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.configPath, "config", "godb.yaml", "path to the YAML config file")
	f.IntVar(&runFlags.leftRows, "left-rows", 1000, "number of records in the left relation")
	f.IntVar(&runFlags.rightRows, "right-rows", 1000, "number of records in the right relation")
	f.IntVar(&runFlags.keys, "keys", 100, "number of distinct join keys")
	f.IntVar(&runFlags.recordsPerPage, "records-per-page", 0, "cap on records per page (0 fills pages)")
	f.IntVar(&runFlags.memoryPages, "memory-pages", 0, "operator memory budget B (0 uses the config value)")
	f.StringVar(&runFlags.algorithm, "algorithm", "all", "bnlj, pnlj, smj or all")
	f.Int64Var(&runFlags.seed, "seed", 1, "random seed for the generated keys")

	rootCmd.AddCommand(runCmd, costCmd)
}

type joinBuilder func(left, right query.QueryOperator, leftColumn, rightColumn string,
	txn *transaction.TransactionContext) (query.QueryOperator, error)

var builders = map[string]joinBuilder{
	"bnlj": func(l, r query.QueryOperator, lc, rc string, txn *transaction.TransactionContext) (query.QueryOperator, error) {
		return query.NewBNLJOperator(l, r, lc, rc, txn)
	},
	"pnlj": func(l, r query.QueryOperator, lc, rc string, txn *transaction.TransactionContext) (query.QueryOperator, error) {
		return query.NewPNLJOperator(l, r, lc, rc, txn)
	},
	"smj": func(l, r query.QueryOperator, lc, rc string, txn *transaction.TransactionContext) (query.QueryOperator, error) {
		return query.NewSortMergeOperator(l, r, lc, rc, txn)
	},
}

func selectedAlgorithms(name string) ([]string, error) {
	name = strings.ToLower(name)
	if name == "all" {
		return []string{"bnlj", "pnlj", "smj"}, nil
	}
	if _, ok := builders[name]; !ok {
		return nil, common.NewError(common.InvalidConfigError, "unknown algorithm %q", name)
	}
	return []string{name}, nil
}

var relationColumns = []catalog.Column{{Name: "key", Type: common.IntType}, {Name: "payload", Type: common.StringType}}

// generate (re)creates a relation of n records with keys drawn uniformly from [0, keys).
func generate(db *godb.GoDB, rng *rand.Rand, name string, n int) error {
	if _, err := db.Catalog.GetTableMetadata(name); err == nil {
		if err = db.TableManager.DropTable(name); err != nil {
			return err
		}
	}
	if _, err := db.CreateTable(name, relationColumns, runFlags.recordsPerPage); err != nil {
		return err
	}
	records := make([]storage.Record, n)
	for i := range records {
		records[i] = storage.NewRecord(common.NewIntValue(int64(rng.Intn(runFlags.keys))),
			common.NewStringValue(fmt.Sprintf("%s-%d", name, i)))
	}
	return db.Insert(name, records...)
}

func runJoin(cmd *cobra.Command, _ []string) (err error) {
	algorithms, err := selectedAlgorithms(runFlags.algorithm)
	if err != nil {
		return err
	}
	if runFlags.keys <= 0 {
		return common.NewError(common.InvalidConfigError, "--keys must be positive")
	}
	cfg, err := config.Load(runFlags.configPath)
	if err != nil {
		return err
	}
	if err = logging.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	db, err := godb.Open(cfg)
	if err != nil {
		return err
	}
	defer closeInto(&err, db.Close)

	rng := rand.New(rand.NewSource(runFlags.seed))
	if err = generate(db, rng, "join_left", runFlags.leftRows); err != nil {
		return errors.Wrap(err, "generate left relation")
	}
	if err = generate(db, rng, "join_right", runFlags.rightRows); err != nil {
		return errors.Wrap(err, "generate right relation")
	}
	if err = db.BufferPool.FlushAllPages(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-6s %10s %10s %10s\n", "algo", "records", "io_cost", "reads")
	for _, name := range algorithms {
		count, cost, reads, err := runOne(db, name)
		if err != nil {
			return errors.Wrapf(err, "%s join", name)
		}
		fmt.Fprintf(out, "%-6s %10d %10d %10d\n", name, count, cost, reads)
	}
	return nil
}

func runOne(db *godb.GoDB, name string) (count, cost int, reads int64, err error) {
	txn := db.Begin(runFlags.memoryPages)
	defer closeInto(&err, txn.Close)

	left, err := query.NewSequentialScanOperator(txn, "join_left")
	if err != nil {
		return 0, 0, 0, err
	}
	right, err := query.NewSequentialScanOperator(txn, "join_right")
	if err != nil {
		return 0, 0, 0, err
	}
	op, err := builders[name](left, right, "key", "key", txn)
	if err != nil {
		return 0, 0, 0, err
	}

	db.ResetDiskReads()
	it, err := op.Iterator()
	if err != nil {
		return 0, 0, 0, err
	}
	for it.HasNext() {
		if _, err = it.Next(); err != nil {
			return 0, 0, 0, err
		}
		count++
	}
	return count, op.IOCost(), db.DiskReads(), nil
}

// closeInto runs closeFn and stores its error in *errp unless *errp already holds one.
func closeInto(errp *error, closeFn func() error) {
	if cerr := closeFn(); cerr != nil && *errp == nil {
		*errp = errors.Wrap(cerr, "close")
	}
}

func runCost(cmd *cobra.Command, args []string) error {
	var values [3]int
	for i, arg := range args {
		if _, err := fmt.Sscanf(arg, "%d", &values[i]); err != nil || values[i] < 0 {
			return common.NewError(common.InvalidConfigError, "%q is not a page count", arg)
		}
	}
	numBuffers, leftPages, rightPages := values[0], values[1], values[2]

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "PNLJ %d\n", query.PNLJIOCost(leftPages, rightPages))
	if numBuffers < 3 {
		fmt.Fprintf(out, "BNLJ and SMJ need at least 3 memory pages\n")
		return nil
	}
	fmt.Fprintf(out, "BNLJ %d\n", query.BNLJIOCost(numBuffers, leftPages, rightPages))
	fmt.Fprintf(out, "SMJ  %d\n", query.SortMergeIOCost(numBuffers, leftPages, rightPages))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
