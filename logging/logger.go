// Package logging provides the process-wide structured logger.
//
// Subsystems obtain loggers through this package rather than constructing their own, so that level and format
// are controlled from one place. Configure is called once at startup; until then a text logger at info level
// writing to stderr is used.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Frederickfan/Database-management-system/common"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stderr, logrus.InfoLevel, &logrus.TextFormatter{FullTimestamp: true})
)

func newLogger(out io.Writer, level logrus.Level, formatter logrus.Formatter) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(formatter)
	return l
}

// Configure replaces the global logger. level is any logrus level name ("debug", "info", ...); format is "text"
// or "json".
func Configure(out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return common.WrapError(common.InvalidConfigError, err, "bad log level %q", level)
	}
	var formatter logrus.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return common.NewError(common.InvalidConfigError, "unknown log format %q", format)
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(out, lvl, formatter)
	return nil
}

// GetLogger returns the global logger.
func GetLogger() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// ForComponent returns a logger tagged with the subsystem name.
func ForComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// WithTable returns a logger tagged with a table name.
func WithTable(tableName string) *logrus.Entry {
	return GetLogger().WithField("table", tableName)
}

// WithTxn returns a logger tagged with a transaction id.
func WithTxn(txnID common.TransactionID) *logrus.Entry {
	return GetLogger().WithField("txn", uint64(txnID))
}
