package common

import (
	"errors"
	"fmt"
)

type GoDBErrorCode int

const (
	// DuplicateObjectError indicates an attempt to create a table that already exists in the catalog.
	DuplicateObjectError GoDBErrorCode = iota
	// NoSuchObjectError indicates a request for a table that does not exist in the catalog.
	NoSuchObjectError
	// NoSuchColumnError indicates a column name that cannot be resolved against a schema.
	NoSuchColumnError
	// TypeMismatchError indicates that two join columns (or a record and its schema) disagree on types.
	TypeMismatchError
	// InvalidConfigError indicates an operator or engine configuration that cannot be executed, such as a
	// memory budget too small to hold a join's input and output buffers.
	InvalidConfigError
	// StorageError wraps failures reading or writing relations through the page layer.
	StorageError
	// SortError indicates that the external sort could not produce a sorted relation.
	SortError
)

func (ec GoDBErrorCode) String() string {
	switch ec {
	case DuplicateObjectError:
		return "DuplicateObjectError"
	case NoSuchObjectError:
		return "NoSuchObjectError"
	case NoSuchColumnError:
		return "NoSuchColumnError"
	case TypeMismatchError:
		return "TypeMismatchError"
	case InvalidConfigError:
		return "InvalidConfigError"
	case StorageError:
		return "StorageError"
	case SortError:
		return "SortError"
	}
	return "unknown"
}

// GoDBError is the custom error type for the database engine.
// It wraps a specific GoDBErrorCode with a detailed message. Every GoDBError belongs to the caller-visible
// construction/configuration category: when one is returned while building an operator or its iterator, the
// operator cannot be used at all.
type GoDBError struct {
	Code      GoDBErrorCode
	ErrString string
	// Cause is the lower-level failure this error reports, if any.
	Cause error
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

func (e GoDBError) Unwrap() error {
	return e.Cause
}

// NewError builds a GoDBError with a formatted message.
func NewError(code GoDBErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, ErrString: fmt.Sprintf(format, args...)}
}

// WrapError builds a GoDBError reporting cause. The cause's message is appended to the formatted one and the
// cause stays reachable through errors.Is, errors.As and IsCode.
func WrapError(code GoDBErrorCode, cause error, format string, args ...any) GoDBError {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return GoDBError{Code: code, ErrString: msg, Cause: cause}
}

// IsCode reports whether any error in err's chain is a GoDBError with the given code.
func IsCode(err error, code GoDBErrorCode) bool {
	for err != nil {
		var dbErr GoDBError
		if !errors.As(err, &dbErr) {
			return false
		}
		if dbErr.Code == code {
			return true
		}
		err = dbErr.Cause
	}
	return false
}

// ErrNoSuchElement is returned by Next() on an iterator that has no record left to yield.
var ErrNoSuchElement = errors.New("no such element: iterator is exhausted")
