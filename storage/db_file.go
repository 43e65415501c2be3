package storage

import (
	"github.com/Frederickfan/Database-management-system/common"
)

// DBFile abstracts the physical file that stores one relation. It handles page-level reads and writes as well as
// space allocation.
type DBFile interface {
	// AllocatePage appends `numPages` zeroed pages and returns the page number of the first one.
	AllocatePage(numPages int) (int, error)
	// ReadPage reads page `pageNum` into frame, which must be exactly common.PageSize bytes.
	ReadPage(pageNum int, frame []byte) error
	// WritePage writes frame to page `pageNum`. The page must already be allocated.
	WritePage(pageNum int, frame []byte) error
	Sync() error
	Close() error
	// NumPages returns the number of pages allocated in the file.
	NumPages() (int, error)
}

// DBFileManager is the registry of open relation files.
type DBFileManager interface {
	// GetDBFile returns the file for oid, creating it on first use.
	GetDBFile(oid common.ObjectID) (DBFile, error)
	// DeleteDBFile closes and permanently removes the file for oid.
	DeleteDBFile(oid common.ObjectID) error
}
