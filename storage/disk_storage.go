package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Frederickfan/Database-management-system/common"
)

// DiskDBFile implements DBFile on top of an OS file.
type DiskDBFile struct {
	file *os.File
	// numPages caches the file length in pages so reads do not need a stat() call.
	numPages atomic.Int32
	allocMu  sync.Mutex
}

// NewDiskDBFile wraps an already open OS file. The file length must be a multiple of common.PageSize.
func NewDiskDBFile(file *os.File) (*DiskDBFile, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	dbFile := &DiskDBFile{file: file}
	dbFile.numPages.Store(int32(stat.Size() / int64(common.PageSize)))
	return dbFile, nil
}

func (f *DiskDBFile) AllocatePage(numPages int) (int, error) {
	common.Assert(numPages > 0, "cannot allocate %d pages", numPages)
	f.allocMu.Lock()
	defer f.allocMu.Unlock()

	currentPages := f.numPages.Load()
	newTotalPages := currentPages + int32(numPages)
	if err := f.file.Truncate(int64(newTotalPages) * int64(common.PageSize)); err != nil {
		return 0, errors.Wrapf(err, "failed to allocate %d pages", numPages)
	}
	f.numPages.Store(newTotalPages)
	return int(currentPages), nil
}

func (f *DiskDBFile) ReadPage(pageNum int, frame []byte) error {
	common.Assert(len(frame) == common.PageSize, "frame size must match PageSize")
	if int32(pageNum) >= f.numPages.Load() {
		return common.NewError(common.StorageError, "read out of bounds: page %d does not exist (file has %d pages)", pageNum, f.numPages.Load())
	}
	_, err := f.file.ReadAt(frame, int64(pageNum)*int64(common.PageSize))
	return err
}

func (f *DiskDBFile) WritePage(pageNum int, frame []byte) error {
	common.Assert(len(frame) == common.PageSize, "frame size must match PageSize")
	if int32(pageNum) >= f.numPages.Load() {
		return common.NewError(common.StorageError, "write out of bounds: page %d does not exist", pageNum)
	}
	_, err := f.file.WriteAt(frame, int64(pageNum)*int64(common.PageSize))
	return err
}

func (f *DiskDBFile) Sync() error {
	return f.file.Sync()
}

func (f *DiskDBFile) Close() error {
	return f.file.Close()
}

func (f *DiskDBFile) NumPages() (int, error) {
	return int(f.numPages.Load()), nil
}

// DiskDBFileManager manages the relation files rooted at one directory.
type DiskDBFileManager struct {
	rootPath  string
	fileCache *xsync.MapOf[common.ObjectID, DBFile]
}

func NewDiskStorageManager(rootPath string) *DiskDBFileManager {
	return &DiskDBFileManager{
		rootPath:  rootPath,
		fileCache: xsync.NewMapOf[common.ObjectID, DBFile](),
	}
}

func (dsm *DiskDBFileManager) path(oid common.ObjectID) string {
	return filepath.Join(dsm.rootPath, fmt.Sprintf("dbo_%d.dat", oid))
}

// GetDBFile returns the cached handle for oid, opening (and creating) the file on first use.
func (dsm *DiskDBFileManager) GetDBFile(oid common.ObjectID) (DBFile, error) {
	if file, ok := dsm.fileCache.Load(oid); ok {
		return file, nil
	}

	f, err := os.OpenFile(dsm.path(oid), os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open relation file %d", oid)
	}
	newDBFile, err := NewDiskDBFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	actualFile, loaded := dsm.fileCache.LoadOrStore(oid, newDBFile)
	if loaded {
		_ = newDBFile.Close()
		return actualFile, nil
	}
	return newDBFile, nil
}

func (dsm *DiskDBFileManager) DeleteDBFile(oid common.ObjectID) error {
	if file, loaded := dsm.fileCache.LoadAndDelete(oid); loaded {
		// deletion proceeds even if close fails
		_ = file.Close()
	}
	err := os.Remove(dsm.path(oid))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
