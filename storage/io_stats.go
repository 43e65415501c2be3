package storage

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Frederickfan/Database-management-system/common"
)

// CountingDBFile wraps a DBFile and counts physical page reads and writes.
type CountingDBFile struct {
	DBFile
	ReadCnt, WriteCnt atomic.Int64
}

func (f *CountingDBFile) ReadPage(pageNum int, frame []byte) error {
	f.ReadCnt.Add(1)
	return f.DBFile.ReadPage(pageNum, frame)
}

func (f *CountingDBFile) WritePage(pageNum int, frame []byte) error {
	f.WriteCnt.Add(1)
	return f.DBFile.WritePage(pageNum, frame)
}

// CountingFileManager wraps a DBFileManager so that measured I/O can be compared with an operator's
// estimated cost.
type CountingFileManager struct {
	Inner DBFileManager
	Files *xsync.MapOf[common.ObjectID, *CountingDBFile]
}

func NewCountingFileManager(inner DBFileManager) *CountingFileManager {
	return &CountingFileManager{
		Inner: inner,
		Files: xsync.NewMapOf[common.ObjectID, *CountingDBFile](),
	}
}

func (m *CountingFileManager) GetDBFile(oid common.ObjectID) (DBFile, error) {
	if f, ok := m.Files.Load(oid); ok {
		return f, nil
	}
	realFile, err := m.Inner.GetDBFile(oid)
	if err != nil {
		return nil, err
	}
	actual, _ := m.Files.LoadOrStore(oid, &CountingDBFile{DBFile: realFile})
	return actual, nil
}

func (m *CountingFileManager) DeleteDBFile(oid common.ObjectID) error {
	m.Files.Delete(oid)
	return m.Inner.DeleteDBFile(oid)
}

// Reads returns the number of page reads issued against oid since it was first opened.
func (m *CountingFileManager) Reads(oid common.ObjectID) int64 {
	if f, ok := m.Files.Load(oid); ok {
		return f.ReadCnt.Load()
	}
	return 0
}

// TotalReads sums page reads over every open file.
func (m *CountingFileManager) TotalReads() int64 {
	var total int64
	m.Files.Range(func(_ common.ObjectID, f *CountingDBFile) bool {
		total += f.ReadCnt.Load()
		return true
	})
	return total
}

// ResetCounters zeroes the read and write counters of every open file.
func (m *CountingFileManager) ResetCounters() {
	m.Files.Range(func(_ common.ObjectID, f *CountingDBFile) bool {
		f.ReadCnt.Store(0)
		f.WriteCnt.Store(0)
		return true
	})
}
