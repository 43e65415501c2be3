// Package table implements relations as heap files and the page-granular cursors the join operators read them
// through.
package table

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/storage"
)

// HeaderPage layout (page 0 of every relation file):
// NumRecords (8) | NumDataPages (4) | SlotCap (4)
const (
	headerOffsetNumRecords   = 0
	headerOffsetNumDataPages = headerOffsetNumRecords + 8
	headerOffsetSlotCap      = headerOffsetNumDataPages + 4
)

const headerPageNum int32 = 0

// Stats are the physical statistics of a relation. NumPages counts data pages only.
type Stats struct {
	NumRecords int
	NumPages   int
}

// Heap represents a relation stored as a heap file. Page 0 is a header page holding the record and page counts;
// pages 1..n are heap pages filled in order. Records are only ever appended.
type Heap struct {
	table      *catalog.Table
	desc       *storage.RecordDesc
	bufferPool *storage.BufferPool

	numRecords   atomic.Int64
	numDataPages atomic.Int32

	// Guards appends so that only one caller extends the file at a time.
	tailLatch sync.Mutex
}

// OpenHeap opens the relation file of table, formatting it if the file is new.
func OpenHeap(table *catalog.Table, bufferPool *storage.BufferPool) (*Heap, error) {
	heap := &Heap{
		table:      table,
		desc:       storage.NewRecordDesc(table.ColumnTypes()),
		bufferPool: bufferPool,
	}

	file, err := bufferPool.StorageManager().GetDBFile(table.Oid)
	if err != nil {
		return nil, err
	}
	n, err := file.NumPages()
	if err != nil {
		return nil, err
	}

	if n == 0 {
		if _, err = file.AllocatePage(1); err != nil {
			return nil, err
		}
		if err = heap.writeHeader(); err != nil {
			return nil, err
		}
		return heap, nil
	}

	// Restarting from a previous file: reload the counts from the header
	frame, err := bufferPool.GetPage(heap.pageID(headerPageNum))
	if err != nil {
		return nil, err
	}
	frame.PageLatch.RLock()
	heap.numRecords.Store(int64(binary.LittleEndian.Uint64(frame.Bytes[headerOffsetNumRecords:])))
	heap.numDataPages.Store(int32(binary.LittleEndian.Uint32(frame.Bytes[headerOffsetNumDataPages:])))
	frame.PageLatch.RUnlock()
	bufferPool.UnpinPage(frame, false)

	if int(heap.numDataPages.Load())+1 > n {
		return nil, common.NewError(common.StorageError, "header of table '%s' claims %d data pages but file has %d pages",
			table.Name, heap.numDataPages.Load(), n)
	}
	return heap, nil
}

func (heap *Heap) pageID(pageNum int32) common.PageID {
	return common.PageID{Oid: heap.table.Oid, PageNum: pageNum}
}

func (heap *Heap) writeHeader() error {
	frame, err := heap.bufferPool.GetPage(heap.pageID(headerPageNum))
	if err != nil {
		return err
	}
	frame.PageLatch.Lock()
	binary.LittleEndian.PutUint64(frame.Bytes[headerOffsetNumRecords:], uint64(heap.numRecords.Load()))
	binary.LittleEndian.PutUint32(frame.Bytes[headerOffsetNumDataPages:], uint32(heap.numDataPages.Load()))
	binary.LittleEndian.PutUint32(frame.Bytes[headerOffsetSlotCap:], uint32(heap.table.RecordsPerPage))
	frame.PageLatch.Unlock()
	heap.bufferPool.UnpinPage(frame, true)
	return nil
}

func (heap *Heap) Table() *catalog.Table {
	return heap.table
}

func (heap *Heap) Name() string {
	return heap.table.Name
}

// StorageSchema returns the physical byte-layout descriptor of the records in this table.
func (heap *Heap) StorageSchema() *storage.RecordDesc {
	return heap.desc
}

// Stats returns the current record count and number of data pages.
func (heap *Heap) Stats() Stats {
	return Stats{NumRecords: int(heap.numRecords.Load()), NumPages: int(heap.numDataPages.Load())}
}

// extend allocates and formats a new tail heap page. Must hold tailLatch.
func (heap *Heap) extend() error {
	file, err := heap.bufferPool.StorageManager().GetDBFile(heap.table.Oid)
	if err != nil {
		return err
	}
	newPageNum, err := file.AllocatePage(1)
	if err != nil {
		return err
	}
	common.Assert(newPageNum == int(heap.numDataPages.Load())+1, "page allocation should be sequential")

	frame, err := heap.bufferPool.GetPage(heap.pageID(int32(newPageNum)))
	if err != nil {
		return err
	}
	frame.PageLatch.Lock()
	storage.InitializeHeapPage(heap.desc, frame, heap.table.RecordsPerPage)
	frame.PageLatch.Unlock()
	heap.bufferPool.UnpinPage(frame, true)
	heap.numDataPages.Add(1)
	return nil
}

// tryInsertAtTail places rec on the last data page. It returns false if that page is full.
func (heap *Heap) tryInsertAtTail(rec storage.Record) (bool, error) {
	tail := heap.numDataPages.Load()
	if tail == 0 {
		return false, nil
	}
	frame, err := heap.bufferPool.GetPage(heap.pageID(tail))
	if err != nil {
		return false, err
	}
	hp := frame.AsHeapPage()
	hp.PageLatch.Lock()
	slot := hp.FindFreeSlot()
	if slot == -1 {
		hp.PageLatch.Unlock()
		heap.bufferPool.UnpinPage(frame, false)
		return false, nil
	}
	hp.MarkAllocated(slot, true)
	heap.desc.Encode(rec, hp.AccessRecord(slot))
	hp.PageLatch.Unlock()
	heap.bufferPool.UnpinPage(frame, true)
	return true, nil
}

// Append adds rec at the end of the relation, allocating a new page when the tail page is full.
func (heap *Heap) Append(rec storage.Record) error {
	if err := heap.desc.Validate(rec); err != nil {
		return errors.Wrapf(err, "append to '%s'", heap.table.Name)
	}

	heap.tailLatch.Lock()
	defer heap.tailLatch.Unlock()
	for {
		inserted, err := heap.tryInsertAtTail(rec)
		if err != nil {
			return err
		}
		if inserted {
			break
		}
		if err = heap.extend(); err != nil {
			return err
		}
	}
	heap.numRecords.Add(1)
	return heap.writeHeader()
}

// readPage decodes every record on data page pageNum.
func (heap *Heap) readPage(pageNum int32) ([]storage.Record, error) {
	common.Assert(pageNum != headerPageNum, "the header page of '%s' holds no records", heap.table.Name)
	frame, err := heap.bufferPool.GetPage(heap.pageID(pageNum))
	if err != nil {
		return nil, err
	}
	hp := frame.AsHeapPage()
	hp.PageLatch.RLock()
	records := hp.Records(heap.desc)
	hp.PageLatch.RUnlock()
	heap.bufferPool.UnpinPage(frame, false)
	return records, nil
}

// PageIterator returns a cursor over the page numbers of the relation as of now. The first page it yields is the
// header page, which callers skip before reading records.
func (heap *Heap) PageIterator() *PageIterator {
	return &PageIterator{heap: heap, numPages: heap.numDataPages.Load() + 1}
}

// RecordIterator returns a backtracking cursor over every record of the relation that holds one decoded page
// in memory at a time.
func (heap *Heap) RecordIterator() *RecordIterator {
	return &RecordIterator{heap: heap, numPages: heap.numDataPages.Load() + 1}
}
