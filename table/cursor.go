package table

import (
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/iterator"
	"github.com/Frederickfan/Database-management-system/storage"
)

// PageIterator yields the page numbers of a relation in file order, starting with the header page.
type PageIterator struct {
	heap     *Heap
	next     int32
	numPages int32
}

func (it *PageIterator) HasNext() bool {
	return it.next < it.numPages
}

func (it *PageIterator) Next() (int32, error) {
	if it.next >= it.numPages {
		return 0, common.ErrNoSuchElement
	}
	pageNum := it.next
	it.next++
	return pageNum, nil
}

// BlockIterator reads the records of the next numPages pages of pages (fewer if pages runs out) into an
// in-memory backtracking cursor. The pages are unpinned before it returns.
func (heap *Heap) BlockIterator(pages iterator.Iterator[int32], numPages int) (*iterator.Window[storage.Record], error) {
	common.Assert(numPages > 0, "block of %d pages", numPages)
	var records []storage.Record
	for i := 0; i < numPages && pages.HasNext(); i++ {
		pageNum, err := pages.Next()
		if err != nil {
			return nil, err
		}
		pageRecords, err := heap.readPage(pageNum)
		if err != nil {
			return nil, err
		}
		records = append(records, pageRecords...)
	}
	return iterator.NewWindow(records), nil
}

// recordPosition addresses a record by data page and index among that page's records.
type recordPosition struct {
	page int32
	idx  int
}

// start is the position before the first data page.
var start = recordPosition{page: headerPageNum}

// RecordIterator is a backtracking cursor over a whole relation. Only the page under the cursor is held in memory,
// decoded; a Reset to a mark on an earlier page reads that page again through the buffer pool.
type RecordIterator struct {
	heap     *Heap
	numPages int32

	// page currently decoded into buf, and the index in buf of the next record to return
	pos recordPosition
	buf []storage.Record

	last     recordPosition
	returned bool
	mark     recordPosition
	err      error
}

// load positions the cursor at pos, decoding the page if it is not the current one.
func (it *RecordIterator) load(pos recordPosition) error {
	if pos.page == headerPageNum {
		it.pos, it.buf = start, nil
		return nil
	}
	if pos.page != it.pos.page || it.buf == nil {
		records, err := it.heap.readPage(pos.page)
		if err != nil {
			return err
		}
		it.buf = records
	}
	it.pos = pos
	return nil
}

// advance moves forward over exhausted and empty pages until a record is available or the relation ends.
func (it *RecordIterator) advance() {
	for it.err == nil && it.pos.idx >= len(it.buf) && it.pos.page+1 < it.numPages {
		it.err = it.load(recordPosition{page: it.pos.page + 1})
	}
}

func (it *RecordIterator) HasNext() bool {
	it.advance()
	return it.err != nil || it.pos.idx < len(it.buf)
}

// Next returns the next record. A storage failure while moving to a new page is returned here.
func (it *RecordIterator) Next() (storage.Record, error) {
	it.advance()
	if it.err != nil {
		err := it.err
		it.err = nil
		return storage.Record{}, err
	}
	if it.pos.idx >= len(it.buf) {
		return storage.Record{}, common.ErrNoSuchElement
	}
	rec := it.buf[it.pos.idx]
	it.last = it.pos
	it.returned = true
	it.pos.idx++
	return rec, nil
}

func (it *RecordIterator) Mark() {
	if !it.returned {
		it.mark = start
		return
	}
	it.mark = it.last
}

// Reset rewinds to the mark. Marking again before the next call to Next keeps the same mark.
func (it *RecordIterator) Reset() {
	it.err = it.load(it.mark)
	it.last, it.returned = it.mark, true
}
