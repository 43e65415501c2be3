package storage

import (
	"encoding/binary"

	"github.com/Frederickfan/Database-management-system/common"
)

// HeapPage Layout:
// NumSlots (2) | NumUsed (2) | RowSize (2) | Padding (2) | allocation Bitmap | rows
type HeapPage struct {
	*PageFrame

	allocationBitmap Bitmap
	rowDataStart     int
}

const (
	heapPageOffsetNumSlots = 0
	heapPageOffsetNumUsed  = heapPageOffsetNumSlots + 2
	heapPageOffsetRowSize  = heapPageOffsetNumUsed + 2
)
const heapPageHeaderSize = heapPageOffsetRowSize + 4

// HeapPageCapacity returns how many records of the given layout fit on one heap page.
func HeapPageCapacity(desc *RecordDesc) int {
	rowSize := desc.BytesPerRecord()
	available := common.PageSize - heapPageHeaderSize
	numSlots := available * 8 / (8*rowSize + 1)
	for numSlots > 0 && BitmapBytes(numSlots)+numSlots*rowSize > available {
		numSlots--
	}
	return numSlots
}

// InitializeHeapPage formats frame as an empty heap page for records of the given layout. A positive maxSlots
// caps the number of slots below the physical capacity of the page.
func InitializeHeapPage(desc *RecordDesc, frame *PageFrame, maxSlots int) {
	numSlots := HeapPageCapacity(desc)
	if maxSlots > 0 && maxSlots < numSlots {
		numSlots = maxSlots
	}
	common.Assert(numSlots > 0, "record of %d bytes does not fit on a page", desc.BytesPerRecord())
	for i := range frame.Bytes {
		frame.Bytes[i] = 0
	}
	binary.LittleEndian.PutUint16(frame.Bytes[heapPageOffsetNumSlots:], uint16(numSlots))
	binary.LittleEndian.PutUint16(frame.Bytes[heapPageOffsetRowSize:], uint16(desc.BytesPerRecord()))
}

func (frame *PageFrame) AsHeapPage() HeapPage {
	result := HeapPage{PageFrame: frame}
	numSlots := result.NumSlots()
	common.Assert(result.RowSize() > 0 && numSlots > 0, "uninitialized heap page")

	result.allocationBitmap = AsBitmap(frame.Bytes[heapPageHeaderSize:], numSlots)
	result.rowDataStart = heapPageHeaderSize + BitmapBytes(numSlots)
	return result
}

func (hp HeapPage) NumSlots() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetNumSlots:]))
}

func (hp HeapPage) NumUsed() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetNumUsed:]))
}

func (hp HeapPage) setNumUsed(numUsed int) {
	binary.LittleEndian.PutUint16(hp.Bytes[heapPageOffsetNumUsed:], uint16(numUsed))
}

func (hp HeapPage) RowSize() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetRowSize:]))
}

// FindFreeSlot returns the first unallocated slot, or -1 if the page is full.
func (hp HeapPage) FindFreeSlot() int {
	if hp.NumUsed() == hp.NumSlots() {
		return -1
	}
	return hp.allocationBitmap.FindFirstZero(0)
}

func (hp HeapPage) IsAllocated(slot int) bool {
	if slot < 0 || slot >= hp.NumSlots() {
		return false
	}
	return hp.allocationBitmap.LoadBit(slot)
}

func (hp HeapPage) MarkAllocated(slot int, allocated bool) {
	common.Assert(slot >= 0 && slot < hp.NumSlots(), "slot out of bounds")
	if hp.allocationBitmap.SetBit(slot, allocated) == allocated {
		return
	}
	if allocated {
		hp.setNumUsed(hp.NumUsed() + 1)
	} else {
		hp.setNumUsed(hp.NumUsed() - 1)
	}
}

// AccessRecord returns the bytes backing an allocated slot. The slice aliases the page frame.
func (hp HeapPage) AccessRecord(slot int) RawRecord {
	common.Assert(hp.IsAllocated(slot), "slot %d not allocated", slot)
	return hp.Bytes[hp.rowDataStart+slot*hp.RowSize() : hp.rowDataStart+(slot+1)*hp.RowSize()]
}

// Records decodes every allocated record on the page in slot order.
func (hp HeapPage) Records(desc *RecordDesc) []Record {
	records := make([]Record, 0, hp.NumUsed())
	for slot := 0; slot < hp.NumSlots(); slot++ {
		if hp.IsAllocated(slot) {
			records = append(records, desc.Decode(hp.AccessRecord(slot)))
		}
	}
	return records
}
