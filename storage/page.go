package storage

import (
	"sync"

	"github.com/Frederickfan/Database-management-system/common"
)

type pageFrameMetadata struct {
	pageID   common.PageID
	pinCount int
	refBit   bool
	dirty    bool
	sync.Mutex
}

// PageFrame represents a physical page of data in memory.
// It holds the raw bytes of the page and the pin/clock bookkeeping used by the BufferPool.
type PageFrame struct {
	// Bytes holds the raw physical data of the page.
	Bytes [common.PageSize]byte
	// PageLatch guards Bytes. Readers of a shared page take RLock; the heap appender takes Lock.
	PageLatch sync.RWMutex
	pageFrameMetadata
}

// PageID returns the identity of the page currently held by the frame.
func (frame *PageFrame) PageID() common.PageID {
	frame.Lock()
	defer frame.Unlock()
	return frame.pageID
}
