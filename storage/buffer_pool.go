package storage

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Frederickfan/Database-management-system/common"
)

// BufferPool caches relation pages in a fixed number of frames and evicts unpinned pages with the clock
// algorithm. Hits only take the latch of the frame they touch; misses are serialized by missMu so that two callers
// never load the same page into different frames.
type BufferPool struct {
	storageManager DBFileManager
	frames         []PageFrame
	clockHand      int
	pageTable      *xsync.MapOf[common.PageID, *PageFrame]
	missMu         sync.Mutex
}

// NewBufferPool creates a BufferPool with numPages frames backed by storageManager.
func NewBufferPool(numPages int, storageManager DBFileManager) *BufferPool {
	common.Assert(numPages > 0, "buffer pool needs at least one frame")
	return &BufferPool{
		storageManager: storageManager,
		frames:         make([]PageFrame, numPages),
		pageTable:      xsync.NewMapOf[common.PageID, *PageFrame](),
	}
}

func (bp *BufferPool) StorageManager() DBFileManager {
	return bp.storageManager
}

// NumFrames returns the capacity of the pool in pages.
func (bp *BufferPool) NumFrames() int {
	return len(bp.frames)
}

func tryTouchPage(frame *PageFrame, pageID common.PageID) bool {
	frame.Lock()
	defer frame.Unlock()
	// The frame may have been recycled for another page after the table lookup.
	if frame.pageID != pageID {
		return false
	}
	frame.pinCount++
	frame.refBit = true
	return true
}

// findVictim returns an unpinned frame, LOCKED, or nil if every frame is pinned. Must hold missMu.
func (bp *BufferPool) findVictim() *PageFrame {
	// Two full sweeps: the first clears reference bits, the second is guaranteed to find any unpinned frame.
	for i := 0; i < 2*len(bp.frames); i++ {
		frame := &bp.frames[bp.clockHand]
		bp.clockHand = (bp.clockHand + 1) % len(bp.frames)

		frame.Lock()
		if frame.pinCount > 0 {
			frame.Unlock()
			continue
		}
		if frame.refBit {
			frame.refBit = false
			frame.Unlock()
			continue
		}
		return frame
	}
	return nil
}

// flush writes a LOCKED frame back to its file if it is dirty.
func (bp *BufferPool) flush(frame *PageFrame) error {
	if frame.pageID.IsNil() || !frame.dirty {
		return nil
	}
	file, err := bp.storageManager.GetDBFile(frame.pageID.Oid)
	if err != nil {
		return err
	}
	frame.PageLatch.RLock()
	defer frame.PageLatch.RUnlock()
	if err = file.WritePage(int(frame.pageID.PageNum), frame.Bytes[:]); err != nil {
		return err
	}
	frame.dirty = false
	return nil
}

// GetPage returns the frame holding pageID, pinned. Every successful call must be paired with UnpinPage.
func (bp *BufferPool) GetPage(pageID common.PageID) (*PageFrame, error) {
	if frame, ok := bp.pageTable.Load(pageID); ok && tryTouchPage(frame, pageID) {
		return frame, nil
	}

	bp.missMu.Lock()
	defer bp.missMu.Unlock()

	// Another caller may have loaded the page while we waited.
	if frame, ok := bp.pageTable.Load(pageID); ok && tryTouchPage(frame, pageID) {
		return frame, nil
	}

	file, err := bp.storageManager.GetDBFile(pageID.Oid)
	if err != nil {
		return nil, err
	}

	victim := bp.findVictim()
	if victim == nil {
		return nil, common.NewError(common.StorageError, "buffer pool exhausted: all %d frames are pinned", len(bp.frames))
	}
	defer victim.Unlock()

	if err = bp.flush(victim); err != nil {
		return nil, err
	}
	if !victim.pageID.IsNil() {
		bp.pageTable.Delete(victim.pageID)
	}
	victim.pageID = common.PageID{}

	if err = file.ReadPage(int(pageID.PageNum), victim.Bytes[:]); err != nil {
		return nil, err
	}
	victim.pageID = pageID
	victim.pinCount = 1
	// Only a second access marks the page hot.
	victim.refBit = false
	victim.dirty = false
	bp.pageTable.Store(pageID, victim)
	return victim, nil
}

// UnpinPage releases one pin on frame. setDirty marks the page as modified so it is written back before eviction.
func (bp *BufferPool) UnpinPage(frame *PageFrame, setDirty bool) {
	frame.Lock()
	defer frame.Unlock()
	common.Assert(frame.pinCount > 0, "attempting to unpin a page that is not pinned")
	frame.pinCount--
	if setDirty {
		frame.dirty = true
	}
}

// FlushAllPages writes every dirty page back to disk, regardless of pins.
func (bp *BufferPool) FlushAllPages() error {
	for i := range bp.frames {
		frame := &bp.frames[i]
		frame.Lock()
		err := bp.flush(frame)
		frame.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// DiscardPages drops every cached page of oid without writing it back. It is used when a relation is deleted;
// the caller guarantees no page of oid is still pinned.
func (bp *BufferPool) DiscardPages(oid common.ObjectID) {
	bp.missMu.Lock()
	defer bp.missMu.Unlock()
	for i := range bp.frames {
		frame := &bp.frames[i]
		frame.Lock()
		if frame.pageID.Oid == oid && !frame.pageID.IsNil() {
			common.Assert(frame.pinCount == 0, "discarding pinned page %s", frame.pageID.String())
			bp.pageTable.Delete(frame.pageID)
			frame.pageID = common.PageID{}
			frame.dirty = false
			frame.refBit = false
		}
		frame.Unlock()
	}
}
