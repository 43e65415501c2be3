package storage

import (
	"sync"
	"time"

	"github.com/Frederickfan/Database-management-system/logging"
)

// BackgroundFlusher periodically writes dirty pages of a BufferPool back to disk, so that pages of long
// running loads and generated relations do not pile up until shutdown.
type BackgroundFlusher struct {
	bufferPool *BufferPool
	interval   time.Duration
	shutdown   chan struct{}
	done       sync.WaitGroup
	stopOnce   sync.Once
}

func NewBackgroundFlusher(bp *BufferPool, interval time.Duration) *BackgroundFlusher {
	return &BackgroundFlusher{
		bufferPool: bp,
		interval:   interval,
		shutdown:   make(chan struct{}),
	}
}

// Start launches the flush loop.
func (bf *BackgroundFlusher) Start() {
	bf.done.Add(1)
	go bf.flushLoop()
}

// Stop signals the flusher to shut down and blocks until the final flush is complete. Later calls are no-ops.
func (bf *BackgroundFlusher) Stop() {
	bf.stopOnce.Do(func() {
		close(bf.shutdown)
		bf.done.Wait()
	})
}

func (bf *BackgroundFlusher) flushLoop() {
	defer bf.done.Done()
	ticker := time.NewTicker(bf.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// best effort: the next tick or the final flush retries
			if err := bf.bufferPool.FlushAllPages(); err != nil {
				logging.ForComponent("flusher").WithError(err).Warn("periodic flush failed")
			}
		case <-bf.shutdown:
			if err := bf.bufferPool.FlushAllPages(); err != nil {
				logging.ForComponent("flusher").WithError(err).Warn("final flush failed")
			}
			return
		}
	}
}
