package godb

import (
	"os"

	"github.com/pkg/errors"

	// Imports all sub-components
	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/config"
	"github.com/Frederickfan/Database-management-system/logging"
	"github.com/Frederickfan/Database-management-system/storage"
	"github.com/Frederickfan/Database-management-system/table"
	"github.com/Frederickfan/Database-management-system/transaction"
)

// GoDB is the top-level container for the database system.
type GoDB struct {
	Config             config.Config
	Catalog            *catalog.Catalog
	BufferPool         *storage.BufferPool
	Files              *storage.CountingFileManager
	TableManager       *table.Manager
	TransactionManager *transaction.TransactionManager
	flusher            *storage.BackgroundFlusher
}

// Open creates (or reopens) the engine described by cfg.
func Open(cfg config.Config) (*GoDB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.CatalogPath(), 0755); err != nil {
		return nil, err
	}

	provider := catalog.NewDiskCatalogManager(cfg.CatalogPath())
	cat, err := catalog.NewCatalog(provider)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	files := storage.NewCountingFileManager(storage.NewDiskStorageManager(cfg.StorageDir))
	bufferPool := storage.NewBufferPool(cfg.BufferPoolPages, files)
	tableManager, err := table.NewManager(cat, provider, bufferPool)
	if err != nil {
		return nil, err
	}

	var flusher *storage.BackgroundFlusher
	if cfg.FlushInterval > 0 {
		flusher = storage.NewBackgroundFlusher(bufferPool, cfg.FlushInterval)
		flusher.Start()
	}

	logging.ForComponent("godb").WithField("storage_dir", cfg.StorageDir).
		WithField("buffer_pool_pages", cfg.BufferPoolPages).Info("database opened")
	return &GoDB{
		Config:             cfg,
		Catalog:            cat,
		BufferPool:         bufferPool,
		Files:              files,
		TableManager:       tableManager,
		TransactionManager: transaction.NewTransactionManager(tableManager),
		flusher:            flusher,
	}, nil
}

// CreateTable creates a permanent table. A positive recordsPerPage caps how many records each page holds.
func (db *GoDB) CreateTable(name string, columns []catalog.Column, recordsPerPage int) (*table.Heap, error) {
	return db.TableManager.CreateTable(name, columns, recordsPerPage)
}

// Insert appends records to a table.
func (db *GoDB) Insert(name string, records ...storage.Record) error {
	heap, err := db.TableManager.GetHeap(name)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err = heap.Append(rec); err != nil {
			return err
		}
	}
	return nil
}

// Begin starts a transaction. A non-positive numMemoryPages selects the configured operator budget.
func (db *GoDB) Begin(numMemoryPages int) *transaction.TransactionContext {
	if numMemoryPages <= 0 {
		numMemoryPages = db.Config.OperatorMemoryPages
	}
	return db.TransactionManager.Begin(numMemoryPages)
}

// Tables lists the permanent tables.
func (db *GoDB) Tables() []string {
	return db.Catalog.TableNames()
}

// DiskReads returns the number of pages read from disk since the last ResetDiskReads.
func (db *GoDB) DiskReads() int64 {
	return db.Files.TotalReads()
}

func (db *GoDB) ResetDiskReads() {
	db.Files.ResetCounters()
}

// Close ends every open transaction and writes all dirty pages back to disk.
func (db *GoDB) Close() error {
	if err := db.TransactionManager.CloseAll(); err != nil {
		return err
	}
	if db.flusher != nil {
		db.flusher.Stop()
	}
	return db.BufferPool.FlushAllPages()
}
