package table

import (
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Frederickfan/Database-management-system/catalog"
	"github.com/Frederickfan/Database-management-system/common"
	"github.com/Frederickfan/Database-management-system/logging"
	"github.com/Frederickfan/Database-management-system/storage"
)

// Manager manages the lifecycle of Heap objects. Heaps of permanent tables are opened eagerly; temporary heaps
// are created and dropped while queries run, so the set lives in a concurrent map.
type Manager struct {
	catalog    *catalog.Catalog
	provider   catalog.PersistenceProvider
	bufferPool *storage.BufferPool
	heaps      *xsync.MapOf[common.ObjectID, *Heap]
}

// NewManager opens a Heap for every table defined in the catalog.
func NewManager(cat *catalog.Catalog, provider catalog.PersistenceProvider, bufferPool *storage.BufferPool) (*Manager, error) {
	tm := &Manager{
		catalog:    cat,
		provider:   provider,
		bufferPool: bufferPool,
		heaps:      xsync.NewMapOf[common.ObjectID, *Heap](),
	}
	for _, name := range cat.TableNames() {
		tableDef, err := cat.GetTableMetadata(name)
		if err != nil {
			return nil, err
		}
		heap, err := OpenHeap(tableDef, bufferPool)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to initialize table '%s'", name)
		}
		tm.heaps.Store(tableDef.Oid, heap)
	}
	return tm, nil
}

func (tm *Manager) Catalog() *catalog.Catalog {
	return tm.catalog
}

func (tm *Manager) BufferPool() *storage.BufferPool {
	return tm.bufferPool
}

// CreateTable registers a permanent table and formats its relation file.
func (tm *Manager) CreateTable(name string, columns []catalog.Column, recordsPerPage int) (*Heap, error) {
	tableDef, err := tm.catalog.AddTable(name, columns, recordsPerPage, tm.provider)
	if err != nil {
		return nil, err
	}
	return tm.open(tableDef)
}

// CreateTempTable registers a temporary table. It is never persisted in the catalog and must be dropped by its
// creator.
func (tm *Manager) CreateTempTable(name string, columns []catalog.Column, recordsPerPage int) (*Heap, error) {
	tableDef, err := tm.catalog.AddTemporaryTable(name, columns, recordsPerPage)
	if err != nil {
		return nil, err
	}
	return tm.open(tableDef)
}

// open formats the relation file of a newly registered table. A file already on disk under the same oid is left
// over from a temporary table of a process that died before dropping it, and is removed first.
func (tm *Manager) open(tableDef *catalog.Table) (*Heap, error) {
	tm.bufferPool.DiscardPages(tableDef.Oid)
	err := tm.bufferPool.StorageManager().DeleteDBFile(tableDef.Oid)
	if err != nil {
		err = errors.Wrapf(err, "remove stale relation file of '%s'", tableDef.Name)
	}
	var heap *Heap
	if err == nil {
		if heap, err = OpenHeap(tableDef, tm.bufferPool); err != nil {
			tm.bufferPool.DiscardPages(tableDef.Oid)
			_ = tm.bufferPool.StorageManager().DeleteDBFile(tableDef.Oid)
		}
	}
	if err != nil {
		// unregister the table so that its name can be reused
		_, _ = tm.catalog.DropTable(tableDef.Name, tm.provider)
		return nil, err
	}
	tm.heaps.Store(tableDef.Oid, heap)
	logging.WithTable(tableDef.Name).WithField("temporary", tableDef.Temporary).Debug("table created")
	return heap, nil
}

// GetHeap returns the heap of a table by name.
func (tm *Manager) GetHeap(name string) (*Heap, error) {
	tableDef, err := tm.catalog.GetTableMetadata(name)
	if err != nil {
		return nil, err
	}
	return tm.GetTable(tableDef.Oid)
}

// GetTable retrieves the Heap for a given table oid.
func (tm *Manager) GetTable(oid common.ObjectID) (*Heap, error) {
	if heap, exists := tm.heaps.Load(oid); exists {
		return heap, nil
	}
	return nil, common.NewError(common.NoSuchObjectError, "object '%d' not found", oid)
}

// DropTable removes a table from the catalog, drops its cached pages and deletes its relation file.
func (tm *Manager) DropTable(name string) error {
	tableDef, err := tm.catalog.DropTable(name, tm.provider)
	if err != nil {
		return err
	}
	tm.heaps.Delete(tableDef.Oid)
	tm.bufferPool.DiscardPages(tableDef.Oid)
	if err = tm.bufferPool.StorageManager().DeleteDBFile(tableDef.Oid); err != nil {
		return errors.Wrapf(err, "delete relation file of '%s'", name)
	}
	logging.WithTable(name).Debug("table dropped")
	return nil
}
