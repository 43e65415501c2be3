package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Frederickfan/Database-management-system/common"
)

// Catalog manages the database schema and provides fast lookups by table name.
// For simplicity, the catalog is serialized as a single JSON blob. Only permanent tables are persisted: temporary
// tables (sorted runs, materialized join inputs) live for the duration of the transaction that created them and
// are never written to the catalog file.
type Catalog struct {
	catalogState

	mu       sync.RWMutex
	tableMap map[string]*Table // TableName -> Table, permanent and temporary
}

// Column represents the basic unit of a table schema.
type Column struct {
	Name string      `json:"name"`
	Type common.Type `json:"type"`
}

// Table is the primary metadata structure for a relation.
type Table struct {
	Oid     common.ObjectID `json:"oid"`
	Name    string          `json:"name"`
	Columns []Column        `json:"columns"`
	// RecordsPerPage caps the number of slots of every heap page of the table; 0 fills pages to capacity.
	RecordsPerPage int  `json:"records_per_page,omitempty"`
	Temporary      bool `json:"-"`
}

// PersistenceProvider abstracts how the catalog is saved to and loaded from disk.
type PersistenceProvider interface {
	LoadCatalogState() (json string, err error)
	SaveCatalogState(json string) error
}

func (t *Table) String() string {
	b, _ := json.MarshalIndent(t, "", "  ")
	return string(b)
}

// ColumnIndex resolves a column name to its position in the table schema.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, col := range t.Columns {
		if col.Name == name {
			return i, nil
		}
	}
	return -1, common.NewError(common.NoSuchColumnError, "column '%s' does not exist in table '%s'", name, t.Name)
}

// ColumnTypes returns the types of the table's columns in schema order.
func (t *Table) ColumnTypes() []common.Type {
	types := make([]common.Type, len(t.Columns))
	for i, col := range t.Columns {
		types[i] = col.Type
	}
	return types
}

type catalogState struct {
	NextId uint32   `json:"next_id"`
	Tables []*Table `json:"tables"`
}

func (c *Catalog) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, _ := json.MarshalIndent(&c.catalogState, "", "  ")
	return string(b)
}

// persist writes the permanent tables through provider. Must hold mu.
func (c *Catalog) persist(provider PersistenceProvider) error {
	b, err := json.MarshalIndent(&c.catalogState, "", "  ")
	if err != nil {
		return err
	}
	return provider.SaveCatalogState(string(b))
}

func (c *Catalog) fromJSON(jsonData string) error {
	if err := json.Unmarshal([]byte(jsonData), &c.catalogState); err != nil {
		return err
	}
	for _, t := range c.Tables {
		c.tableMap[t.Name] = t
	}
	return nil
}

// NewCatalog initializes a catalog. It attempts to load existing state
// from the provider; if no state exists, it starts with an empty database.
func NewCatalog(provider PersistenceProvider) (*Catalog, error) {
	result := &Catalog{
		catalogState: catalogState{
			NextId: 0,
			Tables: make([]*Table, 0),
		},
		tableMap: make(map[string]*Table),
	}

	jsonData, err := provider.LoadCatalogState()
	if errors.Is(err, os.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if err = result.fromJSON(jsonData); err != nil {
		// Parsing errors are fatal system errors, usually indicating corruption
		return nil, fmt.Errorf("failed to parse catalog state: %v", err)
	}
	return result, nil
}

func (c *Catalog) newTable(tableName string, columns []Column, recordsPerPage int, temporary bool) (*Table, error) {
	if _, exists := c.tableMap[tableName]; exists {
		return nil, common.NewError(common.DuplicateObjectError, "table '%s' already exists", tableName)
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if seen[col.Name] {
			return nil, common.NewError(common.DuplicateObjectError, "column '%s' appears twice in table '%s'", col.Name, tableName)
		}
		seen[col.Name] = true
	}

	// oid 0 is reserved for INVALID
	c.NextId++
	t := &Table{
		Oid:            common.ObjectID(c.NextId),
		Name:           tableName,
		Columns:        append([]Column(nil), columns...),
		RecordsPerPage: recordsPerPage,
		Temporary:      temporary,
	}
	c.tableMap[tableName] = t
	return t, nil
}

// AddTable registers a new permanent table in the catalog.
// It assigns a globally unique ObjectID to the table and persists the updated state. If the table with that name
// already exists, it returns DuplicateObjectError.
func (c *Catalog) AddTable(tableName string, columns []Column, recordsPerPage int, provider PersistenceProvider) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.newTable(tableName, columns, recordsPerPage, false)
	if err != nil {
		return nil, err
	}
	c.Tables = append(c.Tables, t)
	return t, c.persist(provider)
}

// AddTemporaryTable registers a table that only lives in memory. Its ObjectID is still unique so it can own a
// relation file.
func (c *Catalog) AddTemporaryTable(tableName string, columns []Column, recordsPerPage int) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newTable(tableName, columns, recordsPerPage, true)
}

// DropTable removes a table from the catalog. Dropping a permanent table persists the updated state; provider
// may be nil for temporary tables.
func (c *Catalog) DropTable(tableName string, provider PersistenceProvider) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, exists := c.tableMap[tableName]
	if !exists {
		return nil, common.NewError(common.NoSuchObjectError, "table '%s' does not exist", tableName)
	}
	delete(c.tableMap, tableName)
	if t.Temporary {
		return t, nil
	}
	for i, other := range c.Tables {
		if other == t {
			c.Tables = append(c.Tables[:i], c.Tables[i+1:]...)
			break
		}
	}
	return t, c.persist(provider)
}

// GetTableMetadata fetches the schema for a specific table name.
func (c *Catalog) GetTableMetadata(tableName string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, exists := c.tableMap[tableName]
	if !exists {
		return nil, common.NewError(common.NoSuchObjectError, "table '%s' does not exist", tableName)
	}
	return table, nil
}

// TableNames lists the permanent tables in creation order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.Name
	}
	return names
}

const CatalogFileName = "catalog.json"

type DiskCatalogManager struct {
	rootPath string
}

func NewDiskCatalogManager(rootPath string) *DiskCatalogManager {
	return &DiskCatalogManager{
		rootPath: rootPath,
	}
}

// LoadCatalogState implements the catalog.PersistenceProvider interface.
func (dcm *DiskCatalogManager) LoadCatalogState() (string, error) {
	content, err := os.ReadFile(filepath.Join(dcm.rootPath, CatalogFileName))
	if err != nil {
		return "", err // Let the caller (Catalog) handle os.ErrNotExist
	}
	return string(content), nil
}

// SaveCatalogState implements the catalog.PersistenceProvider interface. The write is atomic: the state goes to
// a temporary file that is then renamed over the catalog file.
func (dcm *DiskCatalogManager) SaveCatalogState(jsonData string) error {
	tmpPath := filepath.Join(dcm.rootPath, CatalogFileName+".tmp")
	if err := os.WriteFile(tmpPath, []byte(jsonData), 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, filepath.Join(dcm.rootPath, CatalogFileName))
}
