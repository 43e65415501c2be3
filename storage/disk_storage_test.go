package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frederickfan/Database-management-system/common"
)

func TestDiskDBFile_AllocateReadWrite(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "rel.dat"))
	require.NoError(t, err)
	dbFile, err := NewDiskDBFile(f)
	require.NoError(t, err)
	defer dbFile.Close()

	first, err := dbFile.AllocatePage(2)
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	next, err := dbFile.AllocatePage(1)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
	numPages, err := dbFile.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 3, numPages)

	page := make([]byte, common.PageSize)
	copy(page, "relation page two")
	require.NoError(t, dbFile.WritePage(2, page))
	readBack := make([]byte, common.PageSize)
	require.NoError(t, dbFile.ReadPage(2, readBack))
	assert.True(t, bytes.Equal(page, readBack))

	err = dbFile.ReadPage(3, readBack)
	assert.True(t, common.IsCode(err, common.StorageError), "got %v", err)
	err = dbFile.WritePage(3, page)
	assert.True(t, common.IsCode(err, common.StorageError), "got %v", err)
}

func TestDiskDBFileManager_ReopenAndDelete(t *testing.T) {
	dir := t.TempDir()
	oid := common.ObjectID(3)

	manager := NewDiskStorageManager(dir)
	file, err := manager.GetDBFile(oid)
	require.NoError(t, err)
	again, err := manager.GetDBFile(oid)
	require.NoError(t, err)
	assert.Same(t, file, again)

	_, err = file.AllocatePage(4)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	// a fresh manager sees the pages already on disk
	reopened, err := NewDiskStorageManager(dir).GetDBFile(oid)
	require.NoError(t, err)
	numPages, err := reopened.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 4, numPages)
	require.NoError(t, reopened.Close())

	require.NoError(t, manager.DeleteDBFile(oid))
	_, err = os.Stat(filepath.Join(dir, "dbo_3.dat"))
	assert.True(t, os.IsNotExist(err))
	// deleting a missing file is not an error
	require.NoError(t, manager.DeleteDBFile(oid))
}
