package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (FileStore, string) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Storage.Root = t.TempDir()
	cfg.Storage.Subpath = "uploads/statements"
	return NewLocalStore(cfg, logger.NewNopLogger()), cfg.Storage.Root
}

func TestLocalStoreSaveReturnsRelativePath(t *testing.T) {
	store, root := newLocal(t)
	ctx := context.Background()

	rel, err := store.Save(ctx, "ORG_7_20240401093000.xlsx", []byte("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/statements/ORG_7_20240401093000.xlsx", rel)

	onDisk, err := os.ReadFile(filepath.Join(root, "uploads", "statements", "ORG_7_20240401093000.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), onDisk)

	data, err := store.Open(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)

	ok, err := store.Exists(ctx, rel)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalStoreRefusesToOverwrite(t *testing.T) {
	store, root := newLocal(t)
	ctx := context.Background()

	rel, err := store.Save(ctx, "PAT_10_20240401093000000000000.xlsx", []byte("first"))
	require.NoError(t, err)

	_, err = store.Save(ctx, "PAT_10_20240401093000000000000.xlsx", []byte("second"))
	require.Error(t, err)
	assert.True(t, ierr.IsAlreadyExists(err))

	onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), onDisk)
}

func TestLocalStoreMissingFile(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "uploads/statements/missing.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, "uploads/statements/missing.xlsx")
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
}

func TestLocalStoreStaysUnderRoot(t *testing.T) {
	store, root := newLocal(t)
	ctx := context.Background()

	rel, err := store.Save(ctx, "../../escape.xlsx", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/statements/escape.xlsx", rel)

	ok, err := store.Exists(ctx, "../../uploads/statements/escape.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewFileStoreRejectsUnknownProvider(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Storage.Provider = "ftp"
	_, err := NewFileStore(cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
