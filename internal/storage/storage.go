package storage

import (
	"context"
	"path"
	"strings"

	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FileStore persists rendered statement files. Paths handed in and out are
// relative to the storage root and always use forward slashes.
type FileStore interface {
	// Save writes data as name under the statements directory and returns its relative path
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Open reads the file at a relative path. A missing file is marked not found.
	Open(ctx context.Context, relPath string) ([]byte, error)

	// Exists reports whether a file is present at a relative path
	Exists(ctx context.Context, relPath string) (bool, error)
}

// NewFileStore returns the store selected by storage.provider
func NewFileStore(cfg *config.Configuration, logger *logger.Logger) (FileStore, error) {
	switch cfg.Storage.Provider {
	case config.StorageProviderS3:
		return NewS3Store(cfg, logger)
	case config.StorageProviderLocal, "":
		return NewLocalStore(cfg, logger), nil
	default:
		return nil, ierr.NewErrorf("unknown storage provider: %s", cfg.Storage.Provider).
			WithHint("storage.provider must be local or s3").
			Mark(ierr.ErrValidation)
	}
}

// relativePath joins the statements subpath and a file name
func relativePath(subpath, name string) string {
	return path.Join(strings.Trim(subpath, "/"), path.Base(name))
}

// cleanRelative rejects paths that escape the storage root
func cleanRelative(relPath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(relPath, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ierr.NewError("empty file path").
			WithHint("A statement file path is required").
			Mark(ierr.ErrValidation)
	}
	return cleaned, nil
}
