package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

type localStore struct {
	root    string
	subpath string
	logger  *logger.Logger
}

// NewLocalStore stores files on disk under storage.root
func NewLocalStore(cfg *config.Configuration, logger *logger.Logger) FileStore {
	return &localStore{
		root:    cfg.Storage.Root,
		subpath: cfg.Storage.Subpath,
		logger:  logger,
	}
}

func (s *localStore) abs(relPath string) (string, error) {
	cleaned, err := cleanRelative(relPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *localStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	rel := relativePath(s.subpath, name)
	full, err := s.abs(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create statement directory").
			Mark(ierr.ErrSystem)
	}
	if err := writeNew(full, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", ierr.WithError(err).
				WithHintf("Statement file %s already exists", rel).
				Mark(ierr.ErrAlreadyExists)
		}
		return "", ierr.WithError(err).
			WithHint("Failed to write statement file").
			WithReportableDetails(map[string]any{
				"path": rel,
			}).
			Mark(ierr.ErrSystem)
	}

	s.logger.Debugw("saved statement file", "path", rel, "bytes", len(data))
	return rel, nil
}

// writeNew creates path and fails with fs.ErrExist if it is already there
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *localStore) Open(ctx context.Context, relPath string) ([]byte, error) {
	full, err := s.abs(relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ierr.WithError(err).
				WithHintf("Statement file %s was not found", relPath).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read statement file").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}

func (s *localStore) Exists(ctx context.Context, relPath string) (bool, error) {
	full, err := s.abs(relPath)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHint("Failed to stat statement file").
			Mark(ierr.ErrSystem)
	}
	return !info.IsDir(), nil
}
