package testutil

import (
	"context"
	"path"
	"strings"
	"sync"

	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/storage"
)

var _ storage.FileStore = (*InMemoryFileStore)(nil)

// InMemoryFileStore keeps saved files in a map keyed by relative path
type InMemoryFileStore struct {
	mu      sync.RWMutex
	subpath string
	files   map[string][]byte
}

func NewInMemoryFileStore(subpath string) *InMemoryFileStore {
	return &InMemoryFileStore{
		subpath: strings.Trim(subpath, "/"),
		files:   make(map[string][]byte),
	}
}

func (s *InMemoryFileStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := path.Join(s.subpath, path.Base(name))
	if _, ok := s.files[rel]; ok {
		return "", ierr.NewErrorf("file %s already exists", rel).
			WithHint("Statement file already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.files[rel] = append([]byte(nil), data...)
	return rel, nil
}

func (s *InMemoryFileStore) Open(ctx context.Context, relPath string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[relPath]
	if !ok {
		return nil, ierr.NewErrorf("file %s not found", relPath).
			WithHint("Statement file was not found").
			Mark(ierr.ErrNotFound)
	}
	return data, nil
}

func (s *InMemoryFileStore) Exists(ctx context.Context, relPath string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[relPath]
	return ok, nil
}

// Remove deletes a file, simulating storage loss
func (s *InMemoryFileStore) Remove(relPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, relPath)
}

// Paths lists every stored file
func (s *InMemoryFileStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	return paths
}

func (s *InMemoryFileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string][]byte)
}
