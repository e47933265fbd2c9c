// Package memory provides an in-process session blob store.
package memory

import (
	"context"
	"sync"

	"github.com/louisbranch/lobby/internal/services/lobby/storage"
)

// Store keeps the blob in memory, versioned by content digest.
type Store struct {
	mu      sync.Mutex
	data    []byte
	version string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Get returns a copy of the stored blob.
func (s *Store) Get(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.Snapshot{
		Data:    append([]byte(nil), s.data...),
		Version: s.version,
	}, nil
}

// Put replaces the blob when expectedVersion matches.
func (s *Store) Put(ctx context.Context, data []byte, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if expectedVersion != s.version {
		return "", storage.ErrVersionConflict
	}
	s.data = append([]byte(nil), data...)
	s.version = storage.Digest(s.data)
	return s.version, nil
}

var _ storage.BlobStore = (*Store)(nil)
