// Package kvhttp stores the session blob in a remote HTTP key-value service.
//
// The service answers GET with the stored bytes and accepts POST with the
// replacement body. Services that return an ETag get real compare-and-swap
// through If-Match; others are versioned by content digest, which only
// narrows the lost-update window.
package kvhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/louisbranch/lobby/internal/services/lobby/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// maxBlobBytes bounds a single read from the key-value service.
const maxBlobBytes = 16 << 20

// Store is a BlobStore backed by one URL.
type Store struct {
	url    string
	client *http.Client
}

// New creates a store that reads and writes the given URL.
func New(url string, client *http.Client) (*Store, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("store url is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{url: url, client: client}, nil
}

// Get fetches the blob. A 404 is an empty snapshot.
func (s *Store) Get(ctx context.Context) (storage.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("build get request: %w", err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.client.Do(req)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storage.Snapshot{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return storage.Snapshot{}, fmt.Errorf("get returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes+1))
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("read blob: %w", err)
	}
	if len(data) > maxBlobBytes {
		return storage.Snapshot{}, fmt.Errorf("blob exceeds %d bytes", maxBlobBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return storage.Snapshot{}, nil
	}
	return storage.Snapshot{Data: data, Version: versionOf(resp.Header, data)}, nil
}

// Put writes the blob.
//
// An ETag version is sent as If-Match and an empty version as
// If-None-Match: *. A digest version is re-checked with a fresh read right
// before the write.
func (s *Store) Put(ctx context.Context, data []byte, expectedVersion string) (string, error) {
	if strings.HasPrefix(expectedVersion, storage.DigestPrefix) {
		current, err := s.Get(ctx)
		if err != nil {
			return "", err
		}
		if current.Version != expectedVersion {
			return "", storage.ErrVersionConflict
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build put request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	switch {
	case expectedVersion == "":
		req.Header.Set("If-None-Match", "*")
	case !strings.HasPrefix(expectedVersion, storage.DigestPrefix):
		req.Header.Set("If-Match", expectedVersion)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("put request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBlobBytes))

	if resp.StatusCode == http.StatusPreconditionFailed {
		return "", storage.ErrVersionConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("put returned %s", resp.Status)
	}
	return versionOf(resp.Header, data), nil
}

func versionOf(header http.Header, data []byte) string {
	if etag := strings.TrimSpace(header.Get("ETag")); etag != "" {
		return etag
	}
	return storage.Digest(data)
}

var _ storage.BlobStore = (*Store)(nil)
