// Package storage defines the contract of the session blob store.
//
// The whole session collection lives under one key. Stores carry an opaque
// version with every read so a write can be rejected when another writer got
// there first.
package storage

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/zeebo/blake3"
)

// ErrVersionConflict indicates the stored blob changed since it was read.
var ErrVersionConflict = errors.New("session blob version conflict")

// Snapshot is one read of the blob. An empty Version means nothing is stored.
type Snapshot struct {
	Data    []byte
	Version string
}

// BlobStore reads and replaces the session blob.
type BlobStore interface {
	// Get returns the current blob. A missing blob is an empty Snapshot.
	Get(ctx context.Context) (Snapshot, error)
	// Put replaces the blob when the stored version still equals
	// expectedVersion. An empty expectedVersion only succeeds when nothing is
	// stored yet. Put returns the new version.
	Put(ctx context.Context, data []byte, expectedVersion string) (string, error)
}

// DigestPrefix marks content-derived versions.
const DigestPrefix = "b3:"

// Digest returns the content-derived version of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return DigestPrefix + hex.EncodeToString(sum[:16])
}
