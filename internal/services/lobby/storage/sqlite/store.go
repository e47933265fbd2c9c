// Package sqlite provides a SQLite-backed session blob store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/lobby/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/lobby/internal/services/lobby/storage"
	"github.com/louisbranch/lobby/internal/services/lobby/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DefaultKey is the row holding the session collection.
const DefaultKey = "sessions"

// Store persists the session blob in one SQLite row with an integer revision.
type Store struct {
	sqlDB *sql.DB
	key   string
	clock func() time.Time
}

// Open opens a SQLite blob store and applies embedded migrations.
func Open(path string) (*Store, error) {
	return OpenWithKey(path, DefaultKey)
}

// OpenWithKey is Open with an explicit row key.
func OpenWithKey(path string, key string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("storage key is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, key: key, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the stored blob and its revision.
func (s *Store) Get(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	var (
		data     []byte
		revision int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT data, revision FROM blobs WHERE key = ?`,
		s.key,
	).Scan(&data, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, nil
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("get session blob: %w", err)
	}
	return storage.Snapshot{Data: data, Version: strconv.FormatInt(revision, 10)}, nil
}

// Put writes the blob when the stored revision equals expectedVersion.
func (s *Store) Put(ctx context.Context, data []byte, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if data == nil {
		data = []byte{}
	}
	now := s.clock().UTC().UnixMilli()

	if expectedVersion == "" {
		result, err := s.sqlDB.ExecContext(ctx,
			`INSERT INTO blobs (key, data, revision, updated_at)
			 VALUES (?, ?, 1, ?)
			 ON CONFLICT(key) DO NOTHING`,
			s.key, data, now,
		)
		if err != nil {
			return "", fmt.Errorf("create session blob: %w", err)
		}
		if err := requireOneRow(result); err != nil {
			return "", err
		}
		return "1", nil
	}

	revision, err := strconv.ParseInt(expectedVersion, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse expected revision %q: %w", expectedVersion, err)
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE blobs
		    SET data = ?, revision = revision + 1, updated_at = ?
		  WHERE key = ? AND revision = ?`,
		data, now, s.key, revision,
	)
	if err != nil {
		return "", fmt.Errorf("update session blob: %w", err)
	}
	if err := requireOneRow(result); err != nil {
		return "", err
	}
	return strconv.FormatInt(revision+1, 10), nil
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session blob rows affected: %w", err)
	}
	if affected != 1 {
		return storage.ErrVersionConflict
	}
	return nil
}

var _ storage.BlobStore = (*Store)(nil)
