// Package registry owns the session collection's fetch, prune, mutate and
// write cycle.
//
// Every operation reads the whole blob, prunes idle players, applies one
// mutation and writes the result back. Operations within a process are
// serialized; writes from other processes are detected through the store's
// version and the cycle is retried.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
	"github.com/louisbranch/lobby/internal/platform/timeouts"
	"github.com/louisbranch/lobby/internal/services/lobby/codec"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	"github.com/louisbranch/lobby/internal/services/lobby/pops"
	"github.com/louisbranch/lobby/internal/services/lobby/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/lobby/internal/services/lobby/registry"

// DefaultMaxAttempts bounds the read-modify-write retries on version conflicts.
const DefaultMaxAttempts = 3

// Config tunes a registry.
type Config struct {
	// PlayerTTL is the idle time after which a player is pruned.
	PlayerTTL time.Duration
	// StoreTimeout bounds each store round-trip.
	StoreTimeout time.Duration
	// MaxAttempts bounds retries after a version conflict.
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.PlayerTTL <= 0 {
		c.PlayerTTL = domain.DefaultPlayerTTL
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = timeouts.StoreRequest
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Registry is the session registry.
type Registry struct {
	mu      sync.Mutex
	store   storage.BlobStore
	codec   codec.Codec
	catalog *pops.Catalog
	cfg     Config
	clock   func() time.Time
	tracer  trace.Tracer
}

// New creates a registry over store. A nil catalog accepts any region.
func New(store storage.BlobStore, c codec.Codec, catalog *pops.Catalog, cfg Config) (*Registry, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if c == nil {
		return nil, errors.New("session codec is required")
	}
	return &Registry{
		store:   store,
		codec:   c,
		catalog: catalog,
		cfg:     cfg.withDefaults(),
		clock:   time.Now,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// now returns the registry time at the millisecond precision the blob keeps.
func (r *Registry) now() time.Time {
	now := time.Now()
	if r.clock != nil {
		now = r.clock()
	}
	return now.UTC().Truncate(time.Millisecond)
}

// mutation edits the pruned list in place or returns a new one. The returned
// list is persisted even when an error is returned.
type mutation func(list domain.SessionList, now time.Time) (domain.SessionList, error)

// cycle runs fetch, prune, mutate and write, retrying on version conflicts.
func (r *Registry) cycle(ctx context.Context, op string, refresh *domain.Refresh, mutate mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := r.tracer.Start(ctx, "registry."+op)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	var opErr error
	for attempt := 1; ; attempt++ {
		span.SetAttributes(attribute.Int("lobby.attempt", attempt))
		now := r.now()

		snap, list := r.load(ctx, op)
		pruned, result := domain.Prune(list, now, r.cfg.PlayerTTL, refresh)
		if result.Players > 0 {
			span.SetAttributes(
				attribute.Int("lobby.pruned_players", result.Players),
				attribute.Int("lobby.pruned_sessions", result.Sessions),
			)
		}

		next, err := mutate(pruned, now)
		opErr = err
		if next == nil {
			next = pruned
		}

		err = r.save(ctx, snap, next)
		if errors.Is(err, storage.ErrVersionConflict) && attempt < r.cfg.MaxAttempts {
			continue
		}
		if err != nil {
			log.Printf("registry %s: write dropped after %d attempt(s): %v", op, attempt, err)
			span.AddEvent("write dropped", trace.WithAttributes(attribute.String("error", err.Error())))
		}
		break
	}

	if opErr != nil {
		span.SetAttributes(attribute.String("lobby.error_code", string(lobbyerrors.CodeOf(opErr))))
		if lobbyerrors.CodeOf(opErr) == lobbyerrors.CodeUnknown {
			span.RecordError(opErr)
			span.SetStatus(otelcodes.Error, opErr.Error())
		}
	}
	return opErr
}

// load reads and decodes the blob. Any failure degrades to an empty list.
func (r *Registry) load(ctx context.Context, op string) (storage.Snapshot, domain.SessionList) {
	storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	snap, err := r.store.Get(storeCtx)
	if err != nil {
		log.Printf("registry %s: %v", op, lobbyerrors.Wrap(lobbyerrors.CodeStoreUnavailable, "read session blob", err))
		return storage.Snapshot{}, domain.SessionList{}
	}
	list, err := r.codec.Decode(snap.Data)
	if err != nil {
		log.Printf("registry %s: decode session blob (%s): %v", op, r.codec.Name(), err)
		return snap, domain.SessionList{}
	}
	return snap, list
}

// save encodes list and writes it unless the bytes are unchanged.
func (r *Registry) save(ctx context.Context, snap storage.Snapshot, list domain.SessionList) error {
	data, err := r.codec.Encode(list)
	if err != nil {
		return fmt.Errorf("encode session blob: %w", err)
	}
	if bytes.Equal(data, snap.Data) {
		return nil
	}
	if len(list) == 0 && len(snap.Data) == 0 {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	if _, err := r.store.Put(storeCtx, data, snap.Version); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		return lobbyerrors.Wrap(lobbyerrors.CodeStoreUnavailable, "write session blob", err)
	}
	return nil
}

// Check reports whether the store answers a read.
func (r *Registry) Check(ctx context.Context) error {
	storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	if _, err := r.store.Get(storeCtx); err != nil {
		return lobbyerrors.Wrap(lobbyerrors.CodeStoreUnavailable, "session store unavailable", err)
	}
	return nil
}
