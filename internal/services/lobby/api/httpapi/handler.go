// Package httpapi exposes the session registry over HTTP and a websocket
// presence channel.
package httpapi

import (
	"context"
	"net/http"

	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	"github.com/louisbranch/lobby/internal/services/lobby/pops"
	"github.com/louisbranch/lobby/internal/services/lobby/registry"
)

// Service is the registry surface the transport needs.
type Service interface {
	JoinBest(ctx context.Context, playerID uint32, name string, popHint string) (registry.Assignment, error)
	JoinDirect(ctx context.Context, sessionID uint32, playerID uint32, name string) (registry.Assignment, error)
	ListSessions(ctx context.Context, filter string) (domain.SessionList, error)
	Rename(ctx context.Context, sessionID uint32, playerID uint32, name string) error
	SetRegion(ctx context.Context, sessionID uint32, region string) error
	Heartbeat(ctx context.Context, sessionID uint32, playerID uint32) (string, error)
	ReportPings(ctx context.Context, sessionID uint32, playerID uint32, samples []domain.PingSample) error
	Regions() []pops.Pop
	Check(ctx context.Context) error
}

// Options tunes the handler.
type Options struct {
	// LegacyStatus answers every failed operation with 200 and an empty body.
	LegacyStatus bool
}

type handler struct {
	svc          Service
	legacyStatus bool
}

// NewHandler builds the HTTP routes for svc.
func NewHandler(svc Service, opts Options) http.Handler {
	h := &handler{svc: svc, legacyStatus: opts.LegacyStatus}
	mux := http.NewServeMux()
	h.register(mux)
	return withCORS(mux)
}

// withCORS opens every route to any origin and answers preflights directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Headers", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		header.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
