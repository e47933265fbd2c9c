// Package server wires the lobby runtime: session store, registry, HTTP API
// and the gRPC health service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/lobby/internal/platform/timeouts"
	"github.com/louisbranch/lobby/internal/services/lobby/api/httpapi"
	"github.com/louisbranch/lobby/internal/services/lobby/codec"
	"github.com/louisbranch/lobby/internal/services/lobby/pops"
	"github.com/louisbranch/lobby/internal/services/lobby/registry"
	"github.com/louisbranch/lobby/internal/services/lobby/storage"
	"github.com/louisbranch/lobby/internal/services/lobby/storage/kvhttp"
	"github.com/louisbranch/lobby/internal/services/lobby/storage/memory"
	lobbysqlite "github.com/louisbranch/lobby/internal/services/lobby/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Store backend names.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreKVHTTP = "kvhttp"
)

// healthServiceName is the gRPC health entry tracking store reachability.
const healthServiceName = "lobby"

const defaultHealthInterval = 15 * time.Second

// Config defines the inputs of the lobby process.
type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	Store             string
	StoreURL          string
	DBPath            string
	Codec             string
	Compression       string
	PopsFile          string
	PlayerTTL         time.Duration
	StoreTimeout      time.Duration
	MaxAttempts       int
	LegacyStatus      bool
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	HealthInterval    time.Duration
}

// Server hosts the lobby HTTP API and gRPC health service.
type Server struct {
	httpListener    net.Listener
	grpcListener    net.Listener
	httpServer      *http.Server
	grpcServer      *grpc.Server
	health          *health.Server
	registry        *registry.Registry
	closeStore      func() error
	shutdownTimeout time.Duration
	healthInterval  time.Duration
}

// New opens the store, builds the registry and binds both listeners.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		return nil, errors.New("grpc address is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = timeouts.StoreRequest
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}

	sessionCodec, err := codec.New(cfg.Codec, cfg.Compression)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg.PopsFile)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := OpenStore(StoreConfig{
		Kind:    cfg.Store,
		URL:     cfg.StoreURL,
		DBPath:  cfg.DBPath,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(store, sessionCodec, catalog, registry.Config{
		PlayerTTL:    cfg.PlayerTTL,
		StoreTimeout: cfg.StoreTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = closeStore()
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	httpServer := &http.Server{
		Handler:           httpapi.NewHandler(reg, httpapi.Options{LegacyStatus: cfg.LegacyStatus}),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return &Server{
		httpListener:    httpListener,
		grpcListener:    grpcListener,
		httpServer:      httpServer,
		grpcServer:      grpcServer,
		health:          healthServer,
		registry:        reg,
		closeStore:      closeStore,
		shutdownTimeout: cfg.ShutdownTimeout,
		healthInterval:  cfg.HealthInterval,
	}, nil
}

// Run creates and serves a lobby server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return fmt.Errorf("init lobby server: %w", err)
	}
	return server.Serve(ctx)
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Serve runs both servers until ctx ends or either fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("lobby http listening at %v", s.httpListener.Addr())
	log.Printf("lobby grpc listening at %v", s.grpcListener.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.httpServer.Serve(s.httpListener)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	g.Go(func() error {
		err := s.grpcServer.Serve(s.grpcListener)
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	})
	g.Go(func() error {
		s.watchStore(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.grpcServer.GracefulStop()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// watchStore mirrors store reachability into the gRPC health status.
func (s *Server) watchStore(ctx context.Context) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := s.registry.Check(ctx)
		if ctx.Err() != nil {
			return
		}
		if (err == nil) == serving {
			continue
		}
		serving = err == nil
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if !serving {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			log.Printf("lobby store unreachable: %v", err)
		} else {
			log.Printf("lobby store reachable again")
		}
		s.health.SetServingStatus(healthServiceName, status)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			log.Printf("close lobby store: %v", err)
		}
		s.closeStore = nil
	}
}

func loadCatalog(path string) (*pops.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return pops.Default(), nil
	}
	return pops.Load(path)
}

// StoreConfig selects and locates a session store backend.
type StoreConfig struct {
	Kind    string
	URL     string
	DBPath  string
	Timeout time.Duration
}

// OpenStore opens the configured backend. The returned func releases it.
func OpenStore(cfg StoreConfig) (storage.BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", StoreMemory:
		return memory.New(), noop, nil
	case StoreKVHTTP:
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = timeouts.StoreRequest
		}
		store, err := kvhttp.New(cfg.URL, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, nil, fmt.Errorf("open kv store: %w", err)
		}
		return store, noop, nil
	case StoreSQLite:
		path := cfg.DBPath
		if strings.TrimSpace(path) == "" {
			path = filepath.Join("data", "lobby.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := lobbysqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open lobby sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Kind)
	}
}
