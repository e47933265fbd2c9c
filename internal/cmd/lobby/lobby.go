// Package lobby parses lobby command flags and launches the service.
package lobby

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/lobby/internal/platform/cmd"
	server "github.com/louisbranch/lobby/internal/services/lobby/app"
)

// Config holds lobby command configuration.
type Config struct {
	HTTPAddr     string        `env:"LOBBY_HTTP_ADDR"     envDefault:":8080"`
	GRPCAddr     string        `env:"LOBBY_GRPC_ADDR"     envDefault:":8081"`
	Store        string        `env:"LOBBY_STORE"         envDefault:"memory"`
	StoreURL     string        `env:"LOBBY_STORE_URL"`
	DBPath       string        `env:"LOBBY_DB_PATH"       envDefault:"data/lobby.db"`
	Codec        string        `env:"LOBBY_CODEC"         envDefault:"json"`
	Compression  string        `env:"LOBBY_COMPRESS"      envDefault:"none"`
	PlayerTTL    time.Duration `env:"LOBBY_PLAYER_TTL"    envDefault:"60s"`
	StoreTimeout time.Duration `env:"LOBBY_STORE_TIMEOUT" envDefault:"2s"`
	MaxAttempts  int           `env:"LOBBY_MAX_ATTEMPTS"  envDefault:"3"`
	PopsFile     string        `env:"LOBBY_POPS_FILE"`
	LegacyStatus bool          `env:"LOBBY_LEGACY_STATUS" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	if cfg.PlayerTTL <= 0 {
		return Config{}, fmt.Errorf("player ttl must be positive, got %s", cfg.PlayerTTL)
	}
	if cfg.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "lobby HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "lobby gRPC health listen address")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "session store backend: memory, sqlite or kvhttp")
	fs.StringVar(&cfg.StoreURL, "store-url", cfg.StoreURL, "key-value service URL for the kvhttp store")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite file for the sqlite store")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "session blob format: json or cbor")
	fs.StringVar(&cfg.Compression, "compress", cfg.Compression, "session blob compression: none or zstd")
	fs.DurationVar(&cfg.PlayerTTL, "player-ttl", cfg.PlayerTTL, "idle time before a player is pruned")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "timeout of one store round-trip")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "read-modify-write attempts on version conflicts")
	fs.StringVar(&cfg.PopsFile, "pops-file", cfg.PopsFile, "pop catalog file (.yaml, .yml, .json, .jsonc)")
	fs.BoolVar(&cfg.LegacyStatus, "legacy-status", cfg.LegacyStatus, "answer failed operations with 200 and an empty body")
}

// Run starts the lobby service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.Run(ctx, entrypoint.ServiceLobby, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:     cfg.HTTPAddr,
			GRPCAddr:     cfg.GRPCAddr,
			Store:        cfg.Store,
			StoreURL:     cfg.StoreURL,
			DBPath:       cfg.DBPath,
			Codec:        cfg.Codec,
			Compression:  cfg.Compression,
			PopsFile:     cfg.PopsFile,
			PlayerTTL:    cfg.PlayerTTL,
			StoreTimeout: cfg.StoreTimeout,
			MaxAttempts:  cfg.MaxAttempts,
			LegacyStatus: cfg.LegacyStatus,
		}); err != nil {
			return fmt.Errorf("serve lobby: %w", err)
		}
		return nil
	})
}
