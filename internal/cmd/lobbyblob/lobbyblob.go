// Package lobbyblob inspects the stored session blob and converts it between
// codecs.
package lobbyblob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/lobby/internal/platform/cmd"
	server "github.com/louisbranch/lobby/internal/services/lobby/app"
	"github.com/louisbranch/lobby/internal/services/lobby/codec"
)

// Config holds lobby-blob command configuration. Store settings share the
// service's environment.
type Config struct {
	Store         string        `env:"LOBBY_STORE"         envDefault:"memory"`
	StoreURL      string        `env:"LOBBY_STORE_URL"`
	DBPath        string        `env:"LOBBY_DB_PATH"       envDefault:"data/lobby.db"`
	Codec         string        `env:"LOBBY_CODEC"         envDefault:"json"`
	Compression   string        `env:"LOBBY_COMPRESS"      envDefault:"none"`
	StoreTimeout  time.Duration `env:"LOBBY_STORE_TIMEOUT" envDefault:"2s"`
	ToCodec       string
	ToCompression string
	Write         bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Store, "store", cfg.Store, "session store backend: sqlite or kvhttp")
	fs.StringVar(&cfg.StoreURL, "store-url", cfg.StoreURL, "key-value service URL for the kvhttp store")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite file for the sqlite store")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "current blob format: json or cbor")
	fs.StringVar(&cfg.Compression, "compress", cfg.Compression, "current blob compression: none or zstd")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "timeout of one store round-trip")
	fs.StringVar(&cfg.ToCodec, "to-codec", "", "re-encode into this format")
	fs.StringVar(&cfg.ToCompression, "to-compress", "", "re-encode with this compression")
	fs.BoolVar(&cfg.Write, "write", false, "store the re-encoded blob instead of printing it")
}

// Run reads the blob and prints it as indented JSON, or converts it.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output writer is required")
	}
	from, err := codec.New(cfg.Codec, cfg.Compression)
	if err != nil {
		return err
	}
	store, closeStore, err := server.OpenStore(server.StoreConfig{
		Kind:    cfg.Store,
		URL:     cfg.StoreURL,
		DBPath:  cfg.DBPath,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	snap, err := store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read session blob: %w", err)
	}
	list, err := from.Decode(snap.Data)
	if err != nil {
		return fmt.Errorf("decode session blob as %s: %w", from.Name(), err)
	}

	converting := strings.TrimSpace(cfg.ToCodec) != "" || strings.TrimSpace(cfg.ToCompression) != ""
	if !converting {
		data, err := codec.JSON().Encode(list)
		if err != nil {
			return err
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err != nil {
			return fmt.Errorf("format sessions: %w", err)
		}
		indented.WriteByte('\n')
		_, err = out.Write(indented.Bytes())
		return err
	}

	toCodec := cfg.ToCodec
	if strings.TrimSpace(toCodec) == "" {
		toCodec = cfg.Codec
	}
	toCompression := cfg.ToCompression
	if strings.TrimSpace(toCompression) == "" {
		toCompression = cfg.Compression
	}
	to, err := codec.New(toCodec, toCompression)
	if err != nil {
		return err
	}
	data, err := to.Encode(list)
	if err != nil {
		return fmt.Errorf("encode session blob as %s: %w", to.Name(), err)
	}
	if !cfg.Write {
		_, err = fmt.Fprintf(out, "%d sessions: %s %d bytes -> %s %d bytes (dry run)\n", len(list), from.Name(), len(snap.Data), to.Name(), len(data))
		return err
	}
	if _, err := store.Put(ctx, data, snap.Version); err != nil {
		return fmt.Errorf("write session blob: %w", err)
	}
	_, err = fmt.Fprintf(out, "%d sessions: %s %d bytes -> %s %d bytes\n", len(list), from.Name(), len(snap.Data), to.Name(), len(data))
	return err
}
