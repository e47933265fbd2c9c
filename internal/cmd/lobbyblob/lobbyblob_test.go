package lobbyblob

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/lobby/internal/services/lobby/codec"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	lobbysqlite "github.com/louisbranch/lobby/internal/services/lobby/storage/sqlite"
)

func seedSQLite(t *testing.T, c codec.Codec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lobby.db")
	store, err := lobbysqlite.Open(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	data, err := c.Encode(domain.SessionList{{
		ID:  1,
		Pop: "iad",
		Players: []domain.Player{
			{ID: 10, Name: "ranger", Slot: 0, LastHeartbeat: now},
		},
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := store.Put(context.Background(), data, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return path
}

func TestParseConfigReadsFlags(t *testing.T) {
	t.Setenv("LOBBY_STORE", "sqlite")
	fs := flag.NewFlagSet("lobby-blob", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-to-codec", "cbor", "-write"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.ToCodec != "cbor" || !cfg.Write {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Codec != "json" {
		t.Fatalf("codec = %q, want json default", cfg.Codec)
	}
}

func TestRunDumpsSessionsAsJSON(t *testing.T) {
	path := seedSQLite(t, codec.JSON())

	var out bytes.Buffer
	err := Run(context.Background(), Config{Store: "sqlite", DBPath: path, Codec: "json"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `"name": "ranger"`) {
		t.Fatalf("dump missing player:\n%s", out.String())
	}
}

func TestRunDryRunLeavesBlobUntouched(t *testing.T) {
	path := seedSQLite(t, codec.JSON())

	var out bytes.Buffer
	err := Run(context.Background(), Config{Store: "sqlite", DBPath: path, Codec: "json", ToCodec: "cbor"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "dry run") {
		t.Fatalf("expected dry run report, got %q", out.String())
	}

	out.Reset()
	if err := Run(context.Background(), Config{Store: "sqlite", DBPath: path, Codec: "json"}, &out); err != nil {
		t.Fatalf("blob no longer decodes as json: %v", err)
	}
}

func TestRunConvertsBlob(t *testing.T) {
	path := seedSQLite(t, codec.JSON())

	var out bytes.Buffer
	err := Run(context.Background(), Config{
		Store:         "sqlite",
		DBPath:        path,
		Codec:         "json",
		ToCodec:       "cbor",
		ToCompression: "zstd",
		Write:         true,
	}, &out)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.HasPrefix(out.String(), "1 sessions:") {
		t.Fatalf("unexpected report %q", out.String())
	}

	out.Reset()
	err = Run(context.Background(), Config{Store: "sqlite", DBPath: path, Codec: "cbor", Compression: "zstd"}, &out)
	if err != nil {
		t.Fatalf("read converted blob: %v", err)
	}
	if !strings.Contains(out.String(), `"name": "ranger"`) {
		t.Fatalf("converted dump missing player:\n%s", out.String())
	}
}

func TestRunRejectsWrongSourceCodec(t *testing.T) {
	path := seedSQLite(t, codec.CBOR())

	var out bytes.Buffer
	err := Run(context.Background(), Config{Store: "sqlite", DBPath: path, Codec: "json"}, &out)
	if err == nil {
		t.Fatal("expected decode error for cbor blob read as json")
	}
}

func TestRunRequiresWriter(t *testing.T) {
	if err := Run(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected missing writer error")
	}
}
