// Package codec converts a session list to and from the stored blob.
package codec

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/lobby/internal/services/lobby/domain"
)

// Format names.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Compression names.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Codec encodes and decodes the whole session collection.
type Codec interface {
	Name() string
	Encode(list domain.SessionList) ([]byte, error)
	Decode(data []byte) (domain.SessionList, error)
}

// New returns the codec for format, optionally wrapped in compression.
func New(format string, compression string) (Codec, error) {
	var base Codec
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		base = JSON()
	case FormatCBOR:
		base = CBOR()
	default:
		return nil, fmt.Errorf("unknown codec format %q", format)
	}
	switch strings.ToLower(strings.TrimSpace(compression)) {
	case "", CompressionNone:
		return base, nil
	case CompressionZstd:
		return Zstd(base)
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

// The wire shape keeps the legacy field names (id, name, index,
// num_players) so blobs written by older deployments still decode.
type wireSession struct {
	ID         uint32       `json:"id" cbor:"id"`
	Pop        string       `json:"pop,omitempty" cbor:"pop,omitempty"`
	NumPlayers int          `json:"num_players" cbor:"num_players"`
	Players    []wirePlayer `json:"players" cbor:"players"`
	CreatedAt  int64        `json:"created_at,omitempty" cbor:"created_at,omitempty"`
}

type wirePlayer struct {
	Name          string     `json:"name" cbor:"name"`
	ID            uint32     `json:"id" cbor:"id"`
	Index         int        `json:"index" cbor:"index"`
	LastHeartbeat int64      `json:"last_heartbeat,omitempty" cbor:"last_heartbeat,omitempty"`
	Pings         []wirePing `json:"pings,omitempty" cbor:"pings,omitempty"`
}

type wirePing struct {
	Region    string  `json:"region" cbor:"region"`
	LatencyMS float64 `json:"latency_ms" cbor:"latency_ms"`
}

func toWire(list domain.SessionList) []wireSession {
	out := make([]wireSession, 0, len(list))
	for _, s := range list {
		ws := wireSession{
			ID:         s.ID,
			Pop:        s.Pop,
			NumPlayers: len(s.Players),
			Players:    make([]wirePlayer, 0, len(s.Players)),
			CreatedAt:  toMillis(s.CreatedAt),
		}
		for _, p := range s.Players {
			wp := wirePlayer{
				Name:          p.Name,
				ID:            p.ID,
				Index:         p.Slot,
				LastHeartbeat: toMillis(p.LastHeartbeat),
			}
			for _, ping := range p.Pings {
				wp.Pings = append(wp.Pings, wirePing{Region: ping.Region, LatencyMS: ping.LatencyMS})
			}
			ws.Players = append(ws.Players, wp)
		}
		out = append(out, ws)
	}
	return out
}

func fromWire(sessions []wireSession) (domain.SessionList, error) {
	out := make(domain.SessionList, 0, len(sessions))
	for _, ws := range sessions {
		s := domain.Session{
			ID:        ws.ID,
			Pop:       ws.Pop,
			Players:   make([]domain.Player, 0, len(ws.Players)),
			CreatedAt: fromMillis(ws.CreatedAt),
		}
		for _, wp := range ws.Players {
			p := domain.Player{
				ID:            wp.ID,
				Name:          wp.Name,
				Slot:          wp.Index,
				LastHeartbeat: fromMillis(wp.LastHeartbeat),
			}
			for _, ping := range wp.Pings {
				p.Pings = append(p.Pings, domain.PingSample{Region: ping.Region, LatencyMS: ping.LatencyMS})
			}
			s.Players = append(s.Players, p)
		}
		out = append(out, s)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("decoded sessions: %w", err)
	}
	return out, nil
}

// Timestamps are stored as Unix milliseconds; zero means unset.
func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}
