package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 20
	maxDecodeErrorsPerConn = 3

	// maxMessageBytes bounds a whole frame: payload plus envelope.
	maxMessageBytes = maxFramePayloadBytes + 1024
)

// Frame types of the presence channel.
const (
	frameJoin      = "lobby.join"
	frameJoined    = "lobby.joined"
	frameHeartbeat = "lobby.heartbeat"
	frameRegion    = "lobby.region"
	framePings     = "lobby.pings"
	frameAck       = "lobby.ack"
	frameError     = "lobby.error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status string `json:"status"`
}

type presencePayload struct {
	SessionID uint32     `json:"session_id"`
	PlayerID  uint32     `json:"player_id"`
	Samples   []pingView `json:"samples,omitempty"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func (h *handler) websocketHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		h.handleWSConn(conn)
	})
}

func (h *handler) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}
	conn.MaxPayloadBytes = maxMessageBytes
	peer := newWSPeer(json.NewEncoder(conn))

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		frame, err := receiveFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", string(lobbyerrors.CodeMalformed), "invalid frame payload", false)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, string(lobbyerrors.CodeMalformed), "payload too large", false)
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RATE_LIMITED", "rate limit exceeded", true)
			return
		}

		switch frame.Type {
		case frameJoin:
			h.handleJoinFrame(ctx, peer, frame)
		case frameHeartbeat:
			h.handleHeartbeatFrame(ctx, peer, frame)
		case framePings:
			h.handlePingsFrame(ctx, peer, frame)
		default:
			_ = writeWSError(peer, frame.RequestID, string(lobbyerrors.CodeMalformed), "unsupported frame type", false)
		}
	}
}

// receiveFrame reads exactly one websocket message so a bad message never
// affects the ones after it.
func receiveFrame(conn *websocket.Conn) (wsFrame, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		if errors.Is(err, websocket.ErrFrameTooLarge) {
			return wsFrame{}, err
		}
		// Any other receive error means the connection is gone.
		return wsFrame{}, io.EOF
	}
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return wsFrame{}, err
	}
	return frame, nil
}

func (h *handler) handleJoinFrame(ctx context.Context, peer *wsPeer, frame wsFrame) {
	var payload joinBestRequest
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, string(lobbyerrors.CodeMalformed), "invalid join payload", false)
		return
	}
	assignment, err := h.svc.JoinBest(ctx, payload.PlayerID, payload.Name, payload.Pop)
	if err != nil {
		writeWSDomainError(peer, frame.RequestID, err)
		return
	}
	_ = peer.writeFrame(wsFrame{
		Type:      frameJoined,
		RequestID: frame.RequestID,
		Payload:   mustJSON(assignmentViewOf(assignment)),
	})
}

func (h *handler) handleHeartbeatFrame(ctx context.Context, peer *wsPeer, frame wsFrame) {
	var payload presencePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, string(lobbyerrors.CodeMalformed), "invalid heartbeat payload", false)
		return
	}
	region, err := h.svc.Heartbeat(ctx, payload.SessionID, payload.PlayerID)
	if err != nil && !errors.Is(err, domain.ErrNoSamples) {
		writeWSDomainError(peer, frame.RequestID, err)
		return
	}
	_ = peer.writeFrame(wsFrame{
		Type:      frameRegion,
		RequestID: frame.RequestID,
		Payload:   mustJSON(heartbeatView{Region: region, Reselected: err == nil}),
	})
}

func (h *handler) handlePingsFrame(ctx context.Context, peer *wsPeer, frame wsFrame) {
	var payload presencePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, string(lobbyerrors.CodeMalformed), "invalid pings payload", false)
		return
	}
	if err := h.svc.ReportPings(ctx, payload.SessionID, payload.PlayerID, samplesOf(payload.Samples)); err != nil {
		writeWSDomainError(peer, frame.RequestID, err)
		return
	}
	_ = peer.writeFrame(wsFrame{
		Type:      frameAck,
		RequestID: frame.RequestID,
		Payload:   mustJSON(ackEnvelope{Result: ackResult{Status: "ok"}}),
	})
}

func writeWSDomainError(peer *wsPeer, requestID string, err error) {
	code := lobbyerrors.CodeOf(err)
	message := lobbyerrors.MessageOf(err)
	if code == lobbyerrors.CodeUnknown {
		log.Printf("lobby ws: %v", err)
		message = "internal error"
	}
	_ = writeWSError(peer, requestID, string(code), message, code == lobbyerrors.CodeStoreUnavailable)
}

func writeWSError(peer *wsPeer, requestID string, code string, message string, retryable bool) error {
	return peer.writeFrame(wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      code,
				Message:   message,
				Retryable: retryable,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
