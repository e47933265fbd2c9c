package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
)

const maxRequestBodyBytes = 64 * 1024

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// writeError maps a domain error onto the response. In legacy mode the
// failure is swallowed into an empty 200.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := lobbyerrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("lobby http: %s %s: %v", r.Method, r.URL.Path, err)
	}
	if h.legacyStatus {
		w.WriteHeader(http.StatusOK)
		return
	}
	body := errorBody{Code: string(code), Message: lobbyerrors.MessageOf(err)}
	var domainErr *lobbyerrors.Error
	if errors.As(err, &domainErr) {
		body.Metadata = domainErr.Metadata
	}
	if code == lobbyerrors.CodeUnknown {
		body.Message = "internal error"
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

func malformed(format string, args ...any) error {
	return lobbyerrors.New(lobbyerrors.CodeMalformed, fmt.Sprintf(format, args...))
}

// decodeJSON reads a bounded JSON body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return lobbyerrors.Wrap(lobbyerrors.CodeMalformed, "invalid request body", err)
	}
	return nil
}

func parseID(raw string, field string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, malformed("%s is required", field)
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, malformed("%s must be an unsigned 32-bit integer", field)
	}
	return uint32(value), nil
}

func pathIDs(r *http.Request) (sessionID uint32, playerID uint32, err error) {
	sessionID, err = parseID(r.PathValue(sessionIDPathValue), sessionIDPathValue)
	if err != nil {
		return 0, 0, err
	}
	if r.PathValue(playerIDPathValue) == "" {
		return sessionID, 0, nil
	}
	playerID, err = parseID(r.PathValue(playerIDPathValue), playerIDPathValue)
	if err != nil {
		return 0, 0, err
	}
	return sessionID, playerID, nil
}
