package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
	"github.com/louisbranch/lobby/internal/services/lobby/codec"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	"github.com/louisbranch/lobby/internal/services/lobby/pops"
	"github.com/louisbranch/lobby/internal/services/lobby/registry"
	"github.com/louisbranch/lobby/internal/services/lobby/storage/memory"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(memory.New(), codec.JSON(), pops.Default(), registry.Config{})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(newTestRegistry(t), opts))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string, header map[string]string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func decodeBody[T any](t *testing.T, body string) T {
	t.Helper()
	var out T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return out
}

func TestRootAndUp(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := doRequest(t, srv, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK || body != welcomeText {
		t.Fatalf("GET / = %d %q", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
	resp, body = doRequest(t, srv, http.MethodGet, "/up", "", nil)
	if resp.StatusCode != http.StatusOK || body != "OK" {
		t.Fatalf("GET /up = %d %q", resp.StatusCode, body)
	}
	resp, _ = doRequest(t, srv, http.MethodGet, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /nope = %d, want 404", resp.StatusCode)
	}
}

func TestPreflight(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := doRequest(t, srv, http.MethodOptions, "/sessions/join", "", nil)
	if resp.StatusCode != http.StatusOK || body != "" {
		t.Fatalf("OPTIONS = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Headers") != "*" {
		t.Fatalf("allow headers = %q", resp.Header.Get("Access-Control-Allow-Headers"))
	}
}

func TestJoinBestAndList(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := doRequest(t, srv, http.MethodPost, "/sessions/join", `{"player_id":7,"name":"Alice","pop":"ams"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join = %d %s", resp.StatusCode, body)
	}
	got := decodeBody[assignmentView](t, body)
	if got != (assignmentView{SessionID: 1, Slot: 0, Region: "ams", Created: true}) {
		t.Fatalf("assignment = %+v", got)
	}
	_, body = doRequest(t, srv, http.MethodPost, "/sessions/join", `{"player_id":8,"name":"Bob"}`, nil)
	if got := decodeBody[assignmentView](t, body); got.SessionID != 1 || got.Slot != 1 {
		t.Fatalf("second join = %+v", got)
	}

	resp, body = doRequest(t, srv, http.MethodGet, "/sessions", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d %s", resp.StatusCode, body)
	}
	list := decodeBody[sessionsResponse](t, body)
	if len(list.Sessions) != 1 || list.Sessions[0].NumPlayers != 2 || list.Sessions[0].Players[1].Name != "Bob" {
		t.Fatalf("sessions = %+v", list)
	}

	_, body = doRequest(t, srv, http.MethodGet, "/sessions?format=text", "", nil)
	if body != "1,1,2,7,Alice,8,Bob" {
		t.Fatalf("text sessions = %q", body)
	}

	_, body = doRequest(t, srv, http.MethodGet, "/sessions?filter="+"pop%20%3D%20%22iad%22", "", nil)
	if list := decodeBody[sessionsResponse](t, body); len(list.Sessions) != 0 {
		t.Fatalf("filtered sessions = %+v, want none", list)
	}
	resp, body = doRequest(t, srv, http.MethodGet, "/sessions?filter=((", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad filter = %d %s", resp.StatusCode, body)
	}
}

func TestJoinBestMalformedBody(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := doRequest(t, srv, http.MethodPost, "/sessions/join", `{`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	env := decodeBody[errorEnvelope](t, body)
	if env.Error.Code != string(lobbyerrors.CodeMalformed) {
		t.Fatalf("code = %q, want MALFORMED", env.Error.Code)
	}
}

func TestLegacyJoinBestSession(t *testing.T) {
	srv := newTestServer(t, Options{})

	headers := map[string]string{"id": "42", "name": "doomguy", "pop": "lax"}
	resp, body := doRequest(t, srv, http.MethodGet, "/join_best_session", "", headers)
	if resp.StatusCode != http.StatusOK || body != "1" {
		t.Fatalf("legacy join = %d %q, want 200 \"1\"", resp.StatusCode, body)
	}
	_, body = doRequest(t, srv, http.MethodGet, "/join_best_session", "", headers)
	if body != "1" {
		t.Fatalf("legacy rejoin = %q, want \"1\"", body)
	}

	resp, _ = doRequest(t, srv, http.MethodGet, "/join_best_session", "", map[string]string{"id": "abc", "name": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", resp.StatusCode)
	}
}

func TestLegacyJoinBestSessionDefaultsBlankName(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, headers := range []map[string]string{
		{"id": "42"},
		{"id": "43", "name": "   "},
	} {
		resp, body := doRequest(t, srv, http.MethodGet, "/join_best_session", "", headers)
		if resp.StatusCode != http.StatusOK || body != "1" {
			t.Fatalf("legacy join %v = %d %q, want 200 \"1\"", headers, resp.StatusCode, body)
		}
	}
	_, body := doRequest(t, srv, http.MethodGet, "/sessions?format=text", "", nil)
	if body != "1,1,2,42,player-42,43,player-43" {
		t.Fatalf("sessions text = %q", body)
	}
}

func TestLegacyStatusSwallowsErrors(t *testing.T) {
	srv := newTestServer(t, Options{LegacyStatus: true})

	resp, body := doRequest(t, srv, http.MethodGet, "/join_best_session", "", map[string]string{"id": "abc"})
	if resp.StatusCode != http.StatusOK || body != "" {
		t.Fatalf("legacy bad id = %d %q, want 200 empty", resp.StatusCode, body)
	}
	resp, body = doRequest(t, srv, http.MethodPost, "/sessions/9/join", `{"player_id":1,"name":"x"}`, nil)
	if resp.StatusCode != http.StatusOK || body != "" {
		t.Fatalf("legacy missing session = %d %q, want 200 empty", resp.StatusCode, body)
	}
}

func TestJoinDirectStatuses(t *testing.T) {
	srv := newTestServer(t, Options{})

	for i := 1; i <= 4; i++ {
		body := `{"player_id":` + strconv.Itoa(i) + `,"name":"p"}`
		if resp, out := doRequest(t, srv, http.MethodPost, "/sessions/join", body, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("join %d = %d %s", i, resp.StatusCode, out)
		}
	}

	resp, body := doRequest(t, srv, http.MethodPost, "/sessions/1/join", `{"player_id":9,"name":"late"}`, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("full session = %d %s, want 409", resp.StatusCode, body)
	}
	resp, body = doRequest(t, srv, http.MethodPost, "/sessions/2/join", `{"player_id":9,"name":"late"}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session = %d %s, want 404", resp.StatusCode, body)
	}
	if env := decodeBody[errorEnvelope](t, body); env.Error.Metadata["session_id"] != "2" {
		t.Fatalf("metadata = %+v", env.Error.Metadata)
	}
	resp, _ = doRequest(t, srv, http.MethodPost, "/sessions/x/join", `{"player_id":9,"name":"late"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad session id = %d, want 400", resp.StatusCode)
	}
	resp, body = doRequest(t, srv, http.MethodPost, "/sessions/1/join", `{"player_id":2,"name":"p"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rejoin = %d %s", resp.StatusCode, body)
	}
	if got := decodeBody[assignmentView](t, body); got.Slot != 1 {
		t.Fatalf("rejoin slot = %d, want 1", got.Slot)
	}
}

func TestRenameAndRegion(t *testing.T) {
	srv := newTestServer(t, Options{})
	doRequest(t, srv, http.MethodPost, "/sessions/join", `{"player_id":7,"name":"Alice"}`, nil)

	resp, _ := doRequest(t, srv, http.MethodPut, "/sessions/1/players/7/name", `{"name":"Alicia"}`, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("rename = %d, want 204", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodPut, "/sessions/1/region", `{"region":"NRT"}`, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set region = %d, want 204", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodPut, "/sessions/1/region", `{"region":"mars"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown region = %d, want 400", resp.StatusCode)
	}

	_, body := doRequest(t, srv, http.MethodGet, "/sessions", "", nil)
	list := decodeBody[sessionsResponse](t, body)
	if list.Sessions[0].Pop != "nrt" || list.Sessions[0].Players[0].Name != "Alicia" {
		t.Fatalf("session = %+v", list.Sessions[0])
	}
}

func TestPingsAndHeartbeat(t *testing.T) {
	srv := newTestServer(t, Options{})
	doRequest(t, srv, http.MethodPost, "/sessions/join", `{"player_id":7,"name":"Alice","pop":"iad"}`, nil)

	resp, body := doRequest(t, srv, http.MethodPost, "/sessions/1/players/7/heartbeat", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("heartbeat without samples = %d %s", resp.StatusCode, body)
	}
	if got := decodeBody[heartbeatView](t, body); got != (heartbeatView{Region: "iad", Reselected: false}) {
		t.Fatalf("heartbeat = %+v", got)
	}

	resp, _ = doRequest(t, srv, http.MethodPut, "/sessions/1/players/7/pings", `{"samples":[{"region":"ams","latency_ms":30},{"region":"lhr","latency_ms":12}]}`, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("pings = %d, want 204", resp.StatusCode)
	}
	_, body = doRequest(t, srv, http.MethodPost, "/sessions/1/players/7/heartbeat", "", nil)
	if got := decodeBody[heartbeatView](t, body); got != (heartbeatView{Region: "lhr", Reselected: true}) {
		t.Fatalf("heartbeat = %+v", got)
	}

	resp, _ = doRequest(t, srv, http.MethodPut, "/sessions/1/players/7/pings", `{"samples":[{"region":"ams","latency_ms":-3}]}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative latency = %d, want 400", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodPost, "/sessions/1/players/99/heartbeat", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown player heartbeat = %d, want 404", resp.StatusCode)
	}
}

func TestRegions(t *testing.T) {
	srv := newTestServer(t, Options{})

	_, body := doRequest(t, srv, http.MethodGet, "/regions", "", nil)
	got := decodeBody[regionsResponse](t, body)
	if len(got.Regions) != len(pops.Default().List()) {
		t.Fatalf("regions = %d, want %d", len(got.Regions), len(pops.Default().List()))
	}
	for _, r := range got.Regions {
		if r.Code == "" || r.Endpoint == "" {
			t.Fatalf("incomplete region %+v", r)
		}
	}
}

// unavailableService fails every store-backed call.
type unavailableService struct {
	*registry.Registry
}

func (unavailableService) Check(context.Context) error {
	return lobbyerrors.Wrap(lobbyerrors.CodeStoreUnavailable, "session store unavailable", errors.New("kv offline"))
}

func (unavailableService) ListSessions(context.Context, string) (domain.SessionList, error) {
	return nil, errors.New("boom")
}

func TestReadyAndInternalErrors(t *testing.T) {
	srv := httptest.NewServer(NewHandler(unavailableService{Registry: newTestRegistry(t)}, Options{}))
	t.Cleanup(srv.Close)

	resp, body := doRequest(t, srv, http.MethodGet, "/ready", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d %s, want 503", resp.StatusCode, body)
	}
	resp, body = doRequest(t, srv, http.MethodGet, "/sessions", "", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("list = %d, want 500", resp.StatusCode)
	}
	if env := decodeBody[errorEnvelope](t, body); env.Error.Message != "internal error" {
		t.Fatalf("message = %q, want generic", env.Error.Message)
	}
	_, body = doRequest(t, srv, http.MethodGet, "/sessions?format=text", "", nil)
	if body != "0" {
		t.Fatalf("text list on failure = %q, want \"0\"", body)
	}

	ok := newTestServer(t, Options{})
	if resp, _ := doRequest(t, ok, http.MethodGet, "/ready", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("ready = %d, want 200", resp.StatusCode)
	}
}
