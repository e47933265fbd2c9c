package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	"github.com/louisbranch/lobby/internal/services/lobby/registry"
)

const welcomeText = "Welcome to the lobby session service"

type sessionView struct {
	ID         uint32       `json:"id"`
	Pop        string       `json:"pop"`
	NumPlayers int          `json:"num_players"`
	Players    []playerView `json:"players"`
	CreatedAt  string       `json:"created_at,omitempty"`
}

type playerView struct {
	ID            uint32     `json:"id"`
	Name          string     `json:"name"`
	Index         int        `json:"index"`
	LastHeartbeat string     `json:"last_heartbeat,omitempty"`
	Pings         []pingView `json:"pings,omitempty"`
}

type pingView struct {
	Region    string  `json:"region"`
	LatencyMS float64 `json:"latency_ms"`
}

type sessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

type assignmentView struct {
	SessionID uint32 `json:"session_id"`
	Slot      int    `json:"slot"`
	Region    string `json:"region"`
	Created   bool   `json:"created"`
}

type heartbeatView struct {
	Region     string `json:"region"`
	Reselected bool   `json:"reselected"`
}

type regionsResponse struct {
	Regions []regionView `json:"regions"`
}

type regionView struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Endpoint string `json:"endpoint"`
}

type joinBestRequest struct {
	PlayerID uint32 `json:"player_id"`
	Name     string `json:"name"`
	Pop      string `json:"pop"`
}

type joinDirectRequest struct {
	PlayerID uint32 `json:"player_id"`
	Name     string `json:"name"`
}

type regionRequest struct {
	Region string `json:"region"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type pingsRequest struct {
	Samples []pingView `json:"samples"`
}

func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, welcomeText)
}

func (h *handler) handleUp(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Check(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (h *handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sessions, err := h.svc.ListSessions(r.Context(), query.Get("filter"))
	if err != nil {
		if query.Get("format") == "text" {
			// The text client treats any failure as an empty list.
			writeText(w, http.StatusOK, "0")
			return
		}
		h.writeError(w, r, err)
		return
	}
	if query.Get("format") == "text" {
		writeText(w, http.StatusOK, legacySessionsText(sessions))
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessionViews(sessions)})
}

func (h *handler) handleJoinBest(w http.ResponseWriter, r *http.Request) {
	var req joinBestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	assignment, err := h.svc.JoinBest(r.Context(), req.PlayerID, req.Name, req.Pop)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentViewOf(assignment))
}

func (h *handler) handleJoinDirect(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := pathIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req joinDirectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	assignment, err := h.svc.JoinDirect(r.Context(), sessionID, req.PlayerID, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentViewOf(assignment))
}

func (h *handler) handleSetRegion(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := pathIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req regionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.SetRegion(r.Context(), sessionID, req.Region); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleRename(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := pathIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Rename(r.Context(), sessionID, playerID, req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := pathIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	region, err := h.svc.Heartbeat(r.Context(), sessionID, playerID)
	view := heartbeatView{Region: region, Reselected: err == nil}
	if err != nil && !errors.Is(err, domain.ErrNoSamples) {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) handleReportPings(w http.ResponseWriter, r *http.Request) {
	sessionID, playerID, err := pathIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req pingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.ReportPings(r.Context(), sessionID, playerID, samplesOf(req.Samples)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleRegions(w http.ResponseWriter, r *http.Request) {
	list := h.svc.Regions()
	views := make([]regionView, 0, len(list))
	for _, p := range list {
		views = append(views, regionView{Code: p.Code, Name: p.Name, Endpoint: p.Endpoint})
	}
	writeJSON(w, http.StatusOK, regionsResponse{Regions: views})
}

func assignmentViewOf(a registry.Assignment) assignmentView {
	return assignmentView{SessionID: a.SessionID, Slot: a.Slot, Region: a.Region, Created: a.Created}
}

func samplesOf(views []pingView) []domain.PingSample {
	samples := make([]domain.PingSample, 0, len(views))
	for _, v := range views {
		samples = append(samples, domain.PingSample{Region: v.Region, LatencyMS: v.LatencyMS})
	}
	return samples
}

func sessionViews(list domain.SessionList) []sessionView {
	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		view := sessionView{
			ID:         s.ID,
			Pop:        s.Pop,
			NumPlayers: s.Occupied(),
			Players:    make([]playerView, 0, len(s.Players)),
			CreatedAt:  formatTime(s.CreatedAt),
		}
		for _, p := range s.Players {
			pv := playerView{
				ID:            p.ID,
				Name:          p.Name,
				Index:         p.Slot,
				LastHeartbeat: formatTime(p.LastHeartbeat),
			}
			for _, sample := range p.Pings {
				pv.Pings = append(pv.Pings, pingView{Region: sample.Region, LatencyMS: sample.LatencyMS})
			}
			view.Players = append(view.Players, pv)
		}
		out = append(out, view)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
