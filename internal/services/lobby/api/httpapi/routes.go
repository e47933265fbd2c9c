package httpapi

import "net/http"

// Route paths served by the handler.
const (
	Root            = "/"
	Up              = "/up"
	Ready           = "/ready"
	Sessions        = "/sessions"
	SessionsJoin    = "/sessions/join"
	JoinBestSession = "/join_best_session"
	Regions         = "/regions"
	WebSocket       = "/ws"

	SessionJoinPattern     = "/sessions/{session_id}/join"
	SessionRegionPattern   = "/sessions/{session_id}/region"
	PlayerNamePattern      = "/sessions/{session_id}/players/{player_id}/name"
	PlayerHeartbeatPattern = "/sessions/{session_id}/players/{player_id}/heartbeat"
	PlayerPingsPattern     = "/sessions/{session_id}/players/{player_id}/pings"

	sessionIDPathValue = "session_id"
	playerIDPathValue  = "player_id"
)

func (h *handler) register(mux *http.ServeMux) {
	mux.HandleFunc(http.MethodGet+" "+Root+"{$}", h.handleRoot)
	mux.HandleFunc(http.MethodGet+" "+Up, h.handleUp)
	mux.HandleFunc(http.MethodGet+" "+Ready, h.handleReady)
	mux.HandleFunc(http.MethodGet+" "+Sessions, h.handleListSessions)
	mux.HandleFunc(http.MethodPost+" "+SessionsJoin, h.handleJoinBest)
	mux.HandleFunc(http.MethodGet+" "+JoinBestSession, h.handleLegacyJoinBest)
	mux.HandleFunc(http.MethodGet+" "+Regions, h.handleRegions)
	mux.HandleFunc(http.MethodPost+" "+SessionJoinPattern, h.handleJoinDirect)
	mux.HandleFunc(http.MethodPut+" "+SessionRegionPattern, h.handleSetRegion)
	mux.HandleFunc(http.MethodPut+" "+PlayerNamePattern, h.handleRename)
	mux.HandleFunc(http.MethodPost+" "+PlayerHeartbeatPattern, h.handleHeartbeat)
	mux.HandleFunc(http.MethodPut+" "+PlayerPingsPattern, h.handleReportPings)
	mux.Handle(http.MethodGet+" "+WebSocket, h.websocketHandler())
}
