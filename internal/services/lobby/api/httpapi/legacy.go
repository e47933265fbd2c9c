package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/louisbranch/lobby/internal/services/lobby/domain"
)

// handleLegacyJoinBest serves game clients that pass identity in headers and
// expect the bare session id as the body.
func (h *handler) handleLegacyJoinBest(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseID(r.Header.Get("id"), "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	assignment, err := h.svc.JoinBest(r.Context(), playerID, legacyName(r.Header.Get("name"), playerID), r.Header.Get("pop"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, strconv.FormatUint(uint64(assignment.SessionID), 10))
}

// legacyName keeps old clients that send no usable name joinable.
func legacyName(name string, playerID uint32) string {
	if _, err := domain.NormalizeName(name); err != nil {
		return "player-" + strconv.FormatUint(uint64(playerID), 10)
	}
	return name
}

// legacySessionsText renders
// <count>,<session id>,<num players>,<player id>,<player name>,...
func legacySessionsText(list domain.SessionList) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(list)))
	for _, s := range list {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(uint64(s.ID), 10))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(s.Occupied()))
		for _, p := range s.Players {
			b.WriteByte(',')
			b.WriteString(strconv.FormatUint(uint64(p.ID), 10))
			b.WriteByte(',')
			b.WriteString(strings.ReplaceAll(p.Name, ",", " "))
		}
	}
	return b.String()
}
