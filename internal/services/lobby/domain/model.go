package domain

import (
	"sort"
	"time"
)

// MaxPlayers is the capacity of one session.
const MaxPlayers = 4

// PingSample is one client-measured round trip to a candidate region.
type PingSample struct {
	Region    string
	LatencyMS float64
}

// Player is one seat holder inside a session.
type Player struct {
	ID            uint32
	Name          string
	Slot          int
	LastHeartbeat time.Time
	Pings         []PingSample
}

// Session is a matchable group of up to MaxPlayers players sharing a region.
type Session struct {
	ID        uint32
	Pop       string
	Players   []Player
	CreatedAt time.Time
}

// SessionList is the whole stored collection in store order.
type SessionList []Session

// Clone returns a deep copy so callers can mutate without aliasing.
func (l SessionList) Clone() SessionList {
	if l == nil {
		return nil
	}
	out := make(SessionList, len(l))
	for i, s := range l {
		out[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	if s.Players != nil {
		out.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			out.Players[i] = p.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the player.
func (p Player) Clone() Player {
	out := p
	if p.Pings != nil {
		out.Pings = append([]PingSample(nil), p.Pings...)
	}
	return out
}

// Occupied is the number of taken slots.
func (s Session) Occupied() int {
	return len(s.Players)
}

// Full reports whether every slot is taken.
func (s Session) Full() bool {
	return len(s.Players) >= MaxPlayers
}

// PlayerIndex returns the position of playerID in s.Players, or -1.
func (s Session) PlayerIndex(playerID uint32) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Index returns the position of sessionID in the list, or -1.
func (l SessionList) Index(sessionID uint32) int {
	for i, s := range l {
		if s.ID == sessionID {
			return i
		}
	}
	return -1
}

// FindPlayer locates the first session holding playerID.
func (l SessionList) FindPlayer(playerID uint32) (sessionIdx int, playerIdx int, ok bool) {
	for si, s := range l {
		if pi := s.PlayerIndex(playerID); pi >= 0 {
			return si, pi, true
		}
	}
	return -1, -1, false
}

func (s *Session) sortPlayers() {
	sort.Slice(s.Players, func(i, j int) bool {
		return s.Players[i].Slot < s.Players[j].Slot
	})
}
