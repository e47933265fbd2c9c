package domain

import (
	"fmt"
	"time"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
)

// ErrSlotsExhausted is returned when a session has no free slot.
var ErrSlotsExhausted = lobbyerrors.New(lobbyerrors.CodeSlotsExhausted, "session has no free slots")

// NextID returns one more than the highest session id, or 1 for an empty
// list. Ids of deleted sessions below the maximum are never handed out again.
func (l SessionList) NextID() uint32 {
	var highest uint32
	for _, s := range l {
		if s.ID > highest {
			highest = s.ID
		}
	}
	return highest + 1
}

// AllocateSlot returns the lowest unused slot in [0, MaxPlayers).
func (s Session) AllocateSlot() (int, error) {
	var taken [MaxPlayers]bool
	for _, p := range s.Players {
		if p.Slot >= 0 && p.Slot < MaxPlayers {
			taken[p.Slot] = true
		}
	}
	for slot, used := range taken {
		if !used {
			return slot, nil
		}
	}
	return 0, ErrSlotsExhausted
}

// Seat places a player in the session, or returns the existing slot when the
// player already holds one. The returned bool is true for a new seat.
func (s *Session) Seat(playerID uint32, name string, now time.Time) (int, bool, error) {
	if idx := s.PlayerIndex(playerID); idx >= 0 {
		return s.Players[idx].Slot, false, nil
	}
	if s.Full() {
		return 0, false, ErrSlotsExhausted
	}
	slot, err := s.AllocateSlot()
	if err != nil {
		return 0, false, err
	}
	s.Players = append(s.Players, Player{
		ID:            playerID,
		Name:          name,
		Slot:          slot,
		LastHeartbeat: now,
	})
	s.sortPlayers()
	return slot, true, nil
}

// NewSession appends a session holding a single player in slot 0.
func (l SessionList) NewSession(pop string, playerID uint32, name string, now time.Time) (SessionList, Session) {
	session := Session{
		ID:        l.NextID(),
		Pop:       pop,
		CreatedAt: now,
		Players: []Player{{
			ID:            playerID,
			Name:          name,
			Slot:          0,
			LastHeartbeat: now,
		}},
	}
	return append(l, session), session
}

// Validate checks the structural invariants of the collection.
func (l SessionList) Validate() error {
	seen := make(map[uint32]struct{}, len(l))
	for _, s := range l {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate session id %d", s.ID)
		}
		seen[s.ID] = struct{}{}
		if len(s.Players) > MaxPlayers {
			return fmt.Errorf("session %d holds %d players", s.ID, len(s.Players))
		}
		var slots [MaxPlayers]bool
		for _, p := range s.Players {
			if p.Slot < 0 || p.Slot >= MaxPlayers {
				return fmt.Errorf("session %d: player %d has slot %d out of range", s.ID, p.ID, p.Slot)
			}
			if slots[p.Slot] {
				return fmt.Errorf("session %d: slot %d assigned twice", s.ID, p.Slot)
			}
			slots[p.Slot] = true
		}
	}
	return nil
}
