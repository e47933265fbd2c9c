package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

func sessionWithSlots(id uint32, slots ...int) Session {
	s := Session{ID: id, Pop: "iad"}
	for _, slot := range slots {
		s.Players = append(s.Players, Player{
			ID:            id*10 + uint32(slot),
			Name:          "p",
			Slot:          slot,
			LastHeartbeat: testNow,
		})
	}
	return s
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name string
		list SessionList
		want uint32
	}{
		{name: "empty", list: nil, want: 1},
		{name: "single", list: SessionList{{ID: 1}}, want: 2},
		{name: "gap keeps max", list: SessionList{{ID: 7}, {ID: 3}}, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.list.NextID(); got != tt.want {
				t.Fatalf("NextID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllocateSlotReturnsLowestFree(t *testing.T) {
	tests := []struct {
		name  string
		slots []int
		want  int
	}{
		{name: "empty", slots: nil, want: 0},
		{name: "gap at one", slots: []int{0, 2}, want: 1},
		{name: "three taken", slots: []int{0, 1, 2}, want: 3},
		{name: "gap at zero", slots: []int{3, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sessionWithSlots(1, tt.slots...).AllocateSlot()
			if err != nil {
				t.Fatalf("allocate slot: %v", err)
			}
			if got != tt.want {
				t.Fatalf("AllocateSlot() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllocateSlotFailsWhenFull(t *testing.T) {
	_, err := sessionWithSlots(1, 0, 1, 2, 3).AllocateSlot()
	if !errors.Is(err, ErrSlotsExhausted) {
		t.Fatalf("AllocateSlot() error = %v, want %v", err, ErrSlotsExhausted)
	}
}

func TestSeatIsIdempotentForExistingPlayer(t *testing.T) {
	s := sessionWithSlots(1, 0, 2)
	existing := s.Players[1]

	slot, created, err := s.Seat(existing.ID, "renamed", testNow.Add(time.Second))
	if err != nil {
		t.Fatalf("seat: %v", err)
	}
	if created {
		t.Fatal("expected existing seat to be reused")
	}
	if slot != existing.Slot {
		t.Fatalf("slot = %d, want %d", slot, existing.Slot)
	}
	if len(s.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(s.Players))
	}
	if s.Players[1].Name != existing.Name {
		t.Fatalf("name changed to %q", s.Players[1].Name)
	}
}

func TestSeatFillsGapAndKeepsSlotOrder(t *testing.T) {
	s := sessionWithSlots(1, 0, 2)

	slot, created, err := s.Seat(99, "new", testNow)
	if err != nil {
		t.Fatalf("seat: %v", err)
	}
	if !created || slot != 1 {
		t.Fatalf("seat = (%d, %v), want (1, true)", slot, created)
	}
	for i, p := range s.Players {
		if p.Slot != i {
			t.Fatalf("player %d has slot %d, want sorted slots", i, p.Slot)
		}
	}
	if err := (SessionList{s}).Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSeatRejectsFullSession(t *testing.T) {
	s := sessionWithSlots(1, 0, 1, 2, 3)
	if _, _, err := s.Seat(99, "late", testNow); !errors.Is(err, ErrSlotsExhausted) {
		t.Fatalf("seat error = %v, want %v", err, ErrSlotsExhausted)
	}
	if len(s.Players) != MaxPlayers {
		t.Fatalf("players = %d, want %d", len(s.Players), MaxPlayers)
	}
}

func TestNewSessionPlacesPlayerInSlotZero(t *testing.T) {
	list := SessionList{{ID: 4, Players: []Player{{ID: 1}}}}

	list, created := list.NewSession("ams", 42, "zoe", testNow)
	if created.ID != 5 {
		t.Fatalf("session id = %d, want 5", created.ID)
	}
	if len(created.Players) != 1 || created.Players[0].Slot != 0 || created.Players[0].ID != 42 {
		t.Fatalf("unexpected players %+v", created.Players)
	}
	if !created.Players[0].LastHeartbeat.Equal(testNow) {
		t.Fatalf("heartbeat = %v, want %v", created.Players[0].LastHeartbeat, testNow)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d, want 2", len(list))
	}
}

func TestValidateRejectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name string
		list SessionList
	}{
		{name: "duplicate session", list: SessionList{{ID: 1}, {ID: 1}}},
		{name: "slot out of range", list: SessionList{{ID: 1, Players: []Player{{ID: 1, Slot: 4}}}}},
		{name: "duplicate slot", list: SessionList{{ID: 1, Players: []Player{{ID: 1, Slot: 0}, {ID: 2, Slot: 0}}}}},
		{name: "too many players", list: SessionList{{ID: 1, Players: make([]Player, 5)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.list.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
