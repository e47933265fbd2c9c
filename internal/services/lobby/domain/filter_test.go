package domain

import (
	"testing"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
)

func TestParseFilter(t *testing.T) {
	list := SessionList{
		{ID: 1, Pop: "iad", Players: []Player{{Slot: 0}}},
		{ID: 2, Pop: "ams", Players: []Player{{Slot: 0}, {Slot: 1}}},
		{ID: 3, Pop: "ams", Players: []Player{{Slot: 0}, {Slot: 1}, {Slot: 2}, {Slot: 3}}},
	}
	tests := []struct {
		filter string
		want   []uint32
	}{
		{filter: "", want: []uint32{1, 2, 3}},
		{filter: `pop = "ams"`, want: []uint32{2, 3}},
		{filter: `pop != "ams"`, want: []uint32{1}},
		{filter: "player_count < 4", want: []uint32{1, 2}},
		{filter: `id > 1 AND pop = "ams"`, want: []uint32{2, 3}},
		{filter: `id = 1 OR player_count >= 4`, want: []uint32{1, 3}},
		{filter: `NOT pop = "iad"`, want: []uint32{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			pred, err := ParseFilter(tt.filter)
			if err != nil {
				t.Fatalf("parse filter: %v", err)
			}
			got := list.Filter(pred)
			if len(got) != len(tt.want) {
				t.Fatalf("matched %d sessions, want %v", len(got), tt.want)
			}
			for i, s := range got {
				if s.ID != tt.want[i] {
					t.Fatalf("match %d = %d, want %d", i, s.ID, tt.want[i])
				}
			}
		})
	}
}

func TestParseFilterRejectsUnknownFields(t *testing.T) {
	for _, filter := range []string{`region = "x"`, `pop < "b"`, "(("} {
		if _, err := ParseFilter(filter); lobbyerrors.CodeOf(err) != lobbyerrors.CodeMalformed {
			t.Fatalf("ParseFilter(%q) error = %v, want MALFORMED", filter, err)
		}
	}
}
