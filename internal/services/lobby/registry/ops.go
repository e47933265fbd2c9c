package registry

import (
	"context"
	"errors"
	"strconv"
	"time"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
	"github.com/louisbranch/lobby/internal/services/lobby/pops"
)

// Assignment is where a join placed a player.
type Assignment struct {
	SessionID uint32
	Slot      int
	Region    string
	// Created is true when the join opened a new session.
	Created bool
}

// JoinBest seats the player in the fullest joinable session, or opens a new
// one in the hinted region. A player already seated anywhere gets the same
// assignment back.
func (r *Registry) JoinBest(ctx context.Context, playerID uint32, name string, popHint string) (Assignment, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return Assignment{}, err
	}
	pop := r.resolvePop(popHint)

	var out Assignment
	err = r.cycle(ctx, "join_best", nil, func(list domain.SessionList, now time.Time) (domain.SessionList, error) {
		if si, pi, ok := list.FindPlayer(playerID); ok {
			out = Assignment{SessionID: list[si].ID, Slot: list[si].Players[pi].Slot, Region: list[si].Pop}
			return list, nil
		}
		if idx := list.BestSession(); idx >= 0 {
			slot, _, err := list[idx].Seat(playerID, name, now)
			if err != nil {
				return list, err
			}
			out = Assignment{SessionID: list[idx].ID, Slot: slot, Region: list[idx].Pop}
			return list, nil
		}
		list, session := list.NewSession(pop, playerID, name, now)
		out = Assignment{SessionID: session.ID, Slot: 0, Region: session.Pop, Created: true}
		return list, nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return out, nil
}

// JoinDirect seats the player in a specific session.
func (r *Registry) JoinDirect(ctx context.Context, sessionID uint32, playerID uint32, name string) (Assignment, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return Assignment{}, err
	}

	var out Assignment
	err = r.cycle(ctx, "join_direct", nil, func(list domain.SessionList, now time.Time) (domain.SessionList, error) {
		si := list.Index(sessionID)
		if si < 0 {
			return list, sessionNotFound(sessionID)
		}
		slot, _, err := list[si].Seat(playerID, name, now)
		if err != nil {
			return list, err
		}
		out = Assignment{SessionID: sessionID, Slot: slot, Region: list[si].Pop}
		return list, nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return out, nil
}

// ListSessions returns the live sessions matching filter.
func (r *Registry) ListSessions(ctx context.Context, filter string) (domain.SessionList, error) {
	pred, err := domain.ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	var out domain.SessionList
	err = r.cycle(ctx, "list_sessions", nil, func(list domain.SessionList, _ time.Time) (domain.SessionList, error) {
		out = list.Filter(pred).Clone()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rename changes a player's display name. Unknown targets are ignored.
func (r *Registry) Rename(ctx context.Context, sessionID uint32, playerID uint32, name string) error {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return err
	}
	return r.cycle(ctx, "rename", nil, func(list domain.SessionList, _ time.Time) (domain.SessionList, error) {
		list.Rename(sessionID, playerID, name)
		return list, nil
	})
}

// SetRegion overrides a session's region. Unknown sessions are ignored.
func (r *Registry) SetRegion(ctx context.Context, sessionID uint32, region string) error {
	region = domain.NormalizeRegion(region)
	if region == "" {
		return lobbyerrors.New(lobbyerrors.CodeMalformed, "region is required")
	}
	if r.catalog.Len() > 0 && !r.catalog.Has(region) {
		return lobbyerrors.WithMetadata(lobbyerrors.CodeMalformed, "unknown region", map[string]string{"region": region})
	}
	return r.cycle(ctx, "set_region", nil, func(list domain.SessionList, _ time.Time) (domain.SessionList, error) {
		list.SetPop(sessionID, region)
		return list, nil
	})
}

// Heartbeat refreshes the player's liveness and reselects the session's
// region from the reported pings. Without any samples the current region is
// returned together with domain.ErrNoSamples; the refresh is still stored.
func (r *Registry) Heartbeat(ctx context.Context, sessionID uint32, playerID uint32) (string, error) {
	var region string
	refresh := &domain.Refresh{SessionID: sessionID, PlayerID: playerID}
	err := r.cycle(ctx, "heartbeat", refresh, func(list domain.SessionList, _ time.Time) (domain.SessionList, error) {
		si := list.Index(sessionID)
		if si < 0 {
			return list, sessionNotFound(sessionID)
		}
		if list[si].PlayerIndex(playerID) < 0 {
			return list, lobbyerrors.WithMetadata(lobbyerrors.CodeNotFound, "player not found", map[string]string{
				"session_id": strconv.FormatUint(uint64(sessionID), 10),
				"player_id":  strconv.FormatUint(uint64(playerID), 10),
			})
		}
		selected, err := domain.SelectRegion(r.catalogPings(list[si].Players))
		if err != nil {
			region = list[si].Pop
			return list, err
		}
		list[si].Pop = selected
		region = selected
		return list, nil
	})
	if err != nil && !errors.Is(err, domain.ErrNoSamples) {
		return "", err
	}
	return region, err
}

// ReportPings replaces the player's latency samples. Unknown targets are
// ignored.
func (r *Registry) ReportPings(ctx context.Context, sessionID uint32, playerID uint32, samples []domain.PingSample) error {
	samples, err := domain.ValidateSamples(samples)
	if err != nil {
		return err
	}
	return r.cycle(ctx, "report_pings", nil, func(list domain.SessionList, _ time.Time) (domain.SessionList, error) {
		list.ReplacePings(sessionID, playerID, samples)
		return list, nil
	})
}

// Regions returns the pop catalog.
func (r *Registry) Regions() []pops.Pop {
	return r.catalog.List()
}

// catalogPings drops samples for regions outside a non-empty catalog so a
// heartbeat only ever moves a session to a listed pop.
func (r *Registry) catalogPings(players []domain.Player) []domain.Player {
	if r.catalog.Len() == 0 {
		return players
	}
	out := make([]domain.Player, len(players))
	for i, p := range players {
		var known []domain.PingSample
		for _, sample := range p.Pings {
			if r.catalog.Has(sample.Region) {
				known = append(known, sample)
			}
		}
		p.Pings = known
		out[i] = p
	}
	return out
}

// resolvePop maps a hint onto the catalog. Without a catalog the hint is kept.
func (r *Registry) resolvePop(hint string) string {
	if r.catalog.Len() == 0 {
		return domain.NormalizeRegion(hint)
	}
	return r.catalog.Resolve(hint)
}

func sessionNotFound(sessionID uint32) error {
	return lobbyerrors.WithMetadata(lobbyerrors.CodeNotFound, "session not found", map[string]string{
		"session_id": strconv.FormatUint(uint64(sessionID), 10),
	})
}
