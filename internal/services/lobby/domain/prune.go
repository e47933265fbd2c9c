package domain

import "time"

// DefaultPlayerTTL is how long a player may stay silent before pruning.
const DefaultPlayerTTL = 60 * time.Second

// Refresh names the player whose heartbeat is stamped before pruning.
type Refresh struct {
	SessionID uint32
	PlayerID  uint32
}

// PruneResult counts what a prune pass removed.
type PruneResult struct {
	Players  int
	Sessions int
}

// Prune stamps the optional refresh target, then drops every player idle for
// at least ttl and every session left without players. The input is not
// modified.
func Prune(l SessionList, now time.Time, ttl time.Duration, refresh *Refresh) (SessionList, PruneResult) {
	if ttl <= 0 {
		ttl = DefaultPlayerTTL
	}
	var result PruneResult
	out := make(SessionList, 0, len(l))
	for _, s := range l {
		s = s.Clone()
		if refresh != nil && s.ID == refresh.SessionID {
			if idx := s.PlayerIndex(refresh.PlayerID); idx >= 0 {
				s.Players[idx].LastHeartbeat = now
			}
		}
		kept := s.Players[:0]
		for _, p := range s.Players {
			if now.Sub(p.LastHeartbeat) >= ttl {
				result.Players++
				continue
			}
			kept = append(kept, p)
		}
		s.Players = kept
		if len(s.Players) == 0 {
			result.Sessions++
			continue
		}
		out = append(out, s)
	}
	return out, result
}
