package domain

import "math"

// Rank scores a session for join-best: the number of occupied slots, or
// math.MinInt for a full session so it can never win.
func Rank(s Session) int {
	if s.Full() {
		return math.MinInt
	}
	return s.Occupied()
}

// BestSession returns the index of the session a new player should join, or
// -1 when no session is joinable. The fullest non-full session wins; among
// equal ranks the first in store order is kept.
func (l SessionList) BestSession() int {
	best := math.MinInt
	bestIdx := -1
	for i, s := range l {
		if rank := Rank(s); rank > best {
			best = rank
			bestIdx = i
		}
	}
	return bestIdx
}
