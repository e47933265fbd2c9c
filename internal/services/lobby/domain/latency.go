package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
)

// MaxPingSamples caps one report batch.
const MaxPingSamples = 64

// ErrNoSamples is returned when no player has reported a ping.
var ErrNoSamples = lobbyerrors.New(lobbyerrors.CodeNoSamples, "no ping samples reported")

// RegionLatency is the mean latency observed towards one region.
type RegionLatency struct {
	Region string
	MeanMS float64
	Count  int
}

// AggregateLatency groups every player's samples by region and returns the
// per-region means sorted by mean, ties broken by region code.
func AggregateLatency(players []Player) []RegionLatency {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range players {
		for _, sample := range p.Pings {
			sums[sample.Region] += sample.LatencyMS
			counts[sample.Region]++
		}
	}
	out := make([]RegionLatency, 0, len(sums))
	for region, sum := range sums {
		out = append(out, RegionLatency{
			Region: region,
			MeanMS: sum / float64(counts[region]),
			Count:  counts[region],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return lessLatency(out[i], out[j])
	})
	return out
}

func lessLatency(a, b RegionLatency) bool {
	if a.MeanMS != b.MeanMS {
		return a.MeanMS < b.MeanMS
	}
	return a.Region < b.Region
}

// SelectRegion picks the region with the lowest mean latency across players.
// Equal means resolve to the lexically smallest region code.
func SelectRegion(players []Player) (string, error) {
	ranked := AggregateLatency(players)
	if len(ranked) == 0 {
		return "", ErrNoSamples
	}
	return ranked[0].Region, nil
}

// ValidateSamples normalizes region codes and rejects unusable latencies.
func ValidateSamples(samples []PingSample) ([]PingSample, error) {
	if len(samples) > MaxPingSamples {
		return nil, lobbyerrors.New(lobbyerrors.CodeMalformed, fmt.Sprintf("at most %d ping samples per report", MaxPingSamples))
	}
	out := make([]PingSample, 0, len(samples))
	for i, sample := range samples {
		region := NormalizeRegion(sample.Region)
		if region == "" {
			return nil, lobbyerrors.New(lobbyerrors.CodeMalformed, fmt.Sprintf("sample %d: region is required", i))
		}
		if math.IsNaN(sample.LatencyMS) || math.IsInf(sample.LatencyMS, 0) || sample.LatencyMS < 0 {
			return nil, lobbyerrors.New(lobbyerrors.CodeMalformed, fmt.Sprintf("sample %d: latency must be a non-negative number", i))
		}
		out = append(out, PingSample{Region: region, LatencyMS: sample.LatencyMS})
	}
	return out, nil
}

// NormalizeRegion trims and lowercases a region code.
func NormalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

// ReplacePings overwrites a player's sample set. It reports false when the
// session or player is absent.
func (l SessionList) ReplacePings(sessionID, playerID uint32, samples []PingSample) bool {
	si := l.Index(sessionID)
	if si < 0 {
		return false
	}
	pi := l[si].PlayerIndex(playerID)
	if pi < 0 {
		return false
	}
	l[si].Players[pi].Pings = append([]PingSample(nil), samples...)
	return true
}
