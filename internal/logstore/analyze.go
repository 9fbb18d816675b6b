package logstore

import (
	"sort"
	"time"

	"github.com/treit/faultline/internal/taxonomy"
)

// topN bounds the code and actor frequency lists in Patterns.
const topN = 10

// CodeCount is a code with its occurrence count.
type CodeCount struct {
	Code  taxonomy.Code `json:"code"`
	Count int           `json:"count"`
}

// ActorCount is an actor with their fault count.
type ActorCount struct {
	ActorID string `json:"actor_id"`
	Count   int    `json:"count"`
}

// HourCount is one bucket of the trailing-24h histogram. Hour is the
// bucket's hour of day (0-23).
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Patterns is the batch analysis over the current ring contents.
type Patterns struct {
	TopCodes      []CodeCount  `json:"top_codes"`
	HourlyTrend   []HourCount  `json:"hourly_trend"`
	SevereLast24h int          `json:"severe_last_24h"`
	TopActors     []ActorCount `json:"top_actors"`
}

// AnalyzePatterns scans the buffer once and derives frequency and trend
// views. Pull-based: nothing here is maintained incrementally, and the cost
// is linear in the ring size.
func (s *Store) AnalyzePatterns() Patterns {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	s.mu.Lock()
	codeCounts := make(map[taxonomy.Code]int)
	actorCounts := make(map[string]int)
	hourly := make(map[int]int)
	severe := 0

	for _, e := range s.entries {
		codeCounts[e.Code]++
		if e.ActorID != "" {
			actorCounts[e.ActorID]++
		}
		if !e.Time.Before(cutoff) {
			hourly[e.Time.Hour()]++
			if e.Severity == taxonomy.SeverityHigh.String() || e.Severity == taxonomy.SeverityCritical.String() {
				severe++
			}
		}
	}
	s.mu.Unlock()

	p := Patterns{SevereLast24h: severe}

	for code, n := range codeCounts {
		p.TopCodes = append(p.TopCodes, CodeCount{Code: code, Count: n})
	}
	sort.Slice(p.TopCodes, func(i, j int) bool {
		if p.TopCodes[i].Count != p.TopCodes[j].Count {
			return p.TopCodes[i].Count > p.TopCodes[j].Count
		}
		return p.TopCodes[i].Code < p.TopCodes[j].Code
	})
	if len(p.TopCodes) > topN {
		p.TopCodes = p.TopCodes[:topN]
	}

	p.HourlyTrend = make([]HourCount, 24)
	for h := 0; h < 24; h++ {
		p.HourlyTrend[h] = HourCount{Hour: h, Count: hourly[h]}
	}

	for actor, n := range actorCounts {
		p.TopActors = append(p.TopActors, ActorCount{ActorID: actor, Count: n})
	}
	sort.Slice(p.TopActors, func(i, j int) bool {
		if p.TopActors[i].Count != p.TopActors[j].Count {
			return p.TopActors[i].Count > p.TopActors[j].Count
		}
		return p.TopActors[i].ActorID < p.TopActors[j].ActorID
	})
	if len(p.TopActors) > topN {
		p.TopActors = p.TopActors[:topN]
	}

	return p
}
