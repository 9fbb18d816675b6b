package logstore

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/taxonomy"
)

func newTestStore(capacity int) *Store {
	return New(capacity, slog.LevelDebug, nil)
}

func logFault(s *Store, code taxonomy.Code, actor string) bool {
	return s.Log(fault.New(code, fault.Context{ActorID: actor, Component: "c", Action: "a"}))
}

func TestLevelFor(t *testing.T) {
	require.Equal(t, slog.LevelDebug, LevelFor(taxonomy.SeverityLow))
	require.Equal(t, slog.LevelWarn, LevelFor(taxonomy.SeverityMedium))
	require.Equal(t, slog.LevelError, LevelFor(taxonomy.SeverityHigh))
	require.Equal(t, slog.LevelError, LevelFor(taxonomy.SeverityCritical))
}

func TestLogRespectsMinLevel(t *testing.T) {
	s := New(10, slog.LevelWarn, nil)

	// LOW severity maps to debug, below the warn floor.
	require.False(t, logFault(s, taxonomy.ValidationRequiredField, "u1"))
	require.Equal(t, 0, s.Len())

	require.True(t, logFault(s, taxonomy.NetworkTimeout, "u1"))
	require.Equal(t, 1, s.Len())
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	const capacity = 5
	s := newTestStore(capacity)

	// Insert capacity + k entries with distinguishable actors.
	const k = 3
	for i := 0; i < capacity+k; i++ {
		logFault(s, taxonomy.NetworkTimeout, fmt.Sprintf("actor-%d", i))
	}

	require.Equal(t, capacity, s.Len())

	entries, total := s.Query(1, capacity, Filter{})
	require.Equal(t, capacity, total)
	// Newest-first: actor-7 down to actor-3; actor-0..2 evicted.
	for i, e := range entries {
		require.Equal(t, fmt.Sprintf("actor-%d", capacity+k-1-i), e.ActorID)
	}
}

func TestQueryFiltersAndPaginates(t *testing.T) {
	s := newTestStore(100)
	for i := 0; i < 6; i++ {
		logFault(s, taxonomy.NetworkTimeout, "alice")
	}
	for i := 0; i < 4; i++ {
		logFault(s, taxonomy.PaymentGatewayError, "bob")
	}

	_, total := s.Query(1, 50, Filter{Category: taxonomy.CategoryNetwork})
	require.Equal(t, 6, total)

	entries, total := s.Query(1, 50, Filter{ActorID: "bob"})
	require.Equal(t, 4, total)
	require.Len(t, entries, 4)

	// Pagination.
	page1, total := s.Query(1, 4, Filter{})
	require.Equal(t, 10, total)
	require.Len(t, page1, 4)
	page3, _ := s.Query(3, 4, Filter{})
	require.Len(t, page3, 2)
	page4, _ := s.Query(4, 4, Filter{})
	require.Empty(t, page4)

	errLevel := slog.LevelError
	_, total = s.Query(1, 50, Filter{Level: &errLevel})
	require.Equal(t, 0, total)
}

func TestQueryTimeRange(t *testing.T) {
	s := newTestStore(10)
	logFault(s, taxonomy.NetworkTimeout, "u")

	now := time.Now().UTC()
	_, total := s.Query(1, 10, Filter{Start: now.Add(-time.Minute), End: now.Add(time.Minute)})
	require.Equal(t, 1, total)
	_, total = s.Query(1, 10, Filter{Start: now.Add(time.Minute)})
	require.Equal(t, 0, total)
}

func TestStatsIncremental(t *testing.T) {
	s := newTestStore(100)
	for i := 0; i < 3; i++ {
		logFault(s, taxonomy.NetworkTimeout, "u")
	}
	logFault(s, taxonomy.ServerInternalError, "u")

	stats := s.Stats()
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 3, stats.ByCategory[taxonomy.CategoryNetwork])
	require.Equal(t, 1, stats.ByCategory[taxonomy.CategoryServer])
	require.Equal(t, 3, stats.BySeverity["MEDIUM"])
	require.Equal(t, 1, stats.BySeverity["CRITICAL"])
	require.Len(t, stats.Recent, 4)
}

func TestStatsRecentWindowBounded(t *testing.T) {
	s := newTestStore(100)
	for i := 0; i < 25; i++ {
		logFault(s, taxonomy.NetworkTimeout, "u")
	}
	require.Len(t, s.Stats().Recent, recentWindow)
}

func TestActorEntries(t *testing.T) {
	s := newTestStore(100)
	logFault(s, taxonomy.NetworkTimeout, "alice")
	logFault(s, taxonomy.DBQueryError, "bob")
	logFault(s, taxonomy.NetworkTimeout, "alice")

	entries := s.ActorEntries("alice", 10)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, "alice", e.ActorID)
	}
}

func TestAnalyzePatternsTopCodes(t *testing.T) {
	s := newTestStore(100)
	for i := 0; i < 5; i++ {
		logFault(s, taxonomy.NetworkTimeout, "alice")
	}
	for i := 0; i < 3; i++ {
		logFault(s, taxonomy.DBQueryError, "bob")
	}
	logFault(s, taxonomy.PaymentGatewayError, "alice")

	p := s.AnalyzePatterns()
	require.NotEmpty(t, p.TopCodes)
	require.Equal(t, taxonomy.NetworkTimeout, p.TopCodes[0].Code)
	require.Equal(t, 5, p.TopCodes[0].Count)

	require.Len(t, p.HourlyTrend, 24)
	sum := 0
	for _, h := range p.HourlyTrend {
		sum += h.Count
	}
	require.Equal(t, 9, sum)

	require.Equal(t, "alice", p.TopActors[0].ActorID)
	require.Equal(t, 6, p.TopActors[0].Count)
}

func TestAnalyzePatternsSevereCount(t *testing.T) {
	s := newTestStore(100)
	logFault(s, taxonomy.ServerInternalError, "u")   // CRITICAL
	logFault(s, taxonomy.PermissionDenied, "u")      // HIGH
	logFault(s, taxonomy.NetworkTimeout, "u")        // MEDIUM
	logFault(s, taxonomy.BusinessLimitExceeded, "u") // MEDIUM

	require.Equal(t, 2, s.AnalyzePatterns().SevereLast24h)
}

func TestCleanupRecomputesStats(t *testing.T) {
	s := newTestStore(100)
	logFault(s, taxonomy.NetworkTimeout, "u")
	logFault(s, taxonomy.ServerInternalError, "u")

	// Nothing old enough yet.
	require.Equal(t, 0, s.Cleanup(24*time.Hour))
	require.Equal(t, 2, s.Stats().Total)

	// Everything is older than a zero-duration cutoff.
	removed := s.Cleanup(0)
	require.Equal(t, 2, removed)
	stats := s.Stats()
	require.Equal(t, 0, stats.Total)
	require.Empty(t, stats.ByCategory)
	require.Empty(t, stats.Recent)
}

func TestExport(t *testing.T) {
	s := newTestStore(100)
	logFault(s, taxonomy.NetworkTimeout, "alice")

	data, err := s.Export(Filter{})
	require.NoError(t, err)
	require.Contains(t, string(data), "NETWORK_TIMEOUT")
	require.Contains(t, string(data), "alice")
}

func TestClear(t *testing.T) {
	s := newTestStore(100)
	logFault(s, taxonomy.NetworkTimeout, "u")
	s.Clear()
	require.Equal(t, 0, s.Len())
	require.Equal(t, 0, s.Stats().Total)
}
