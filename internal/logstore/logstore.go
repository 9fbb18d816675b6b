// Package logstore keeps a capacity-bounded in-memory ring of handled
// faults with incrementally maintained aggregate stats. It also mirrors
// accepted entries to a slog.Logger so the process log stream and the
// queryable buffer stay in step.
package logstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/taxonomy"
)

// DefaultCapacity bounds the ring when the caller does not configure one.
const DefaultCapacity = 1000

// recentWindow is how many entries Stats keeps in its most-recent view.
const recentWindow = 10

// Entry is one handled fault as recorded in the ring. Entries are immutable
// after insertion.
type Entry struct {
	Time        time.Time         `json:"time"`
	Level       slog.Level        `json:"level"`
	Code        taxonomy.Code     `json:"code"`
	Category    taxonomy.Category `json:"category"`
	Severity    string            `json:"severity"`
	Message     string            `json:"message"`
	UserMessage string            `json:"user_message"`
	Details     string            `json:"details,omitempty"`
	ActorID     string            `json:"actor_id,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	Component   string            `json:"component,omitempty"`
	Action      string            `json:"action,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
}

// Stats are the incrementally maintained aggregates. Recomputed from scratch
// only after bulk deletion (Cleanup, Clear).
type Stats struct {
	Total      int                       `json:"total"`
	ByCategory map[taxonomy.Category]int `json:"by_category"`
	BySeverity map[string]int            `json:"by_severity"`
	Recent     []Entry                   `json:"recent"`
}

// Filter narrows Query results. Zero values mean "no constraint".
type Filter struct {
	Level    *slog.Level
	Category taxonomy.Category
	Severity string
	ActorID  string
	Start    time.Time
	End      time.Time
}

// Store is the bounded ring buffer. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	minLevel slog.Level
	logger   *slog.Logger
	stats    Stats
}

// New builds a store. capacity <= 0 selects DefaultCapacity; a nil logger
// disables mirroring.
func New(capacity int, minLevel slog.Level, logger *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		minLevel: minLevel,
		logger:   logger,
		stats:    emptyStats(),
	}
}

func emptyStats() Stats {
	return Stats{
		ByCategory: make(map[taxonomy.Category]int),
		BySeverity: make(map[string]int),
	}
}

// SetMinLevel changes the minimum level accepted by Log.
func (s *Store) SetMinLevel(level slog.Level) {
	s.mu.Lock()
	s.minLevel = level
	s.mu.Unlock()
}

// LevelFor maps fault severity to the log level used for its entry:
// LOW→debug, MEDIUM→warn, HIGH and CRITICAL→error.
func LevelFor(sev taxonomy.Severity) slog.Level {
	switch sev {
	case taxonomy.SeverityLow:
		return slog.LevelDebug
	case taxonomy.SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Log records a fault. Entries below the configured minimum level are
// dropped; otherwise the entry is appended, the oldest entry evicted when
// the ring is over capacity, and the incremental stats updated.
func (s *Store) Log(f *fault.Fault) bool {
	level := LevelFor(f.Severity)

	s.mu.Lock()
	if level < s.minLevel {
		s.mu.Unlock()
		return false
	}

	e := Entry{
		Time:        time.Now().UTC(),
		Level:       level,
		Code:        f.Code,
		Category:    f.Category,
		Severity:    f.Severity.String(),
		Message:     f.Message,
		UserMessage: f.UserMessage,
		Details:     f.Details,
		ActorID:     f.Context.ActorID,
		SessionID:   f.Context.SessionID,
		Component:   f.Context.Component,
		Action:      f.Context.Action,
		Extra:       f.Context.Extra,
	}

	s.entries = append(s.entries, e)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[1:]
	}

	s.stats.Total++
	s.stats.ByCategory[e.Category]++
	s.stats.BySeverity[e.Severity]++
	s.stats.Recent = append(s.stats.Recent, e)
	if len(s.stats.Recent) > recentWindow {
		s.stats.Recent = s.stats.Recent[1:]
	}
	logger := s.logger
	s.mu.Unlock()

	if logger != nil {
		logger.Log(context.Background(), level, e.Message,
			"code", string(e.Code),
			"category", string(e.Category),
			"severity", e.Severity,
			"component", e.Component,
			"action", e.Action,
			"actor", e.ActorID,
		)
	}
	return true
}

// Query applies the filter fresh, sorts newest-first and paginates.
// page is 1-based. The returned total counts all matches, not just the page.
func (s *Store) Query(page, pageSize int, filter Filter) ([]Entry, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	s.mu.Lock()
	matched := make([]Entry, 0, len(s.entries))
	// The ring is insertion-ordered; walking backwards yields newest-first
	// without a separate sort.
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.match(s.entries[i], filter) {
			matched = append(matched, s.entries[i])
		}
	}
	s.mu.Unlock()

	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total
}

func (s *Store) match(e Entry, f Filter) bool {
	if f.Level != nil && e.Level != *f.Level {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if !f.Start.IsZero() && e.Time.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Time.After(f.End) {
		return false
	}
	return true
}

// ActorEntries returns the newest entries for one actor, up to limit.
func (s *Store) ActorEntries(actorID string, limit int) []Entry {
	if limit < 1 {
		limit = 20
	}
	entries, _ := s.Query(1, limit, Filter{ActorID: actorID})
	return entries
}

// Stats returns a copy of the aggregates.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStats(s.stats)
}

func copyStats(in Stats) Stats {
	out := Stats{
		Total:      in.Total,
		ByCategory: make(map[taxonomy.Category]int, len(in.ByCategory)),
		BySeverity: make(map[string]int, len(in.BySeverity)),
		Recent:     append([]Entry(nil), in.Recent...),
	}
	for k, v := range in.ByCategory {
		out.ByCategory[k] = v
	}
	for k, v := range in.BySeverity {
		out.BySeverity[k] = v
	}
	return out
}

// Len reports the current ring size.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup removes entries older than the cutoff and fully recomputes the
// aggregates, since arbitrary-range eviction cannot be folded incrementally.
// Returns how many entries were removed.
func (s *Store) Cleanup(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.Time.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	s.entries = kept
	s.recalculateLocked()
	return removed
}

func (s *Store) recalculateLocked() {
	s.stats = emptyStats()
	s.stats.Total = len(s.entries)
	for _, e := range s.entries {
		s.stats.ByCategory[e.Category]++
		s.stats.BySeverity[e.Severity]++
	}
	start := len(s.entries) - recentWindow
	if start < 0 {
		start = 0
	}
	s.stats.Recent = append([]Entry(nil), s.entries[start:]...)
}

// Export serializes the filtered entries (newest-first) as JSON.
func (s *Store) Export(filter Filter) ([]byte, error) {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	entries, _ := s.Query(1, n+1, filter)
	return json.MarshalIndent(entries, "", "  ")
}

// Clear empties the ring and resets the aggregates.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = s.entries[:0]
	s.stats = emptyStats()
	s.mu.Unlock()
}
