package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/store"
)

// Stats counts dispatch outcomes since construction.
type Stats struct {
	Total        int       `json:"total"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	LastReportAt time.Time `json:"last_report_at,omitzero"`
}

// Config wires a Dispatcher.
type Config struct {
	DB             *sql.DB
	Sinks          []Sink
	BackupCapacity int
	Environment    string
	Version        string
	Logger         *slog.Logger
}

// Dispatcher writes every report to the backup queue first, then fans out to
// all sinks in parallel. A report succeeds when at least one sink accepts.
type Dispatcher struct {
	db       *sql.DB
	capacity int
	env      string
	version  string
	logger   *slog.Logger

	mu    sync.Mutex
	sinks []Sink
	stats Stats
}

// NewDispatcher builds a dispatcher. A nil logger falls back to slog.Default.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		db:       cfg.DB,
		sinks:    cfg.Sinks,
		capacity: cfg.BackupCapacity,
		env:      cfg.Environment,
		version:  cfg.Version,
		logger:   logger,
	}
}

// SetSinks replaces the sink set.
func (d *Dispatcher) SetSinks(sinks []Sink) {
	d.mu.Lock()
	d.sinks = sinks
	d.mu.Unlock()
}

// Report persists a write-ahead record for the fault and attempts delivery
// to every sink in parallel. Returns whether at least one sink accepted.
// The backup write happens regardless of sink outcomes: a crash between
// insert and delivery just leaves an unsent row for the next SyncBackup.
func (d *Dispatcher) Report(ctx context.Context, f *fault.Fault) (bool, error) {
	p := Payload{
		RecordID:    uuid.NewString(),
		Fault:       f,
		Environment: d.env,
		Version:     d.version,
		ReportedAt:  time.Now().UTC(),
	}

	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to serialize report payload: %w", err)
	}

	rec := store.ReportRecord{
		ID:       p.RecordID,
		Code:     string(f.Code),
		Severity: f.SeverityString(),
		Payload:  string(payloadJSON),
	}
	if err := store.InsertReport(d.db, rec, d.capacity); err != nil {
		// Best-effort durability: delivery is still attempted, there is just
		// no backup row to resync from.
		d.logger.Warn("backup write failed", "record_id", p.RecordID, "error", err)
	}

	delivered := d.deliver(ctx, p)
	if delivered {
		if _, err := store.MarkReportSent(d.db, p.RecordID); err != nil {
			d.logger.Debug("mark sent failed", "record_id", p.RecordID, "error", err)
		}
	}

	d.mu.Lock()
	d.stats.Total++
	if delivered {
		d.stats.Succeeded++
	} else {
		d.stats.Failed++
	}
	d.stats.LastReportAt = time.Now().UTC()
	d.mu.Unlock()

	return delivered, nil
}

// deliver fans the payload out to all sinks in parallel and reports whether
// any accepted. Sink failures are logged, never propagated.
func (d *Dispatcher) deliver(ctx context.Context, p Payload) bool {
	d.mu.Lock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.Unlock()

	if len(sinks) == 0 {
		return false
	}

	var (
		acceptedMu sync.Mutex
		accepted   bool
	)
	var g errgroup.Group
	for _, sink := range sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Send(ctx, p); err != nil {
				d.logger.Debug("sink rejected report",
					"sink", sink.Name(), "record_id", p.RecordID, "error", err)
				return nil
			}
			acceptedMu.Lock()
			accepted = true
			acceptedMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return accepted
}

// SyncBackup re-sends unsent backup records and returns how many were newly
// confirmed. Safe to call repeatedly and concurrently: a record is counted
// only by the call whose MarkReportSent actually flipped it, and sinks
// dedupe resends by the stable record id.
func (d *Dispatcher) SyncBackup(ctx context.Context) (int, error) {
	pending, err := store.UnsentReports(d.db, 0)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}

		var p Payload
		if err := json.Unmarshal([]byte(rec.Payload), &p); err != nil {
			d.logger.Warn("skipping undecodable backup record", "record_id", rec.ID, "error", err)
			continue
		}
		p.RecordID = rec.ID

		if !d.deliver(ctx, p) {
			continue
		}
		flipped, err := store.MarkReportSent(d.db, rec.ID)
		if err != nil {
			d.logger.Debug("mark sent failed during sync", "record_id", rec.ID, "error", err)
			continue
		}
		if flipped {
			synced++
		}
	}
	return synced, nil
}

// CleanupBackup purges already-sent records from the queue.
func (d *Dispatcher) CleanupBackup() (int, error) {
	purged, err := store.PurgeSentReports(d.db)
	return int(purged), err
}

// Stats returns a snapshot of dispatch counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
