// Package handler is the orchestrator: it classifies raw failures, decides
// retry versus terminal, logs, reports, resolves recovery actions and raises
// the notification signal. One handler instance owns the process-wide
// configuration; construct it at startup and pass it to call sites.
package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/logstore"
	"github.com/treit/faultline/internal/report"
	"github.com/treit/faultline/internal/retry"
	"github.com/treit/faultline/internal/taxonomy"
)

// Config is the process-wide behavior of the handler. Set once at startup;
// mutable afterwards only through UpdateConfig.
type Config struct {
	EnableLogging   bool
	EnableReporting bool
	MinLogLevel     slog.Level
	Policy          retry.Policy
	Environment     string
	Version         string
	LogCapacity     int
	BackupCapacity  int
	// ReportThreshold is the minimum severity forwarded to sinks.
	ReportThreshold taxonomy.Severity
	// NotifyThreshold is the minimum severity raised to the notifier.
	// LOW severities stay diagnostic-only.
	NotifyThreshold taxonomy.Severity
}

// DefaultConfig mirrors the platform defaults.
func DefaultConfig() Config {
	return Config{
		EnableLogging:   true,
		EnableReporting: false,
		MinLogLevel:     slog.LevelDebug,
		Policy:          retry.DefaultPolicy(),
		ReportThreshold: taxonomy.SeverityHigh,
		NotifyThreshold: taxonomy.SeverityMedium,
	}
}

// Notifier receives faults that need user-visible treatment, with the
// resolved recovery actions. Owned by the presentation layer.
type Notifier func(f *fault.Fault, actions []RecoveryAction)

// RecoveryResolver overrides the default recovery-action derivation.
type RecoveryResolver func(f *fault.Fault) []RecoveryAction

// HTTPFailure describes an HTTP response to classify.
type HTTPFailure struct {
	Status int
	Body   string
}

// BackendFailure describes a backend-client error to classify.
type BackendFailure struct {
	Code    string
	Message string
}

// ValidationFailure describes a single-field validation failure to classify.
type ValidationFailure struct {
	Field string
	Value any
	Rule  string
}

// Disposition is the outcome of handling one failure. When Retry is true the
// backoff delay has already elapsed and the caller should re-invoke its own
// operation; the handler never re-invokes it.
type Disposition struct {
	Fault   *fault.Fault
	Retry   bool
	Attempt int
	Delay   time.Duration
	Actions []RecoveryAction
}

// Handler wires the factory, retry engine, log store and report dispatcher.
type Handler struct {
	logs       *logstore.Store
	engine     *retry.Engine
	dispatcher *report.Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	cfg      Config
	notifier Notifier
	resolver RecoveryResolver
	detached sync.WaitGroup
}

// New constructs a handler. db may be nil when reporting is disabled and no
// backup queue is wanted; sinks may be empty. A nil logger falls back to
// slog.Default.
func New(cfg Config, db *sql.DB, sinks []report.Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logs:   logstore.New(cfg.LogCapacity, cfg.MinLogLevel, logger),
		engine: retry.NewEngine(cfg.Policy),
		logger: logger,
		cfg:    cfg,
	}
	if db != nil {
		h.dispatcher = report.NewDispatcher(report.Config{
			DB:             db,
			Sinks:          sinks,
			BackupCapacity: cfg.BackupCapacity,
			Environment:    cfg.Environment,
			Version:        cfg.Version,
			Logger:         logger,
		})
	}
	return h
}

// UpdateConfig replaces the effective configuration. Counters and the log
// ring survive; only behavior knobs change.
func (h *Handler) UpdateConfig(cfg Config) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	h.engine.SetPolicy(cfg.Policy)
	h.logs.SetMinLevel(cfg.MinLogLevel)
}

func (h *Handler) config() Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// SetNotifier registers the notification callback.
func (h *Handler) SetNotifier(n Notifier) {
	h.mu.Lock()
	h.notifier = n
	h.mu.Unlock()
}

// SetRecoveryResolver registers a caller-supplied recovery resolver, which
// takes priority over the defaults.
func (h *Handler) SetRecoveryResolver(r RecoveryResolver) {
	h.mu.Lock()
	h.resolver = r
	h.mu.Unlock()
}

// Handle runs a raw failure through the full pipeline: classify, log,
// retry-or-terminal, report, resolve recovery actions, notify. On the retry
// path Handle waits out the backoff before returning, yielding only this
// caller's control flow; ctx cancellation abandons the wait.
func (h *Handler) Handle(ctx context.Context, failure any, fctx fault.Context) Disposition {
	f := h.Classify(failure, fctx)
	cfg := h.config()

	if cfg.EnableLogging {
		h.logs.Log(f)
	}

	if f.Retryable {
		key := retry.KeyFor(f)
		if n, ok := h.engine.Attempt(f, key); ok {
			delay := h.engine.Delay(n)
			if err := h.engine.Wait(ctx, n); err != nil {
				// Caller abandoned the operation mid-wait; other keys are
				// unaffected.
				return Disposition{Fault: f, Retry: false, Attempt: n, Delay: delay}
			}
			return Disposition{Fault: f, Retry: true, Attempt: n, Delay: delay}
		}
	}

	// Terminal path.
	if cfg.EnableReporting && f.Severity >= cfg.ReportThreshold && h.dispatcher != nil {
		h.detached.Add(1)
		go func() {
			defer h.detached.Done()
			defer func() {
				if r := recover(); r != nil {
					h.logger.Warn("report dispatch panicked", "panic", fmt.Sprint(r))
				}
			}()
			if _, err := h.dispatcher.Report(context.Background(), f); err != nil {
				h.logger.Debug("report dispatch failed", "code", string(f.Code), "error", err)
			}
		}()
	}

	actions := h.RecoveryActions(f)

	h.mu.Lock()
	notifier := h.notifier
	h.mu.Unlock()
	if notifier != nil && f.Severity >= cfg.NotifyThreshold {
		notifier(f, actions)
	}

	return Disposition{Fault: f, Actions: actions}
}

// HandleDetached schedules handling on a background goroutine and swallows
// everything, for call sites that cannot wait. The detached task uses a
// background context, so retry waits run to completion.
func (h *Handler) HandleDetached(failure any, fctx fault.Context) {
	h.detached.Add(1)
	go func() {
		defer h.detached.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Warn("detached handling panicked", "panic", fmt.Sprint(r))
			}
		}()
		h.Handle(context.Background(), failure, fctx)
	}()
}

// Classify coerces an arbitrary failure into a Fault. Classification is
// total: anything unrecognizable becomes SYSTEM_UNKNOWN_ERROR.
func (h *Handler) Classify(failure any, fctx fault.Context) *fault.Fault {
	switch v := failure.(type) {
	case *fault.Fault:
		return v
	case HTTPFailure:
		return fault.FromHTTPStatus(v.Status, fctx)
	case *HTTPFailure:
		return fault.FromHTTPStatus(v.Status, fctx)
	case BackendFailure:
		return fault.FromBackendError(v.Code, v.Message, fctx)
	case *BackendFailure:
		return fault.FromBackendError(v.Code, v.Message, fctx)
	case ValidationFailure:
		return fault.FromValidationError(v.Field, v.Value, v.Rule, fctx)
	case error:
		return classifyError(v, fctx)
	case nil:
		return fault.New(taxonomy.SystemUnknownError, fctx)
	default:
		return fault.New(taxonomy.SystemUnknownError, fctx,
			fault.WithCause(fmt.Errorf("%v", v)))
	}
}

func classifyError(err error, fctx fault.Context) *fault.Fault {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fault.FromNetworkError(err, fctx)
	}

	// Backend-shaped errors surface as message text from the query layer.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "postgres") || strings.Contains(msg, "pgrst") ||
		strings.Contains(msg, "sqlstate") {
		return fault.FromBackendError("", err.Error(), fctx)
	}

	return fault.New(taxonomy.SystemUnknownError, fctx, fault.WithCause(err))
}

// RecoveryActions resolves the suggested remediations for a fault: the
// registered resolver wins, defaults otherwise.
func (h *Handler) RecoveryActions(f *fault.Fault) []RecoveryAction {
	h.mu.Lock()
	resolver := h.resolver
	h.mu.Unlock()
	if resolver != nil {
		if actions := resolver(f); actions != nil {
			return actions
		}
	}
	return defaultRecoveryActions(f)
}

// ClearRetry drops the attempt counter for a fault's key. Call after the
// retried operation finally succeeds.
func (h *Handler) ClearRetry(f *fault.Fault) {
	h.engine.Clear(retry.KeyFor(f))
}

// Logs exposes the log store for queries and pattern analysis.
func (h *Handler) Logs() *logstore.Store {
	return h.logs
}

// Dispatcher exposes the report dispatcher; nil when no backup DB was wired.
func (h *Handler) Dispatcher() *report.Dispatcher {
	return h.dispatcher
}

// MergedStats combines the counters from the log store, the dispatcher and
// the retry engine.
type MergedStats struct {
	Logs     logstore.Stats `json:"logs"`
	Reports  report.Stats   `json:"reports"`
	Attempts map[string]int `json:"retry_attempts"`
}

// Stats returns the merged counters.
func (h *Handler) Stats() MergedStats {
	s := MergedStats{
		Logs:     h.logs.Stats(),
		Attempts: h.engine.Attempts(),
	}
	if h.dispatcher != nil {
		s.Reports = h.dispatcher.Stats()
	}
	return s
}

// Close waits for detached work, clears all attempt counters and unregisters
// the notification and recovery hooks.
func (h *Handler) Close() {
	h.detached.Wait()
	h.engine.Reset()
	h.mu.Lock()
	h.notifier = nil
	h.resolver = nil
	h.mu.Unlock()
}
