package handler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/report"
	"github.com/treit/faultline/internal/store"
	"github.com/treit/faultline/internal/taxonomy"
)

type captureSink struct {
	mu   sync.Mutex
	sent []report.Payload
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Send(_ context.Context, p report.Payload) error {
	s.mu.Lock()
	s.sent = append(s.sent, p)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Policy.BaseDelay = time.Millisecond
	cfg.Policy.MaxDelay = 20 * time.Millisecond
	return cfg
}

func testHandler(t *testing.T, cfg Config, sinks ...report.Sink) *Handler {
	t.Helper()
	var db *sql.DB
	if cfg.EnableReporting {
		db = testDB(t)
	}
	h := New(cfg, db, sinks, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(h.Close)
	return h
}

func netCtx() fault.Context {
	return fault.Context{ActorID: "alice", Component: "sync", Action: "push"}
}

func TestHandleRetriesWithDoublingDelaysThenExhausts(t *testing.T) {
	h := testHandler(t, fastConfig())
	f := fault.New(taxonomy.NetworkTimeout, netCtx())

	base := time.Millisecond
	for attempt := 1; attempt <= 3; attempt++ {
		d := h.Handle(context.Background(), f, netCtx())
		require.True(t, d.Retry, "attempt %d should be granted", attempt)
		require.Equal(t, attempt, d.Attempt)
		want := base * time.Duration(1<<attempt)
		require.Equal(t, want, d.Delay)
	}

	// Budget exhausted: the fourth failure is terminal.
	d := h.Handle(context.Background(), f, netCtx())
	require.False(t, d.Retry)
	require.NotEmpty(t, d.Actions)
}

func TestHandleCriticalUnknownLogsReportsAndNotifies(t *testing.T) {
	cfg := fastConfig()
	cfg.EnableReporting = true
	sink := &captureSink{}
	h := testHandler(t, cfg, sink)

	var notified *fault.Fault
	var notifiedActions []RecoveryAction
	h.SetNotifier(func(f *fault.Fault, actions []RecoveryAction) {
		notified = f
		notifiedActions = actions
	})

	d := h.Handle(context.Background(), errors.New("something exploded"), netCtx())

	require.False(t, d.Retry)
	require.Equal(t, taxonomy.SystemUnknownError, d.Fault.Code)
	require.Equal(t, taxonomy.SeverityCritical, d.Fault.Severity)

	// Logged.
	require.Equal(t, 1, h.Logs().Stats().Total)

	// Notified with a refresh remediation.
	require.NotNil(t, notified)
	kinds := make([]string, 0, len(notifiedActions))
	for _, a := range notifiedActions {
		kinds = append(kinds, a.Kind)
	}
	require.Contains(t, kinds, ActionRefresh)

	// Reported: dispatch is detached, Close waits it out.
	h.Close()
	require.Equal(t, 1, sink.count())
	require.Equal(t, string(taxonomy.SystemUnknownError), string(sink.sent[0].Fault.Code))
}

func TestHandleDoesNotReportBelowThreshold(t *testing.T) {
	cfg := fastConfig()
	cfg.EnableReporting = true
	sink := &captureSink{}
	h := testHandler(t, cfg, sink)

	// MEDIUM severity, not retryable.
	d := h.Handle(context.Background(),
		fault.New(taxonomy.ClientInvalidRequest, netCtx()), netCtx())
	require.False(t, d.Retry)

	h.Close()
	require.Equal(t, 0, sink.count())
}

func TestHandleDoesNotNotifyLowSeverity(t *testing.T) {
	h := testHandler(t, fastConfig())

	called := false
	h.SetNotifier(func(*fault.Fault, []RecoveryAction) { called = true })

	h.Handle(context.Background(),
		ValidationFailure{Field: "email", Value: "", Rule: fault.RuleRequired}, netCtx())
	require.False(t, called)
}

func TestClassify(t *testing.T) {
	h := testHandler(t, fastConfig())
	fctx := netCtx()

	orig := fault.New(taxonomy.PermissionDenied, fctx)
	require.Same(t, orig, h.Classify(orig, fctx))

	f := h.Classify(HTTPFailure{Status: 404}, fctx)
	require.Equal(t, taxonomy.DBRecordNotFound, f.Code)

	f = h.Classify(BackendFailure{Code: "23505", Message: "duplicate key"}, fctx)
	require.Equal(t, taxonomy.DBDuplicateEntry, f.Code)

	f = h.Classify(ValidationFailure{Field: "email", Value: "x", Rule: fault.RuleEmail}, fctx)
	require.Equal(t, taxonomy.ValidationInvalidEmail, f.Code)

	f = h.Classify(context.DeadlineExceeded, fctx)
	require.Equal(t, taxonomy.NetworkTimeout, f.Code)

	f = h.Classify(errors.New("pgrst301 jwt expired"), fctx)
	require.Equal(t, taxonomy.AuthTokenExpired, f.Code)

	f = h.Classify(nil, fctx)
	require.Equal(t, taxonomy.SystemUnknownError, f.Code)

	f = h.Classify(42, fctx)
	require.Equal(t, taxonomy.SystemUnknownError, f.Code)
}

func TestClearRetryRestoresBudget(t *testing.T) {
	cfg := fastConfig()
	cfg.Policy.MaxRetries = 1
	h := testHandler(t, cfg)
	f := fault.New(taxonomy.NetworkTimeout, netCtx())

	d := h.Handle(context.Background(), f, netCtx())
	require.True(t, d.Retry)

	// The operation succeeded after the retry; the next failure gets a
	// fresh budget.
	h.ClearRetry(f)
	d = h.Handle(context.Background(), f, netCtx())
	require.True(t, d.Retry)
}

func TestHandleAbandonsWaitOnCancel(t *testing.T) {
	cfg := fastConfig()
	cfg.Policy.BaseDelay = time.Second
	h := testHandler(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := h.Handle(ctx, fault.New(taxonomy.NetworkTimeout, netCtx()), netCtx())
	require.False(t, d.Retry)
	require.Equal(t, 1, d.Attempt)
}

func TestRecoveryResolverOverridesDefaults(t *testing.T) {
	h := testHandler(t, fastConfig())
	h.SetRecoveryResolver(func(*fault.Fault) []RecoveryAction {
		return []RecoveryAction{{Label: "Contact support", Kind: ActionCustom}}
	})

	actions := h.RecoveryActions(fault.New(taxonomy.NetworkTimeout, netCtx()))
	require.Len(t, actions, 1)
	require.Equal(t, ActionCustom, actions[0].Kind)
}

func TestDefaultRecoveryActionsByCategory(t *testing.T) {
	fctx := netCtx()

	actions := defaultRecoveryActions(fault.New(taxonomy.NetworkTimeout, fctx))
	require.Len(t, actions, 2)
	require.Equal(t, ActionRetry, actions[0].Kind)
	require.Equal(t, ActionRefresh, actions[1].Kind)

	actions = defaultRecoveryActions(fault.New(taxonomy.AuthTokenExpired, fctx))
	require.Len(t, actions, 1)
	require.Equal(t, ActionRedirect, actions[0].Kind)

	actions = defaultRecoveryActions(fault.New(taxonomy.ValidationRequiredField, fctx))
	require.Empty(t, actions)
}

func TestHandleDetachedRunsToCompletion(t *testing.T) {
	h := testHandler(t, fastConfig())

	var mu sync.Mutex
	var got *fault.Fault
	h.SetNotifier(func(f *fault.Fault, _ []RecoveryAction) {
		mu.Lock()
		got = f
		mu.Unlock()
	})

	h.HandleDetached(errors.New("background failure"), netCtx())
	h.Close()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	require.Equal(t, taxonomy.SystemUnknownError, got.Code)
}

func TestUpdateConfigChangesMinLogLevel(t *testing.T) {
	h := testHandler(t, fastConfig())

	cfg := h.config()
	cfg.MinLogLevel = slog.LevelError
	h.UpdateConfig(cfg)

	// MEDIUM maps to warn, below the new floor.
	h.Handle(context.Background(),
		fault.New(taxonomy.ClientInvalidRequest, netCtx()), netCtx())
	require.Equal(t, 0, h.Logs().Stats().Total)
}

func TestStatsMergesSources(t *testing.T) {
	cfg := fastConfig()
	cfg.EnableReporting = true
	sink := &captureSink{}
	h := testHandler(t, cfg, sink)

	h.Handle(context.Background(), fault.New(taxonomy.NetworkTimeout, netCtx()), netCtx())
	h.Handle(context.Background(), errors.New("boom"), netCtx())
	h.Close()

	s := h.Stats()
	require.Equal(t, 2, s.Logs.Total)
	require.Equal(t, 1, s.Reports.Total)
	require.Empty(t, s.Attempts) // Close resets the counters.
}
