// Package fault defines the normalized fault record and the factory that is
// the only way to produce one. Downstream components treat a Fault as
// read-only; the original cause is held opaquely for diagnostics and is
// never used for control flow outside this package.
package fault

import (
	"time"

	"github.com/treit/faultline/internal/taxonomy"
)

// Context carries call-site metadata attached to a fault. Contexts are
// value types: With* helpers return extended copies and never mutate the
// receiver, so a context handed to two call paths stays stable.
type Context struct {
	ActorID   string         `json:"actor_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Component string         `json:"component,omitempty"`
	Action    string         `json:"action,omitempty"`
	URL       string         `json:"url,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// WithExtra returns a copy of the context with the key set in Extra.
func (c Context) WithExtra(key string, value any) Context {
	extra := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		extra[k] = v
	}
	extra[key] = value
	c.Extra = extra
	return c
}

// With returns a copy of the context with component and action set.
func (c Context) With(component, action string) Context {
	c.Component = component
	c.Action = action
	return c
}

// Fault is the canonical classified error record. Fields are populated once
// at construction from the taxonomy tables and are not re-derived later.
type Fault struct {
	Code        taxonomy.Code     `json:"code"`
	Category    taxonomy.Category `json:"category"`
	Severity    taxonomy.Severity `json:"severity"`
	Message     string            `json:"message"`
	UserMessage string            `json:"user_message"`
	Details     string            `json:"details,omitempty"`
	Context     Context           `json:"context"`
	Retryable   bool              `json:"retryable"`
	Recoverable bool              `json:"recoverable"`

	cause error
}

// Error implements the error interface with the developer-facing message.
func (f *Fault) Error() string {
	return f.Message
}

// Unwrap exposes the original cause to errors.Is/As without making it part
// of the serialized record.
func (f *Fault) Unwrap() error {
	return f.cause
}

// SeverityString returns the label form used in logs and serialized payloads.
func (f *Fault) SeverityString() string {
	return f.Severity.String()
}
