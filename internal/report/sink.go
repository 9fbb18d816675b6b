// Package report fans faults out to external reporting sinks with a
// write-ahead backup queue for offline resync. Delivery is at-least-once:
// sinks are expected to dedupe by the record id carried in every payload.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/treit/faultline/internal/fault"
)

// Payload is what sinks receive: the serialized fault plus delivery metadata.
// RecordID is stable across resends of the same record and is the dedupe key.
type Payload struct {
	RecordID    string       `json:"record_id"`
	Fault       *fault.Fault `json:"error"`
	Environment string       `json:"environment,omitempty"`
	Version     string       `json:"version,omitempty"`
	ReportedAt  time.Time    `json:"reported_at"`
}

// Sink is one external reporting destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

const defaultSinkTimeout = 10 * time.Second

// HTTPSink POSTs payloads as JSON to a custom ingest endpoint.
type HTTPSink struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPSink builds a sink for the endpoint with a default timeout client.
func NewHTTPSink(endpoint, apiKey string) *HTTPSink {
	return &HTTPSink{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: defaultSinkTimeout},
	}
}

func (s *HTTPSink) Name() string { return "http" }

// Send delivers the payload. Any non-2xx response counts as a failed delivery.
func (s *HTTPSink) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// TelemetrySink posts a telemetry-service event envelope: same transport as
// HTTPSink, different payload shape (level + tags instead of the raw record).
type TelemetrySink struct {
	IngestURL string
	Client    *http.Client
}

// NewTelemetrySink builds a telemetry sink for the ingest URL.
func NewTelemetrySink(ingestURL string) *TelemetrySink {
	return &TelemetrySink{
		IngestURL: ingestURL,
		Client:    &http.Client{Timeout: defaultSinkTimeout},
	}
}

func (s *TelemetrySink) Name() string { return "telemetry" }

type telemetryEvent struct {
	EventID   string            `json:"event_id"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Tags      map[string]string `json:"tags"`
	Actor     string            `json:"actor,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Send delivers the payload as a telemetry event.
func (s *TelemetrySink) Send(ctx context.Context, p Payload) error {
	event := telemetryEvent{
		EventID: p.RecordID,
		Level:   telemetryLevel(p.Fault.SeverityString()),
		Message: p.Fault.Message,
		Tags: map[string]string{
			"code":        string(p.Fault.Code),
			"category":    string(p.Fault.Category),
			"environment": p.Environment,
		},
		Actor:     p.Fault.Context.ActorID,
		Timestamp: p.ReportedAt,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode telemetry event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.IngestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telemetry event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telemetry ingest returned status %d", resp.StatusCode)
	}
	return nil
}

func telemetryLevel(severity string) string {
	switch severity {
	case "LOW":
		return "info"
	case "MEDIUM":
		return "warning"
	case "CRITICAL":
		return "fatal"
	default:
		return "error"
	}
}
