package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/treit/faultline/internal/fault"
)

// Response represents a standard JSON response
type Response struct {
	SchemaVersion string         `json:"schema_version"`
	Success       bool           `json:"success"`
	Data          interface{}    `json:"data,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	UserMessage   string         `json:"user_message,omitempty"`
	Severity      string         `json:"severity,omitempty"`
	ErrorContext  map[string]any `json:"error_context,omitempty"`
}

// Success wraps a successful response with data
func Success(data interface{}) Response {
	return Response{
		SchemaVersion: "v1",
		Success:       true,
		Data:          data,
	}
}

// Error wraps an error in a response. Classified faults carry their code,
// user message and severity through to the envelope; plain errors only fill
// the error string.
func Error(err error) Response {
	resp := Response{
		SchemaVersion: "v1",
		Success:       false,
		Error:         err.Error(),
	}
	var f *fault.Fault
	if errors.As(err, &f) {
		resp.ErrorCode = string(f.Code)
		resp.UserMessage = f.UserMessage
		resp.Severity = f.SeverityString()
		resp.ErrorContext = f.Context.Extra
	}
	return resp
}

// Config controls where and how JSON is written.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig writes compact JSON to stdout. Pretty JSON for humans via
// env var: FAULTLINE_PRETTY_JSON=1.
func DefaultConfig() Config {
	pretty := os.Getenv("FAULTLINE_PRETTY_JSON")
	return Config{
		Writer: os.Stdout,
		Pretty: pretty == "1" || pretty == "true",
	}
}

// PrintWith writes a value as JSON using the given config.
func PrintWith(cfg Config, v interface{}) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print prints a value as JSON to stdout
func Print(v interface{}) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a success response
func PrintSuccess(data interface{}) error {
	return Print(Success(data))
}

// PrintError prints an error response
func PrintError(err error) error {
	return Print(Error(err))
}

// Keep output package focused: commands should handle human-readable formatting.
