package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/treit/faultline/internal/taxonomy"
)

// Option customizes fault construction.
type Option func(*options)

type options struct {
	cause       error
	userMessage string
}

// WithCause attaches the origin failure. It is stored opaquely and only
// surfaced via Unwrap and the Details field.
func WithCause(err error) Option {
	return func(o *options) { o.cause = err }
}

// WithUserMessage overrides the catalog user-facing message.
func WithUserMessage(msg string) Option {
	return func(o *options) { o.userMessage = msg }
}

// New builds a Fault for a taxonomy code. Category, severity and the
// retryable/recoverable flags come from the fixed tables; the context gets
// ambient defaults (timestamp) filled in when the call site left them empty.
func New(code taxonomy.Code, ctx Context, opts ...Option) *Fault {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now().UTC()
	}

	userMessage := o.userMessage
	if userMessage == "" {
		userMessage = taxonomy.UserMessage(code)
	}

	return &Fault{
		Code:        code,
		Category:    taxonomy.CategoryOf(code),
		Severity:    taxonomy.SeverityOf(code),
		Message:     developerMessage(code, o.cause),
		UserMessage: userMessage,
		Details:     extractDetails(o.cause),
		Context:     ctx,
		Retryable:   taxonomy.Retryable(code),
		Recoverable: taxonomy.Recoverable(code),
		cause:       o.cause,
	}
}

// FromHTTPStatus classifies an HTTP status via the transport table.
// Unmapped statuses resolve to SYSTEM_UNKNOWN_ERROR; classification never fails.
func FromHTTPStatus(status int, ctx Context, opts ...Option) *Fault {
	code, ok := taxonomy.FromHTTPStatus(status)
	if !ok {
		code = taxonomy.SystemUnknownError
	}
	return New(code, ctx.WithExtra("http_status", status), opts...)
}

// phraseRule matches known backend error phrasings. Rules are evaluated
// top to bottom; every substring in the rule must appear (case-insensitive)
// for the rule to fire.
type phraseRule struct {
	substrings []string
	code       taxonomy.Code
}

var backendPhraseRules = []phraseRule{
	{[]string{"jwt expired"}, taxonomy.AuthTokenExpired},
	{[]string{"token expired"}, taxonomy.AuthTokenExpired},
	{[]string{"invalid", "credentials"}, taxonomy.AuthInvalidCredentials},
	{[]string{"permission denied"}, taxonomy.PermissionDenied},
	{[]string{"access denied"}, taxonomy.PermissionDenied},
	{[]string{"not found"}, taxonomy.DBRecordNotFound},
	{[]string{"duplicate"}, taxonomy.DBDuplicateEntry},
	{[]string{"already exists"}, taxonomy.DBDuplicateEntry},
	{[]string{"connection", "refused"}, taxonomy.DBConnectionFailed},
}

func matchBackendPhrase(message string) (taxonomy.Code, bool) {
	lower := strings.ToLower(message)
	for _, rule := range backendPhraseRules {
		matched := true
		for _, sub := range rule.substrings {
			if !strings.Contains(lower, sub) {
				matched = false
				break
			}
		}
		if matched {
			return rule.code, true
		}
	}
	return "", false
}

// FromBackendError classifies a backend-client failure. An explicit backend
// code match always wins over the message heuristics; if neither applies the
// fault falls back to SYSTEM_UNKNOWN_ERROR.
func FromBackendError(beCode, message string, ctx Context, opts ...Option) *Fault {
	code := taxonomy.SystemUnknownError
	if mapped, ok := taxonomy.FromBackendCode(beCode); ok {
		code = mapped
	} else if mapped, ok := matchBackendPhrase(message); ok {
		code = mapped
	}

	if beCode != "" {
		ctx = ctx.WithExtra("backend_code", beCode)
	}
	if hasCause(opts) {
		return New(code, ctx, opts...)
	}
	return New(code, ctx, append(opts, WithCause(errors.New(message)))...)
}

func hasCause(opts []Option) bool {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o.cause != nil
}

// FromNetworkError classifies a transport failure by error shape:
// timeouts (net.Error or context deadline) map to NETWORK_TIMEOUT, DNS
// failures to NETWORK_DNS_ERROR, everything else to NETWORK_CONNECTION_FAILED.
func FromNetworkError(err error, ctx Context, opts ...Option) *Fault {
	code := taxonomy.NetworkConnectionFailed

	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = taxonomy.NetworkTimeout
	case errors.As(err, &dnsErr):
		code = taxonomy.NetworkDNSError
	case errors.As(err, &netErr) && netErr.Timeout():
		code = taxonomy.NetworkTimeout
	}

	return New(code, ctx, append(opts, WithCause(err))...)
}

// Validation rule names accepted by FromValidationError.
const (
	RuleRequired  = "required"
	RuleEmail     = "email"
	RulePhone     = "phone"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
)

// FromValidationError builds a validation fault for a single field. The
// offending value lands in the context Extra for diagnostics and is kept out
// of the user-facing message.
func FromValidationError(field string, value any, rule string, ctx Context) *Fault {
	var code taxonomy.Code
	switch rule {
	case RuleRequired:
		code = taxonomy.ValidationRequiredField
	case RuleEmail:
		code = taxonomy.ValidationInvalidEmail
	case RulePhone:
		code = taxonomy.ValidationInvalidPhone
	case RuleMinLength:
		code = taxonomy.ValidationMinLength
	case RuleMaxLength:
		code = taxonomy.ValidationMaxLength
	default:
		code = taxonomy.ValidationInvalidFormat
	}

	ctx = ctx.WithExtra("field", field).
		WithExtra("value", value).
		WithExtra("rule", rule)

	return New(code, ctx)
}

// Payment failure kinds, matching the gateway's error envelope.
const (
	PaymentKindCard = "card_error"
	PaymentKindAPI  = "api_error"
)

// FromPaymentError classifies a payment-gateway failure from its
// (kind, gateway code) pair.
func FromPaymentError(kind, gatewayCode string, err error, ctx Context) *Fault {
	code := taxonomy.PaymentProcessingFailed

	switch kind {
	case PaymentKindCard:
		switch gatewayCode {
		case "card_declined":
			code = taxonomy.PaymentCardDeclined
		case "insufficient_funds":
			code = taxonomy.PaymentInsufficientFunds
		default:
			code = taxonomy.PaymentInvalidCard
		}
	case PaymentKindAPI:
		code = taxonomy.PaymentGatewayError
	}

	if gatewayCode != "" {
		ctx = ctx.WithExtra("gateway_code", gatewayCode)
	}
	return New(code, ctx, WithCause(err))
}

// File failure reasons accepted by FromFileError.
const (
	FileReasonTooLarge    = "file_too_large"
	FileReasonInvalidType = "invalid_file_type"
	FileReasonStorageFull = "storage_full"
)

// FromFileError classifies an upload failure and records the file metadata
// in the context.
func FromFileError(name string, size int64, mimeType, reason string, ctx Context) *Fault {
	var code taxonomy.Code
	switch reason {
	case FileReasonTooLarge:
		code = taxonomy.FileTooLarge
	case FileReasonInvalidType:
		code = taxonomy.FileInvalidType
	case FileReasonStorageFull:
		code = taxonomy.FileStorageFull
	default:
		code = taxonomy.FileUploadFailed
	}

	ctx = ctx.WithExtra("file_name", name).
		WithExtra("file_size", size).
		WithExtra("file_type", mimeType)

	return New(code, ctx)
}

// developerMessage renders the code as lowercase words, appending the cause
// text when there is one.
func developerMessage(code taxonomy.Code, cause error) string {
	base := strings.ToLower(strings.ReplaceAll(string(code), "_", " "))
	if cause != nil {
		return fmt.Sprintf("%s: %s", base, cause.Error())
	}
	return base
}

func extractDetails(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
