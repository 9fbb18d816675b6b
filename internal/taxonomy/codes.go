// Package taxonomy defines the closed set of fault codes used across the
// pipeline, plus the fixed lookup tables that classify them. Everything here
// is data: lookups are total functions and never fail.
package taxonomy

import "strings"

// Code is a stable fault identifier, namespaced by prefix. The set is closed;
// adding a code means updating the category prefix table and, where relevant,
// the severity and retryable sets below.
type Code string

const (
	// Network
	NetworkConnectionFailed Code = "NETWORK_CONNECTION_FAILED"
	NetworkTimeout          Code = "NETWORK_TIMEOUT"
	NetworkOffline          Code = "NETWORK_OFFLINE"
	NetworkDNSError         Code = "NETWORK_DNS_ERROR"

	// Auth
	AuthTokenExpired       Code = "AUTH_TOKEN_EXPIRED"
	AuthInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	AuthUserNotFound       Code = "AUTH_USER_NOT_FOUND"
	AuthEmailNotVerified   Code = "AUTH_EMAIL_NOT_VERIFIED"
	AuthAccountLocked      Code = "AUTH_ACCOUNT_LOCKED"
	AuthPasswordWeak       Code = "AUTH_PASSWORD_WEAK"

	// Permission
	PermissionDenied       Code = "PERMISSION_DENIED"
	PermissionInsufficient Code = "PERMISSION_INSUFFICIENT"
	PermissionRoleRequired Code = "PERMISSION_ROLE_REQUIRED"

	// Payment
	PaymentCardDeclined      Code = "PAYMENT_CARD_DECLINED"
	PaymentInsufficientFunds Code = "PAYMENT_INSUFFICIENT_FUNDS"
	PaymentInvalidCard       Code = "PAYMENT_INVALID_CARD"
	PaymentProcessingFailed  Code = "PAYMENT_PROCESSING_FAILED"
	PaymentGatewayError      Code = "PAYMENT_GATEWAY_ERROR"

	// File upload
	FileTooLarge     Code = "FILE_TOO_LARGE"
	FileInvalidType  Code = "FILE_INVALID_TYPE"
	FileUploadFailed Code = "FILE_UPLOAD_FAILED"
	FileStorageFull  Code = "FILE_STORAGE_FULL"

	// Database
	DBConnectionFailed    Code = "DB_CONNECTION_FAILED"
	DBQueryError          Code = "DB_QUERY_ERROR"
	DBConstraintViolation Code = "DB_CONSTRAINT_VIOLATION"
	DBRecordNotFound      Code = "DB_RECORD_NOT_FOUND"
	DBDuplicateEntry      Code = "DB_DUPLICATE_ENTRY"

	// Server
	ServerInternalError      Code = "SERVER_INTERNAL_ERROR"
	ServerServiceUnavailable Code = "SERVER_SERVICE_UNAVAILABLE"
	ServerGatewayTimeout     Code = "SERVER_GATEWAY_TIMEOUT"
	ServerMaintenance        Code = "SERVER_MAINTENANCE"

	// Client
	ClientInvalidRequest       Code = "CLIENT_INVALID_REQUEST"
	ClientMalformedData        Code = "CLIENT_MALFORMED_DATA"
	ClientBrowserCompatibility Code = "CLIENT_BROWSER_COMPATIBILITY"

	// Validation
	ValidationRequiredField Code = "VALIDATION_REQUIRED_FIELD"
	ValidationInvalidFormat Code = "VALIDATION_INVALID_FORMAT"
	ValidationMinLength     Code = "VALIDATION_MIN_LENGTH"
	ValidationMaxLength     Code = "VALIDATION_MAX_LENGTH"
	ValidationInvalidEmail  Code = "VALIDATION_INVALID_EMAIL"
	ValidationInvalidPhone  Code = "VALIDATION_INVALID_PHONE"

	// Business
	BusinessInsufficientBalance Code = "BUSINESS_INSUFFICIENT_BALANCE"
	BusinessCampaignExpired     Code = "BUSINESS_CAMPAIGN_EXPIRED"
	BusinessLimitExceeded       Code = "BUSINESS_LIMIT_EXCEEDED"
	BusinessInvalidStatus       Code = "BUSINESS_INVALID_STATUS"

	// System — the universal fallback. Classification is total: anything we
	// cannot place lands here rather than producing a secondary error.
	SystemUnknownError Code = "SYSTEM_UNKNOWN_ERROR"
)

// Category is the coarse grouping derived from a code's namespace prefix.
type Category string

const (
	CategoryNetwork    Category = "NETWORK"
	CategoryAuth       Category = "AUTH"
	CategoryPermission Category = "PERMISSION"
	CategoryPayment    Category = "PAYMENT"
	CategoryFileUpload Category = "FILE_UPLOAD"
	CategoryDatabase   Category = "DATABASE"
	CategoryServer     Category = "SERVER"
	CategoryClient     Category = "CLIENT"
	CategoryValidation Category = "VALIDATION"
	CategoryBusiness   Category = "BUSINESS"
	CategorySystem     Category = "SYSTEM"
)

// prefixCategories is evaluated in order; first match wins. Unmatched
// prefixes fall into CategorySystem.
var prefixCategories = []struct {
	prefix   string
	category Category
}{
	{"NETWORK_", CategoryNetwork},
	{"AUTH_", CategoryAuth},
	{"PERMISSION_", CategoryPermission},
	{"PAYMENT_", CategoryPayment},
	{"FILE_", CategoryFileUpload},
	{"DB_", CategoryDatabase},
	{"SERVER_", CategoryServer},
	{"CLIENT_", CategoryClient},
	{"VALIDATION_", CategoryValidation},
	{"BUSINESS_", CategoryBusiness},
}

// CategoryOf maps a code to its category by namespace prefix.
func CategoryOf(code Code) Category {
	for _, pc := range prefixCategories {
		if strings.HasPrefix(string(code), pc.prefix) {
			return pc.category
		}
	}
	return CategorySystem
}

// Severity orders faults by operational impact. The numeric values are only
// used for ordering comparisons (MinLogLevel, notification thresholds).
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "MEDIUM"
	}
}

// ParseSeverity maps the wire/label form back to a Severity.
// Unknown labels resolve to MEDIUM, matching SeverityOf's default.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "LOW":
		return SeverityLow
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

var criticalCodes = map[Code]struct{}{
	ServerInternalError: {},
	DBConnectionFailed:  {},
	SystemUnknownError:  {},
}

var highCodes = map[Code]struct{}{
	AuthTokenExpired:         {},
	PermissionDenied:         {},
	PaymentProcessingFailed:  {},
	ServerServiceUnavailable: {},
}

var lowCodes = map[Code]struct{}{
	ValidationRequiredField: {},
	ValidationInvalidFormat: {},
	FileInvalidType:         {},
}

// SeverityOf classifies a code via the fixed membership sets.
// Codes in no set default to MEDIUM.
func SeverityOf(code Code) Severity {
	if _, ok := criticalCodes[code]; ok {
		return SeverityCritical
	}
	if _, ok := highCodes[code]; ok {
		return SeverityHigh
	}
	if _, ok := lowCodes[code]; ok {
		return SeverityLow
	}
	return SeverityMedium
}

var retryableCodes = map[Code]struct{}{
	NetworkConnectionFailed:  {},
	NetworkTimeout:           {},
	ServerInternalError:      {},
	ServerServiceUnavailable: {},
	ServerGatewayTimeout:     {},
	DBConnectionFailed:       {},
	FileUploadFailed:         {},
}

var nonRecoverableCodes = map[Code]struct{}{
	PermissionDenied:      {},
	AuthAccountLocked:     {},
	PaymentCardDeclined:   {},
	FileInvalidType:       {},
	DBConstraintViolation: {},
}

// Retryable reports whether an operation failing with this code may be
// safely re-attempted.
func Retryable(code Code) bool {
	_, ok := retryableCodes[code]
	return ok
}

// Recoverable reports whether the user has any path forward after this code.
func Recoverable(code Code) bool {
	_, ok := nonRecoverableCodes[code]
	return !ok
}

// RetryableCodes returns the default retryable set as a fresh map so policy
// instances can extend their copy without touching the shared table.
func RetryableCodes() map[Code]struct{} {
	out := make(map[Code]struct{}, len(retryableCodes))
	for c := range retryableCodes {
		out[c] = struct{}{}
	}
	return out
}
