package taxonomy

// httpStatusCodes maps transport-level HTTP statuses to taxonomy codes.
// Statuses missing here (418, 451, ...) are the caller's cue to fall back
// to SystemUnknownError.
var httpStatusCodes = map[int]Code{
	400: ClientInvalidRequest,
	401: AuthTokenExpired,
	403: PermissionDenied,
	404: DBRecordNotFound,
	408: NetworkTimeout,
	409: DBDuplicateEntry,
	422: ValidationInvalidFormat,
	429: BusinessLimitExceeded,
	500: ServerInternalError,
	502: NetworkConnectionFailed,
	503: ServerServiceUnavailable,
	504: ServerGatewayTimeout,
}

// FromHTTPStatus looks up the taxonomy code for an HTTP status.
func FromHTTPStatus(status int) (Code, bool) {
	c, ok := httpStatusCodes[status]
	return c, ok
}

// backendCodes maps backend-client error identifiers (PostgREST error codes,
// Postgres SQLSTATE values, auth service error strings) to taxonomy codes.
var backendCodes = map[string]Code{
	"PGRST116":            DBRecordNotFound,
	"PGRST301":            PermissionDenied,
	"23505":               DBDuplicateEntry,
	"23503":               DBConstraintViolation,
	"invalid_grant":       AuthInvalidCredentials,
	"email_not_confirmed": AuthEmailNotVerified,
	"signup_disabled":     AuthAccountLocked,
	"weak_password":       AuthPasswordWeak,
}

// FromBackendCode looks up the taxonomy code for a backend error identifier.
func FromBackendCode(code string) (Code, bool) {
	c, ok := backendCodes[code]
	return c, ok
}

// userMessages holds the user-facing message per code. Developer messages
// are derived from the code itself; these are what the presentation layer
// shows untranslated.
var userMessages = map[Code]string{
	NetworkConnectionFailed: "Network connection failed. Please check your internet connection.",
	NetworkTimeout:          "The request timed out. Please try again.",
	NetworkOffline:          "You appear to be offline. Please check your connection.",
	NetworkDNSError:         "A DNS error occurred. Please try again shortly.",

	AuthTokenExpired:       "Your session has expired. Please sign in again.",
	AuthInvalidCredentials: "Incorrect email or password.",
	AuthUserNotFound:       "No account found for this user.",
	AuthEmailNotVerified:   "Email verification required. Please check your inbox.",
	AuthAccountLocked:      "This account is locked. Please contact support.",
	AuthPasswordWeak:       "This password is too weak. Please choose a stronger one.",

	PermissionDenied:       "You do not have permission to access this.",
	PermissionInsufficient: "Insufficient permissions. Please contact an administrator.",
	PermissionRoleRequired: "This feature requires a specific role.",

	PaymentCardDeclined:      "Your card was declined. Please try another card.",
	PaymentInsufficientFunds: "Insufficient funds.",
	PaymentInvalidCard:       "This card is not valid.",
	PaymentProcessingFailed:  "An error occurred while processing the payment.",
	PaymentGatewayError:      "Payment system error. Please try again shortly.",

	FileTooLarge:     "The file is too large. Please choose a smaller file.",
	FileInvalidType:  "This file type is not supported.",
	FileUploadFailed: "File upload failed. Please try again.",
	FileStorageFull:  "Storage is full.",

	DBConnectionFailed:    "Could not connect to the database.",
	DBQueryError:          "An error occurred while fetching data.",
	DBConstraintViolation: "The request violates a data constraint.",
	DBRecordNotFound:      "The requested data could not be found.",
	DBDuplicateEntry:      "This entry already exists.",

	ServerInternalError:      "An internal server error occurred. Please try again shortly.",
	ServerServiceUnavailable: "The service is temporarily unavailable.",
	ServerGatewayTimeout:     "The server took too long to respond.",
	ServerMaintenance:        "The service is under maintenance. Please try again later.",

	ClientInvalidRequest:       "Invalid request.",
	ClientMalformedData:        "The data format is not valid.",
	ClientBrowserCompatibility: "Your browser is not supported. Please use a recent browser.",

	ValidationRequiredField: "This field is required.",
	ValidationInvalidFormat: "The format is not valid.",
	ValidationMinLength:     "The value is shorter than the minimum length.",
	ValidationMaxLength:     "The value exceeds the maximum length.",
	ValidationInvalidEmail:  "Please enter a valid email address.",
	ValidationInvalidPhone:  "Please enter a valid phone number.",

	BusinessInsufficientBalance: "Your balance is insufficient.",
	BusinessCampaignExpired:     "This campaign has ended.",
	BusinessLimitExceeded:       "The limit has been exceeded.",
	BusinessInvalidStatus:       "This action is not allowed in the current state.",

	SystemUnknownError: "An unknown error occurred. If the problem persists, please contact support.",
}

// UserMessage returns the user-facing message for a code. Codes without an
// entry get the unknown-error message so callers always have something to show.
func UserMessage(code Code) string {
	if m, ok := userMessages[code]; ok {
		return m
	}
	return userMessages[SystemUnknownError]
}
