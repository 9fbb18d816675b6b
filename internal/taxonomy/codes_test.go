package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{NetworkTimeout, CategoryNetwork},
		{AuthTokenExpired, CategoryAuth},
		{PermissionDenied, CategoryPermission},
		{PaymentCardDeclined, CategoryPayment},
		{FileTooLarge, CategoryFileUpload},
		{DBQueryError, CategoryDatabase},
		{ServerMaintenance, CategoryServer},
		{ClientMalformedData, CategoryClient},
		{ValidationInvalidEmail, CategoryValidation},
		{BusinessLimitExceeded, CategoryBusiness},
		{SystemUnknownError, CategorySystem},
		{Code("BOGUS_CODE"), CategorySystem},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CategoryOf(tt.code), "code %s", tt.code)
	}
}

func TestSeverityOf(t *testing.T) {
	require.Equal(t, SeverityCritical, SeverityOf(ServerInternalError))
	require.Equal(t, SeverityCritical, SeverityOf(DBConnectionFailed))
	require.Equal(t, SeverityCritical, SeverityOf(SystemUnknownError))
	require.Equal(t, SeverityHigh, SeverityOf(AuthTokenExpired))
	require.Equal(t, SeverityHigh, SeverityOf(PermissionDenied))
	require.Equal(t, SeverityLow, SeverityOf(ValidationRequiredField))
	require.Equal(t, SeverityLow, SeverityOf(FileInvalidType))
	// Everything else defaults to MEDIUM.
	require.Equal(t, SeverityMedium, SeverityOf(NetworkTimeout))
	require.Equal(t, SeverityMedium, SeverityOf(Code("BOGUS_CODE")))
}

func TestSeverityOrderingAndLabels(t *testing.T) {
	require.True(t, SeverityLow < SeverityMedium)
	require.True(t, SeverityMedium < SeverityHigh)
	require.True(t, SeverityHigh < SeverityCritical)

	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		require.Equal(t, s, ParseSeverity(s.String()))
	}
	require.Equal(t, SeverityMedium, ParseSeverity("nonsense"))
}

func TestRetryableAndRecoverable(t *testing.T) {
	for c := range RetryableCodes() {
		require.True(t, Retryable(c), "code %s", c)
	}
	require.False(t, Retryable(PaymentCardDeclined))
	require.False(t, Retryable(SystemUnknownError))

	require.False(t, Recoverable(PermissionDenied))
	require.False(t, Recoverable(DBConstraintViolation))
	require.True(t, Recoverable(NetworkTimeout))
	require.True(t, Recoverable(SystemUnknownError))
}

func TestRetryableCodesReturnsCopy(t *testing.T) {
	set := RetryableCodes()
	set[PaymentCardDeclined] = struct{}{}
	require.False(t, Retryable(PaymentCardDeclined))
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Code
	}{
		{400, ClientInvalidRequest},
		{401, AuthTokenExpired},
		{403, PermissionDenied},
		{404, DBRecordNotFound},
		{408, NetworkTimeout},
		{409, DBDuplicateEntry},
		{422, ValidationInvalidFormat},
		{429, BusinessLimitExceeded},
		{500, ServerInternalError},
		{502, NetworkConnectionFailed},
		{503, ServerServiceUnavailable},
		{504, ServerGatewayTimeout},
	}
	for _, tt := range tests {
		got, ok := FromHTTPStatus(tt.status)
		require.True(t, ok, "status %d", tt.status)
		require.Equal(t, tt.want, got)
		// Category and severity stay consistent with the fixed tables.
		require.Equal(t, CategoryOf(tt.want), CategoryOf(got))
		require.Equal(t, SeverityOf(tt.want), SeverityOf(got))
	}

	_, ok := FromHTTPStatus(418)
	require.False(t, ok)
	_, ok = FromHTTPStatus(200)
	require.False(t, ok)
}

func TestFromBackendCode(t *testing.T) {
	got, ok := FromBackendCode("PGRST116")
	require.True(t, ok)
	require.Equal(t, DBRecordNotFound, got)

	got, ok = FromBackendCode("23505")
	require.True(t, ok)
	require.Equal(t, DBDuplicateEntry, got)

	_, ok = FromBackendCode("nope")
	require.False(t, ok)
}

func TestUserMessageIsTotal(t *testing.T) {
	require.NotEmpty(t, UserMessage(NetworkTimeout))
	// Unknown codes still resolve to the unknown-error message.
	require.Equal(t, UserMessage(SystemUnknownError), UserMessage(Code("BOGUS_CODE")))
}
