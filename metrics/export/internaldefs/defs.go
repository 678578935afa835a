package internaldefs

import (
	"github.com/swahilipot/hubauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   hubauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   hubauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: hubauth.MetricSignupSuccess, Name: "hubauth_signup_success_total", Help: "Successful signups."},
	{ID: hubauth.MetricSignupDuplicate, Name: "hubauth_signup_duplicate_total", Help: "Signups rejected because the email is registered."},
	{ID: hubauth.MetricSignupReserved, Name: "hubauth_signup_reserved_total", Help: "Signups rejected for a reserved email."},
	{ID: hubauth.MetricLoginSuccess, Name: "hubauth_login_success_total", Help: "Completed logins."},
	{ID: hubauth.MetricLoginFailure, Name: "hubauth_login_failure_total", Help: "Failed login attempts."},
	{ID: hubauth.MetricLoginLocked, Name: "hubauth_login_locked_total", Help: "Login attempts rejected for a locked account."},
	{ID: hubauth.MetricAccountLocked, Name: "hubauth_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: hubauth.MetricRateLimitHit, Name: "hubauth_rate_limit_hit_total", Help: "Requests denied by an upstream rate limit."},
	{ID: hubauth.MetricRefreshSuccess, Name: "hubauth_refresh_success_total", Help: "Successful token refreshes."},
	{ID: hubauth.MetricRefreshInvalid, Name: "hubauth_refresh_invalid_total", Help: "Refreshes rejected as invalid."},
	{ID: hubauth.MetricRefreshExpired, Name: "hubauth_refresh_expired_total", Help: "Refreshes rejected as expired."},
	{ID: hubauth.MetricEmailVerificationSuccess, Name: "hubauth_email_verification_success_total", Help: "Successful email verifications."},
	{ID: hubauth.MetricEmailVerificationFailure, Name: "hubauth_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: hubauth.MetricVerificationResent, Name: "hubauth_verification_resent_total", Help: "Verification emails resent."},
	{ID: hubauth.MetricPasswordResetRequest, Name: "hubauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: hubauth.MetricPasswordResetSuccess, Name: "hubauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: hubauth.MetricPasswordResetFailure, Name: "hubauth_password_reset_failure_total", Help: "Password resets rejected for an invalid token."},
	{ID: hubauth.MetricTOTPRequired, Name: "hubauth_totp_required_total", Help: "Logins that required a second factor."},
	{ID: hubauth.MetricTOTPSuccess, Name: "hubauth_totp_success_total", Help: "Successful second-factor verifications."},
	{ID: hubauth.MetricTOTPFailure, Name: "hubauth_totp_failure_total", Help: "Failed second-factor verifications."},
	{ID: hubauth.MetricTOTPRateLimited, Name: "hubauth_totp_rate_limited_total", Help: "Second-factor attempts throttled per account."},
	{ID: hubauth.MetricTOTPReplay, Name: "hubauth_totp_replay_total", Help: "Second-factor codes rejected as replays."},
	{ID: hubauth.MetricTOTPEnabled, Name: "hubauth_totp_enabled_total", Help: "Accounts that enabled TOTP."},
	{ID: hubauth.MetricTOTPDisabled, Name: "hubauth_totp_disabled_total", Help: "Accounts that disabled TOTP."},
	{ID: hubauth.MetricSessionCreated, Name: "hubauth_session_created_total", Help: "Created sessions."},
	{ID: hubauth.MetricSessionRevoked, Name: "hubauth_session_revoked_total", Help: "Revoked sessions."},
	{ID: hubauth.MetricSessionRevokedAll, Name: "hubauth_session_revoked_all_total", Help: "Revoke-all operations."},
	{ID: hubauth.MetricSessionPurged, Name: "hubauth_session_purged_total", Help: "Expired or revoked sessions deleted."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: hubauth.MetricValidateLatency, Name: "hubauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets in
// seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
