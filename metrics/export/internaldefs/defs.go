package internaldefs

import (
	"github.com/OmorFaruk63/blogauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   blogauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   blogauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "blogauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: blogauth.MetricLoginSuccess, Name: "blogauth_login_success_total", Help: "Successful logins."},
	{ID: blogauth.MetricLoginFailure, Name: "blogauth_login_failure_total", Help: "Logins rejected as invalid email or password."},
	{ID: blogauth.MetricLoginLocked, Name: "blogauth_login_locked_total", Help: "Logins rejected because the account is locked."},
	{ID: blogauth.MetricLoginUnverified, Name: "blogauth_login_unverified_total", Help: "Logins stopped at the email verification gate."},
	{ID: blogauth.MetricLockoutTriggered, Name: "blogauth_lockout_triggered_total", Help: "Failures that locked an account."},
	{ID: blogauth.MetricRateLimitHit, Name: "blogauth_rate_limit_hit_total", Help: "Rate-limit checks that denied a request."},
	{ID: blogauth.MetricSessionCreated, Name: "blogauth_session_created_total", Help: "Issued session tokens."},
	{ID: blogauth.MetricAccountCreationSuccess, Name: "blogauth_account_creation_success_total", Help: "Created accounts."},
	{ID: blogauth.MetricAccountCreationDuplicate, Name: "blogauth_account_creation_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: blogauth.MetricEmailVerificationRequest, Name: "blogauth_email_verification_request_total", Help: "Verification tokens issued."},
	{ID: blogauth.MetricEmailVerificationSuccess, Name: "blogauth_email_verification_success_total", Help: "Confirmed email addresses."},
	{ID: blogauth.MetricEmailVerificationFailure, Name: "blogauth_email_verification_failure_total", Help: "Rejected verification links."},
	{ID: blogauth.MetricEmailVerificationExpired, Name: "blogauth_email_verification_expired_total", Help: "Verification links presented after expiry."},
	{ID: blogauth.MetricPasswordResetRequest, Name: "blogauth_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: blogauth.MetricPasswordResetConfirmSuccess, Name: "blogauth_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: blogauth.MetricPasswordResetConfirmFailure, Name: "blogauth_password_reset_confirm_failure_total", Help: "Rejected password reset attempts."},
	{ID: blogauth.MetricEmailDeliveryFailure, Name: "blogauth_email_delivery_failure_total", Help: "Account emails that could not be sent."},
	{ID: blogauth.MetricFederatedSignIn, Name: "blogauth_federated_sign_in_total", Help: "Federated sign-ins."},
	{ID: blogauth.MetricFederatedLinked, Name: "blogauth_federated_linked_total", Help: "Federated identities linked to existing accounts."},
	{ID: blogauth.MetricFederatedAccountCreated, Name: "blogauth_federated_account_created_total", Help: "Accounts created from a federated profile."},
	{ID: blogauth.MetricFederatedRejected, Name: "blogauth_federated_rejected_total", Help: "Rejected federated sign-ins."},
	{ID: blogauth.MetricPasswordHashUpgraded, Name: "blogauth_password_hash_upgraded_total", Help: "Password hashes rehashed on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: blogauth.MetricLoginLatency, Name: "blogauth_login_latency_seconds", Help: "Credential check latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's fixed
// latency buckets.
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

// NormalizeBuckets copies raw into a fixed-size array, zero-filling when the
// histogram is disabled.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
