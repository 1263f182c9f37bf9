package internaldefs

import (
	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/internal/metrics"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   gatekeeper.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   gatekeeper.MetricID
	Name string
	Help string
}

// AuditDropped is exported alongside the engine counters.
var AuditDropped = CounterDef{
	Name: "gatekeeper_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

var CounterDefs = []CounterDef{
	{ID: gatekeeper.MetricLoginSuccess, Name: "gatekeeper_login_success_total", Help: "Successful logins."},
	{ID: gatekeeper.MetricLoginFailure, Name: "gatekeeper_login_failure_total", Help: "Failed logins."},
	{ID: gatekeeper.MetricSessionCreated, Name: "gatekeeper_session_created_total", Help: "Sessions issued."},
	{ID: gatekeeper.MetricSessionValidated, Name: "gatekeeper_session_validated_total", Help: "Requests that passed session validation."},
	{ID: gatekeeper.MetricSessionRejected, Name: "gatekeeper_session_rejected_total", Help: "Requests rejected by session validation."},
	{ID: gatekeeper.MetricLogout, Name: "gatekeeper_logout_total", Help: "Single-session logouts."},
	{ID: gatekeeper.MetricLogoutAll, Name: "gatekeeper_logout_all_total", Help: "Logout-all operations."},
	{ID: gatekeeper.MetricSessionRevoked, Name: "gatekeeper_session_revoked_total", Help: "Out-of-band session revocations."},
	{ID: gatekeeper.MetricRefreshSuccess, Name: "gatekeeper_refresh_success_total", Help: "Successful session refreshes."},
	{ID: gatekeeper.MetricRefreshFailure, Name: "gatekeeper_refresh_failure_total", Help: "Failed session refreshes."},
	{ID: gatekeeper.MetricPermissionCheck, Name: "gatekeeper_permission_check_total", Help: "Authorization checks evaluated."},
	{ID: gatekeeper.MetricPermissionDenied, Name: "gatekeeper_permission_denied_total", Help: "Authorization checks that denied access."},
	{ID: gatekeeper.MetricCheckFailed, Name: "gatekeeper_check_failed_total", Help: "Checks aborted by a backing store error."},
	{ID: gatekeeper.MetricUserRegistered, Name: "gatekeeper_user_registered_total", Help: "Registered users."},
	{ID: gatekeeper.MetricUserDeactivated, Name: "gatekeeper_user_deactivated_total", Help: "Users deactivated."},
	{ID: gatekeeper.MetricEmailVerificationRequest, Name: "gatekeeper_email_verification_request_total", Help: "Email verification requests."},
	{ID: gatekeeper.MetricEmailVerificationSuccess, Name: "gatekeeper_email_verification_success_total", Help: "Completed email verifications."},
	{ID: gatekeeper.MetricEmailVerificationFailure, Name: "gatekeeper_email_verification_failure_total", Help: "Failed email verifications."},
}

var HistogramDefs = []HistogramDef{
	{ID: gatekeeper.MetricValidateLatency, Name: "gatekeeper_validate_latency_seconds", Help: "Session validation latency."},
}

// HistogramBoundSuffix names each bucket for exporters without native
// histogram labels.
var HistogramBoundSuffix = [metrics.BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [metrics.BucketCount]uint64 {
	var out [metrics.BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [metrics.BucketCount]uint64) [metrics.BucketCount]uint64 {
	var out [metrics.BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(metrics.BucketBounds))
	copy(out, metrics.BucketBounds[:])
	return out
}
