package internaldefs

import (
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Def names one exported series.
type Def struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []Def{
	{ID: goSession.MetricAccessIssued, Name: "gosession_access_issued_total", Help: "Opaque access tokens issued."},
	{ID: goSession.MetricRefreshIssued, Name: "gosession_refresh_issued_total", Help: "Opaque refresh tokens issued."},
	{ID: goSession.MetricResolveHit, Name: "gosession_resolve_hit_total", Help: "Opaque token lookups that found a record."},
	{ID: goSession.MetricResolveMiss, Name: "gosession_resolve_miss_total", Help: "Opaque token lookups that found nothing."},
	{ID: goSession.MetricStoreError, Name: "gosession_store_error_total", Help: "Token store operations that failed."},
	{ID: goSession.MetricDecodeError, Name: "gosession_decode_error_total", Help: "Stored records that could not be decoded."},
	{ID: goSession.MetricSignedTokenFallback, Name: "gosession_signed_fallback_total", Help: "Requests authenticated by the signed token fallback."},
	{ID: goSession.MetricAnonymousRequest, Name: "gosession_anonymous_request_total", Help: "Requests left anonymous by the authenticator."},
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful password logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed password logins."},
	{ID: goSession.MetricClientLoginSuccess, Name: "gosession_client_login_success_total", Help: "Successful client secret logins."},
	{ID: goSession.MetricClientLoginFailure, Name: "gosession_client_login_failure_total", Help: "Failed client secret logins."},
	{ID: goSession.MetricRateLimited, Name: "gosession_rate_limited_total", Help: "Operations denied by the rate limiter."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh token rotations."},
	{ID: goSession.MetricRefreshRestored, Name: "gosession_refresh_restored_total", Help: "Consumed refresh tokens restored after a failed rotation."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Successful registrations."},
	{ID: goSession.MetricRegisterFailure, Name: "gosession_register_failure_total", Help: "Failed registrations."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout operations."},
}

// LatencyDef is the authentication latency histogram.
var LatencyDef = Def{
	ID:   goSession.MetricAuthenticateLatency,
	Name: "gosession_authenticate_latency_seconds",
	Help: "Request authentication latency.",
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// BucketCount is the number of latency buckets including +Inf.
const BucketCount = len(goSession.HistogramBounds) + 1

// BucketLabels returns the le label of each bucket, in seconds.
func BucketLabels() [BucketCount]string {
	var out [BucketCount]string
	for i, bound := range goSession.HistogramBounds {
		out[i] = strconv.FormatFloat(bound.Seconds(), 'f', -1, 64)
	}
	out[BucketCount-1] = "+Inf"
	return out
}

// BucketSuffixes returns instrument-safe forms of BucketLabels.
func BucketSuffixes() [BucketCount]string {
	labels := BucketLabels()
	var out [BucketCount]string
	for i, l := range labels {
		if l == "+Inf" {
			out[i] = "inf"
			continue
		}
		out[i] = strings.ReplaceAll(l, ".", "_")
	}
	return out
}

// Cumulative converts per-bucket counts into cumulative counts. Missing
// buckets count as zero.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var (
		out     [BucketCount]uint64
		running uint64
	)
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
