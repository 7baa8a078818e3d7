package internaldefs

import (
	edgetill "github.com/edgetill/edgetill"
)

// CounterDef binds one engine counter to its exposition name.
type CounterDef struct {
	ID   edgetill.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its exposition name.
type HistogramDef struct {
	ID   edgetill.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: edgetill.MetricLoginSuccess, Name: "edgetill_login_success_total", Help: "Successful login attempts."},
	{ID: edgetill.MetricLoginFailure, Name: "edgetill_login_failure_total", Help: "Failed login attempts."},
	{ID: edgetill.MetricLogout, Name: "edgetill_logout_total", Help: "Logout operations."},
	{ID: edgetill.MetricSessionValid, Name: "edgetill_session_valid_total", Help: "Session validations that passed."},
	{ID: edgetill.MetricSessionInvalid, Name: "edgetill_session_invalid_total", Help: "Session validations that failed."},
	{ID: edgetill.MetricRefreshSuccess, Name: "edgetill_refresh_success_total", Help: "Successful session refreshes."},
	{ID: edgetill.MetricRefreshFailure, Name: "edgetill_refresh_failure_total", Help: "Failed session refreshes."},
	{ID: edgetill.MetricRefreshSkippedOffline, Name: "edgetill_refresh_skipped_offline_total", Help: "Refresh attempts skipped while offline."},
	{ID: edgetill.MetricPermissionAllowed, Name: "edgetill_permission_allowed_total", Help: "Permission checks that allowed."},
	{ID: edgetill.MetricPermissionDenied, Name: "edgetill_permission_denied_total", Help: "Permission checks that denied."},
	{ID: edgetill.MetricAuthorityOverride, Name: "edgetill_authority_override_total", Help: "Remote authority denials that overrode a local allow."},
	{ID: edgetill.MetricAuthorityErrorSwallowed, Name: "edgetill_authority_error_swallowed_total", Help: "Authority errors where the local decision stood."},
	{ID: edgetill.MetricOnlineBlock, Name: "edgetill_online_block_total", Help: "Critical actions refused for lack of connectivity."},
	{ID: edgetill.MetricScanRecorded, Name: "edgetill_scan_recorded_total", Help: "Barcode scans recorded."},
	{ID: edgetill.MetricScanPlaceholder, Name: "edgetill_scan_placeholder_total", Help: "Scans that created a placeholder entry."},
	{ID: edgetill.MetricQueueEnqueued, Name: "edgetill_queue_enqueued_total", Help: "Mutations enqueued for reconciliation."},
	{ID: edgetill.MetricQueuePublished, Name: "edgetill_queue_published_total", Help: "Queue items published to the ledger."},
	{ID: edgetill.MetricQueueFailed, Name: "edgetill_queue_failed_total", Help: "Failed publish attempts."},
	{ID: edgetill.MetricQueueExhausted, Name: "edgetill_queue_exhausted_total", Help: "Queue items that hit their retry cap."},
	{ID: edgetill.MetricQueueRecovered, Name: "edgetill_queue_recovered_total", Help: "Interrupted items reverted to pending at startup."},
	{ID: edgetill.MetricSyncPass, Name: "edgetill_sync_pass_total", Help: "Reconciliation passes that processed items."},
}

var HistogramDefs = []HistogramDef{
	{ID: edgetill.MetricValidateLatency, Name: "edgetill_validate_latency_seconds", Help: "Session validation latency histogram."},
}

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

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
