package prometheus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	edgetill "github.com/edgetill/edgetill"
	"github.com/edgetill/edgetill/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() edgetill.MetricsSnapshot
	AuditDropped() uint64
	DeviceID() string
	QueueDepths(ctx context.Context) (edgetill.QueueDepths, error)
}

// PrometheusExporter renders engine metrics in the Prometheus text
// exposition format. Every series carries a device label so scrapes from
// a fleet of tills stay distinguishable behind one gateway.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter reading from the engine.
func NewPrometheusExporter(engine *edgetill.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter from a custom
// snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves the metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = io.WriteString(w, p.Render(r.Context()))
	})
}

// Render writes the current metrics in Prometheus text exposition
// format: the engine counters, the validation latency histogram, a
// queue-depth gauge per sync state, and the audit drop counter.
func (p *PrometheusExporter) Render(ctx context.Context) string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	device := p.source.DeviceID()

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		header(&b, def.Name, def.Help, "counter")
		fmt.Fprintf(&b, "%s%s %d\n", def.Name, labels(device), snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		header(&b, def.Name, def.Help, "histogram")
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		for i, le := range internaldefs.HistogramBounds {
			fmt.Fprintf(&b, "%s_bucket%s %d\n", def.Name, labels(device, "le", le), buckets[i])
		}
		count := buckets[len(buckets)-1]
		fmt.Fprintf(&b, "%s_count%s %d\n", def.Name, labels(device), count)
		// Sum is not tracked by the engine's fixed-bucket histogram; a
		// stable zero keeps scrapers that expect the field happy.
		fmt.Fprintf(&b, "%s_sum%s 0\n", def.Name, labels(device))
	}

	// Depths come from the durable store rather than the counters, so a
	// scrape sees the queue as it is, not as it has been.
	if depths, err := p.source.QueueDepths(ctx); err == nil {
		header(&b, "edgetill_queue_depth", "Queue items per sync state.", "gauge")
		for _, row := range []struct {
			state string
			n     uint64
		}{
			{"pending", depths.Pending},
			{"syncing", depths.Syncing},
			{"failed", depths.Failed},
			{"completed", depths.Completed},
		} {
			fmt.Fprintf(&b, "edgetill_queue_depth%s %d\n", labels(device, "state", row.state), row.n)
		}
	}

	header(&b, "edgetill_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", "counter")
	fmt.Fprintf(&b, "edgetill_audit_dropped_total%s %d\n", labels(device), dropped)

	return b.String()
}

func header(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, escapeHelp(help))
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
}

// labels renders the label set for one series: the device label plus an
// optional extra key/value pair. An empty device ID is omitted.
func labels(device string, extra ...string) string {
	var parts []string
	if device != "" {
		parts = append(parts, `device="`+escapeLabel(device)+`"`)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		parts = append(parts, extra[i]+`="`+escapeLabel(extra[i+1])+`"`)
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, `"`, `\"`)
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
