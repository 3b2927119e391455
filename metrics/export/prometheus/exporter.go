package prometheus

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *goSession.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source Source
}

// NewExporter returns an exporter reading from source.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the exposition text. It is empty when metrics are
// disabled on the engine.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}

	if raw, ok := snapshot.Histograms[internaldefs.LatencyDef.ID]; ok {
		writeHistogram(&b, internaldefs.LatencyDef,
			internaldefs.Cumulative(raw),
			snapshot.HistogramSum[internaldefs.LatencyDef.ID].Seconds())
	}

	writeCounter(&b, internaldefs.AuditDroppedName, "Audit events dropped under backpressure.", dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, def internaldefs.Def, cumulative [internaldefs.BucketCount]uint64, sumSeconds float64) {
	writeHeader(b, def.Name, def.Help, "histogram")

	for i, le := range internaldefs.BucketLabels() {
		b.WriteString(def.Name)
		b.WriteString(`_bucket{le="`)
		b.WriteString(le)
		b.WriteString(`"} `)
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(def.Name)
	b.WriteString("_sum ")
	b.WriteString(strconv.FormatFloat(sumSeconds, 'g', -1, 64))
	b.WriteByte('\n')

	b.WriteString(def.Name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[internaldefs.BucketCount-1], 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
