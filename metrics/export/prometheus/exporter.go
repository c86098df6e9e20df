package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
)

// Source is what the exporter reads. *goAuthClient.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
	Snapshot() goAuthClient.SessionSnapshot
}

// PrometheusExporter renders a Source on demand.
type PrometheusExporter struct {
	source Source
}

// NewPrometheusExporter creates an exporter reading from engine.
func NewPrometheusExporter(engine *goAuthClient.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter from any Source, such
// as a test fake.
func NewPrometheusExporterFromSource(source Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render's output.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)
	writeSession(&b, internaldefs.SessionGaugeOf(p.source.Snapshot()))

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return b.String()
	}

	for _, fam := range internaldefs.CounterFamilies {
		header(&b, fam.Name, fam.Help, "counter")
		for _, s := range fam.Series {
			sample(&b, fam.Name, fam.Label, s.Value, snapshot.Counters[s.ID])
		}
	}

	fam := internaldefs.LatencyFamily
	header(&b, fam.Name, fam.Help, "histogram")
	for _, s := range fam.Series {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[s.ID]))
		for i, le := range internaldefs.HistogramBounds {
			b.WriteString(fam.Name)
			b.WriteString("_bucket{")
			b.WriteString(fam.Label)
			b.WriteString("=\"")
			b.WriteString(s.Value)
			b.WriteString("\",le=\"")
			b.WriteString(le)
			b.WriteString("\"} ")
			b.WriteString(strconv.FormatUint(cumulative[i], 10))
			b.WriteByte('\n')
		}
		sample(&b, fam.Name+"_count", fam.Label, s.Value, cumulative[len(cumulative)-1])
		// Snapshots carry no sum.
		sample(&b, fam.Name+"_sum", fam.Label, s.Value, 0)
	}

	header(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	sample(&b, internaldefs.AuditDroppedName, "", "", dropped)

	return b.String()
}

func writeSession(b *strings.Builder, g internaldefs.SessionGauge) {
	header(b, internaldefs.SessionAuthenticatedName, internaldefs.SessionAuthenticatedHelp, "gauge")
	sample(b, internaldefs.SessionAuthenticatedName, "", "", g.Authenticated)

	header(b, internaldefs.SessionVersionName, internaldefs.SessionVersionHelp, "gauge")
	sample(b, internaldefs.SessionVersionName, "", "", g.Version)

	header(b, internaldefs.SessionStateName, internaldefs.SessionStateHelp, "gauge")
	for _, st := range internaldefs.SessionStates {
		var v uint64
		if st == g.State {
			v = 1
		}
		sample(b, internaldefs.SessionStateName, internaldefs.SessionStateLabel, st.String(), v)
	}
}

func header(b *strings.Builder, name, help, kind string) {
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

func sample(b *strings.Builder, name, label, value string, v uint64) {
	b.WriteString(name)
	if label != "" {
		b.WriteByte('{')
		b.WriteString(label)
		b.WriteString("=\"")
		b.WriteString(value)
		b.WriteString("\"}")
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
