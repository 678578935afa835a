package prometheus

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/swahilipot/hubauth"
	"github.com/swahilipot/hubauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() hubauth.MetricsSnapshot
	AuditDropped() uint64
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithConstLabels attaches the same labels to every sample, for example
// the instance name when several servers share one scrape job.
func WithConstLabels(labels map[string]string) Option {
	return func(e *Exporter) {
		e.labels = formatLabels(labels)
	}
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
	labels string
}

// NewExporter reads from engine on every scrape.
func NewExporter(engine *hubauth.Engine, opts ...Option) *Exporter {
	return NewExporterFromSource(engine, opts...)
}

// NewExporterFromSource reads from any snapshot source.
func NewExporterFromSource(source metricsSource, opts ...Option) *Exporter {
	e := &Exporter{source: source}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text. It is empty when metrics are
// disabled and nothing was dropped.
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
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		p.writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		p.writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	p.writeCounter(&b, "hubauth_audit_dropped_total", "Audit events dropped because the dispatcher buffer was full.", dropped)

	return b.String()
}

func (p *Exporter) writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func (p *Exporter) writeCounter(b *strings.Builder, name, help string, value uint64) {
	p.writeHeader(b, name, help, "counter")
	b.WriteString(name)
	if p.labels != "" {
		b.WriteByte('{')
		b.WriteString(p.labels)
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func (p *Exporter) writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	p.writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{")
		if p.labels != "" {
			b.WriteString(p.labels)
			b.WriteByte(',')
		}
		b.WriteString("le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	suffix := " "
	if p.labels != "" {
		suffix = "{" + p.labels + "} "
	}
	b.WriteString(name)
	b.WriteString("_count")
	b.WriteString(suffix)
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// Snapshots carry bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum")
	b.WriteString(suffix)
	b.WriteString("0\n")
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"=\""+escapeLabel(labels[k])+"\"")
	}
	return strings.Join(parts, ",")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}
