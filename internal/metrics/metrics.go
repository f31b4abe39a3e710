// Package metrics exposes Prometheus metrics and rolling parse latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/hl7lens/internal/selection"
)

const namespace = "hl7lens"

var depthLabels = [selection.MaxDepth + 1]string{"none", "segment", "field", "repetition", "component", "subcomponent"}

// Registry owns a private Prometheus registry with the service metrics.
type Registry struct {
	registry *prometheus.Registry
	latency  *LatencyStats

	ParsesTotal      *prometheus.CounterVec
	ParseDuration    prometheus.Histogram
	MessageSegments  prometheus.Histogram
	SelectionsTotal  *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	ExtractionsTotal *prometheus.CounterVec
}

func New(latencyWindow time.Duration) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		latency:  NewLatencyStats(latencyWindow),

		ParsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "messages_total",
				Help:      "Messages parsed, by outcome",
			},
			[]string{"outcome"},
		),
		ParseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "duration_seconds",
				Help:      "Time to parse one message",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		MessageSegments: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "segments",
				Help:      "Segments per parsed message",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		SelectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "selection",
				Name:      "changes_total",
				Help:      "Selection changes, by depth of the selected path",
			},
			[]string{"depth"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active",
				Help:      "Inspection sessions currently held",
			},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "extractions_total",
				Help:      "Uploaded documents scanned for messages, by extension and outcome",
			},
			[]string{"extension", "outcome"},
		),
	}

	r.registry.MustRegister(
		r.ParsesTotal,
		r.ParseDuration,
		r.MessageSegments,
		r.SelectionsTotal,
		r.ActiveSessions,
		r.ExtractionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Latency returns the rolling parse latency window.
func (r *Registry) Latency() *LatencyStats {
	return r.latency
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (r *Registry) ObserveParse(d time.Duration, segments int, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "invalid"
	}
	r.ParsesTotal.WithLabelValues(outcome).Inc()
	r.ParseDuration.Observe(d.Seconds())
	r.MessageSegments.Observe(float64(segments))
	r.latency.Record(d)
}

func (r *Registry) ObserveSelection(sel selection.Selection) {
	depth := 0
	if p, ok := sel.Path(); ok {
		depth = p.Depth()
	}
	r.SelectionsTotal.WithLabelValues(depthLabels[depth]).Inc()
}

func (r *Registry) SetSessions(n int) {
	r.ActiveSessions.Set(float64(n))
}

func (r *Registry) ObserveExtraction(ext string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.ExtractionsTotal.WithLabelValues(ext, outcome).Inc()
}
