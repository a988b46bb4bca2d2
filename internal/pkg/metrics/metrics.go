package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ideaflow"

// Collector owns a private registry so tests can build as many as they like.
// All record methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CompletionRequests *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	CompletionTokens   *prometheus.CounterVec

	DialogueTurns  *prometheus.CounterVec
	QuotaDecisions *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CompletionRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_requests_total",
				Help:      "Completion backend calls by outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		CompletionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Completion backend latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider"},
		),
		CompletionTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_tokens_total",
				Help:      "Tokens reported or estimated for completions",
			},
			[]string{"provider"},
		),
		DialogueTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dialogue_turns_total",
				Help:      "Clarification turns by outcome",
			},
			[]string{"outcome"},
		),
		QuotaDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_decisions_total",
				Help:      "Usage governor decisions",
			},
			[]string{"decision"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CompletionRequests,
		c.CompletionDuration,
		c.CompletionTokens,
		c.DialogueTurns,
		c.QuotaDecisions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveCompletion(provider, model, outcome string, d time.Duration, tokens int) {
	if c == nil {
		return
	}
	c.CompletionRequests.WithLabelValues(provider, model, outcome).Inc()
	c.CompletionDuration.WithLabelValues(provider).Observe(d.Seconds())
	if tokens > 0 {
		c.CompletionTokens.WithLabelValues(provider).Add(float64(tokens))
	}
}

func (c *Collector) ObserveDialogue(outcome string) {
	if c == nil {
		return
	}
	c.DialogueTurns.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveQuota(decision string) {
	if c == nil {
		return
	}
	c.QuotaDecisions.WithLabelValues(decision).Inc()
}
