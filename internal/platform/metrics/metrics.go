package metrics

import (
	"context"
	"net/http"

	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "generation_router"

// Backend attempt latencies range from local models answering in tens of
// milliseconds to hosted models taking most of a minute.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Collector records router activity as Prometheus metrics. It implements
// router.Observer.
type Collector struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	generations     *prometheus.CounterVec
	fallbacks       prometheus.Counter
}

// BackendSource lists the live backends. It is read on every scrape so the
// latency gauge follows registry reloads.
type BackendSource func() []llm.Backend

// NewCollector registers all metrics on a private registry together with the
// Go runtime and process collectors.
func NewCollector(backends BackendSource) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Backend attempts by outcome.",
		}, []string{"backend", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of individual backend attempts.",
			Buckets:   latencyBuckets,
		}, []string{"backend"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed backend attempts by error kind.",
		}, []string{"backend", "kind"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Routed generation requests by strategy and final status.",
		}, []string{"strategy", "status"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Times the router moved on to the next candidate backend.",
		}),
	}

	reg.MustRegister(
		c.attempts,
		c.attemptDuration,
		c.backendErrors,
		c.generations,
		c.fallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if backends != nil {
		reg.MustRegister(&latencyCollector{backends: backends})
	}
	return c
}

func (c *Collector) AttemptFinished(_ context.Context, a router.Attempt) {
	backend := string(a.Backend)
	c.attemptDuration.WithLabelValues(backend).Observe(a.Latency.Seconds())

	if a.Err == nil {
		c.attempts.WithLabelValues(backend, "success").Inc()
		return
	}
	c.attempts.WithLabelValues(backend, "failure").Inc()
	c.backendErrors.WithLabelValues(backend, string(llm.Classify(a.Err))).Inc()
}

func (c *Collector) GenerationFinished(_ context.Context, g router.Generation) {
	strategy := string(g.Strategy)
	if g.Forced {
		strategy = "forced"
	}
	status := "success"
	if g.Err != nil {
		status = "error"
	}
	c.generations.WithLabelValues(strategy, status).Inc()
	c.fallbacks.Add(float64(g.Fallbacks()))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

var averageLatencyDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "backend_average_latency_seconds"),
	"Rolling average latency of successful attempts. Backends without history are omitted.",
	[]string{"backend"}, nil,
)

// latencyCollector reports each backend's rolling average at scrape time.
type latencyCollector struct {
	backends BackendSource
}

func (l *latencyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- averageLatencyDesc
}

func (l *latencyCollector) Collect(ch chan<- prometheus.Metric) {
	for _, b := range l.backends() {
		avg := b.AverageLatency()
		if avg == tracker.UnknownLatency {
			continue
		}
		ch <- prometheus.MustNewConstMetric(averageLatencyDesc, prometheus.GaugeValue, avg.Seconds(), string(b.ID()))
	}
}
