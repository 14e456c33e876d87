package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

const namespace = "fleetdocs"

// Metrics holds the service collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	calculations     *prometheus.CounterVec
	upcomingByStatus *prometheus.GaugeVec
	ingestedRows     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "survey",
			Name:      "calculations_total",
			Help:      "Date calculations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		upcomingByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "survey",
			Name:      "upcoming",
			Help:      "Certificates in the last computed worklist by status.",
		}, []string{"company", "status"}),
		ingestedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Imported register rows by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Worklist cache lookups by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.calculations,
		m.upcomingByStatus,
		m.ingestedRows,
		m.cacheLookups,
		m.jobRuns,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Calculation counts one anniversary, docking or survey computation.
// outcome is "ok", "insufficient_data" or "error".
func (m *Metrics) Calculation(kind, outcome string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(kind, outcome).Inc()
}

// SetUpcoming publishes the status breakdown of a company worklist.
func (m *Metrics) SetUpcoming(companyID string, list *domain.UpcomingSurveys) {
	if m == nil || list == nil {
		return
	}
	counts := map[string]int{
		domain.StatusOverdue:  0,
		domain.StatusCritical: 0,
		domain.StatusDueSoon:  0,
		domain.StatusValid:    0,
	}
	for _, e := range list.Entries {
		counts[e.Status]++
	}
	for status, n := range counts {
		m.upcomingByStatus.WithLabelValues(companyID, status).Set(float64(n))
	}
}

func (m *Metrics) IngestedRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestedRows.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}
