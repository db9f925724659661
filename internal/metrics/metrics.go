package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors. Tests can gather from it directly.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sindh",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Status transitions by subject and outcome kind.",
		},
		[]string{"subject", "target", "result"},
	)

	versionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "lifecycle",
			Name:      "version_conflicts_total",
			Help:      "Optimistic updates that lost the compare-and-swap and were retried.",
		},
	)

	cascadeDeclined = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "cascade",
			Name:      "applications_total",
			Help:      "Sibling applications handled by the decline cascade.",
		},
		[]string{"result"},
	)

	ledgerPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "ledger",
			Name:      "postings_total",
			Help:      "Wallet entries posted by type.",
		},
		[]string{"type"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by result.",
		},
		[]string{"result"},
	)

	ledgerMismatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sindh",
			Subsystem: "ledger",
			Name:      "audit_mismatched_wallets",
			Help:      "Wallets whose balances disagreed with their entries in the last audit.",
		},
	)

	ledgerAudited = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sindh",
			Subsystem: "ledger",
			Name:      "audit_checked_wallets",
			Help:      "Wallets checked by the last audit.",
		},
	)

	ratings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sindh",
			Subsystem: "reputation",
			Name:      "ratings_total",
			Help:      "Accepted ratings.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		transitions,
		versionConflicts,
		cascadeDeclined,
		ledgerPostings,
		ledgerMismatches,
		ledgerAudited,
		notifications,
		ratings,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition counts a transition request. result is "ok", "noop" or an error kind.
func RecordTransition(subject, target, result string) {
	transitions.WithLabelValues(subject, target, result).Inc()
}

func RecordVersionConflict() { versionConflicts.Inc() }

func RecordCascade(declined int, failed bool) {
	if failed {
		cascadeDeclined.WithLabelValues("failed").Inc()
		return
	}
	cascadeDeclined.WithLabelValues("declined").Add(float64(declined))
}

func RecordPosting(entryType string) { ledgerPostings.WithLabelValues(entryType).Inc() }

// RecordLedgerAudit replaces the gauges with the outcome of the latest audit run.
func RecordLedgerAudit(checked, mismatched int) {
	ledgerAudited.Set(float64(checked))
	ledgerMismatches.Set(float64(mismatched))
}

func RecordNotification(ok bool) {
	if ok {
		notifications.WithLabelValues("delivered").Inc()
		return
	}
	notifications.WithLabelValues("failed").Inc()
}

func RecordRating() { ratings.Inc() }

// InstrumentHandler records request counts and latency keyed by the matched mux pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		} else if i := strings.IndexByte(route, ' '); i >= 0 {
			route = route[i+1:]
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
