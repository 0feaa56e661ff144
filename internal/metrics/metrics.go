package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/sessionauth/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Authentication metrics

	SignInsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sign_ins_total",
		Help:      "Sign-in attempts, by outcome.",
	}, []string{"outcome"})

	LockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "lockouts_total",
		Help:      "Accounts locked after too many failed attempts.",
	})

	UnlocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "unlocks_total",
		Help:      "Accounts unlocked, by mechanism.",
	}, []string{"via"})

	TokenRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "token_rejections_total",
		Help:      "Session tokens rejected during authentication, by reason.",
	}, []string{"reason"})

	// Session metrics

	SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sessions_created_total",
		Help:      "Sessions created.",
	})

	SessionsEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sessions_evicted_total",
		Help:      "Oldest sessions evicted because the per-user limit was reached.",
	})

	SessionsRevokedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sessions_revoked_total",
		Help:      "Sessions removed before expiry, by reason.",
	}, []string{"reason"})

	// Email metrics

	EmailsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "emails_sent_total",
		Help:      "Transactional emails, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// Sweeper metrics

	SweeperRemovedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sweeper_removed_total",
		Help:      "Rows cleaned up by the sweeper, by kind.",
	}, []string{"kind"})

	SweeperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "auth",
		Name:      "sweeper_cycle_duration_seconds",
		Help:      "Time taken for one sweeper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "auth",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route group.",
	}, []string{"group"})
)

func Register() {
	prometheus.MustRegister(
		SignInsTotal,
		LockoutsTotal,
		UnlocksTotal,
		TokenRejectionsTotal,
		SessionsCreatedTotal,
		SessionsEvictedTotal,
		SessionsRevokedTotal,
		EmailsSentTotal,
		SweeperRemovedTotal,
		SweeperCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
		RateLimitedTotal,
	)
}

// NewServer serves /metrics plus liveness and readiness probes backed by checker.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
