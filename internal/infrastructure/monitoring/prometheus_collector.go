package monitoring

import (
	"context"
	"strconv"
	"time"

	"dealerhub/internal/core/ports"
	"dealerhub/pkg/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type PrometheusCollector struct {
	// Sessions
	loginsTotal           *prometheus.CounterVec
	sessionsClosedTotal   *prometheus.CounterVec
	sessionsRestoredTotal prometheus.Counter
	sessionsActive        prometheus.Gauge

	// Guard
	guardDecisionsTotal *prometheus.CounterVec
	rateLimitedTotal    *prometheus.CounterVec

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Backend
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	breakerState          *prometheus.GaugeVec
}

var (
	_ ports.SessionMetrics = (*PrometheusCollector)(nil)
	_ ports.GuardMetrics   = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers every metric with reg. main passes
// prometheus.DefaultRegisterer, tests a fresh registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),

		sessionsClosedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_sessions_closed_total",
			Help: "Sessions closed by reason",
		}, []string{"reason"}),

		sessionsRestoredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dealerhub_sessions_restored_total",
			Help: "Sessions rebuilt from a persisted token after a storage miss",
		}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dealerhub_sessions_active",
			Help: "Sessions currently stored and not expired",
		}),

		guardDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_guard_decisions_total",
			Help: "Route guard decisions by view, outcome and reason",
		}, []string{"view", "outcome", "reason"}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"limiter"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealerhub_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		upstreamRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealerhub_upstream_requests_total",
			Help: "Pass-through requests to the backend API by resource and status",
		}, []string{"resource", "status"}),

		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dealerhub_upstream_request_duration_seconds",
			Help:    "Backend API latency seen by the portal",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"resource"}),

		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dealerhub_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"breaker"}),
	}
}

func (p *PrometheusCollector) RecordLogin(outcome string) {
	p.loginsTotal.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordSessionClosed(reason string) {
	p.sessionsClosedTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordSessionRestored() {
	p.sessionsRestoredTotal.Inc()
}

func (p *PrometheusCollector) RecordDecision(view, outcome, reason string) {
	p.guardDecisionsTotal.WithLabelValues(view, outcome, reason).Inc()
}

func (p *PrometheusCollector) RecordRateLimited(limiter string) {
	p.rateLimitedTotal.WithLabelValues(limiter).Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordUpstream(resource string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	p.upstreamRequestsTotal.WithLabelValues(resource, label).Inc()
	p.upstreamDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordBreakerState(name string, state circuitbreaker.State) {
	p.breakerState.WithLabelValues(name).Set(float64(state))
}

func (p *PrometheusCollector) SetActiveSessions(n int) {
	p.sessionsActive.Set(float64(n))
}

// ReportActiveSessions refreshes the active sessions gauge every interval
// until ctx is done.
func (p *PrometheusCollector) ReportActiveSessions(ctx context.Context, repo ports.SessionRepository, interval time.Duration, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := repo.CountActive(ctx)
		if err != nil {
			logger.Warnw("failed to count active sessions", "error", err)
		} else {
			p.SetActiveSessions(n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
