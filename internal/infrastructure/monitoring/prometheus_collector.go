package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"streamgate/internal/core/domain"
)

type PrometheusCollector struct {
	grantsTotal     *prometheus.CounterVec
	grantDuration   prometheus.Histogram
	cdnCallsTotal   *prometheus.CounterVec
	cdnCallDuration *prometheus.HistogramVec
	cdnDeleteFails  prometheus.Counter
	signerMode      *prometheus.GaugeVec
	signerReady     prometheus.Gauge
	sweptTotal      prometheus.Counter
}

// NewPrometheusCollector registers the service metrics on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		grantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_access_grants_total",
			Help: "Playback access requests by outcome",
		}, []string{"outcome"}),

		grantDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamgate_access_grant_duration_seconds",
			Help:    "Time to authorize and sign one playback access request",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		cdnCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_cdn_calls_total",
			Help: "CDN management API calls by provider, operation and outcome",
		}, []string{"provider", "operation", "outcome"}),

		cdnCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streamgate_cdn_call_duration_seconds",
			Help:    "Duration of CDN management API calls including retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"provider", "operation"}),

		cdnDeleteFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_cdn_delete_failures_total",
			Help: "CDN video deletions that failed and may have left an orphaned object",
		}),

		signerMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamgate_signer_mode",
			Help: "Active playback signing mode (1 for the active mode)",
		}, []string{"mode"}),

		signerReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamgate_signer_ready",
			Help: "1 when the signer can issue grants",
		}),

		sweptTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_enrollments_swept_total",
			Help: "Expired enrollments removed by the sweeper",
		}),
	}
}

func (p *PrometheusCollector) ObserveGrant(outcome string, duration time.Duration) {
	p.grantsTotal.WithLabelValues(outcome).Inc()
	p.grantDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) ObserveCDNCall(provider, operation, outcome string, duration time.Duration) {
	p.cdnCallsTotal.WithLabelValues(provider, operation, outcome).Inc()
	p.cdnCallDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	if operation == "delete_video" && outcome != "ok" && outcome != "not_found" {
		p.cdnDeleteFails.Inc()
	}
}

// SetSigner publishes the signer's mode and readiness.
func (p *PrometheusCollector) SetSigner(mode domain.SigningMode, ready bool) {
	for _, m := range []domain.SigningMode{domain.SigningModeHash, domain.SigningModeJWT, domain.SigningModeUnsigned} {
		value := 0.0
		if m == mode {
			value = 1
		}
		p.signerMode.WithLabelValues(string(m)).Set(value)
	}
	if ready {
		p.signerReady.Set(1)
	} else {
		p.signerReady.Set(0)
	}
}

func (p *PrometheusCollector) RecordEnrollmentsSwept(n int64) {
	p.sweptTotal.Add(float64(n))
}
