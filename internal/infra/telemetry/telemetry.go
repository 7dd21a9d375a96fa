package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/social-platform-revocation/internal/core/port"
)

// Provider exposes revocation metrics. Purely observational: no consumer of
// these counters may influence control flow.
type Provider struct {
	revocations   *prometheus.CounterVec
	checks        *prometheus.CounterVec
	tierHits      *prometheus.CounterVec
	tierFailures  *prometheus.CounterVec
	checkDuration prometheus.Histogram
	cleanupSweeps prometheus.Counter
}

// NewProvider registers revocation metrics on the supplied registerer,
// defaulting to the global one.
func NewProvider(reg prometheus.Registerer) *Provider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Provider{
		revocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revocation",
			Name:      "revocations_total",
			Help:      "Total number of accepted revocations by scope and reason",
		}, []string{"scope", "reason"}),
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revocation",
			Name:      "checks_total",
			Help:      "Total number of revocation checks by outcome",
		}, []string{"outcome"}),
		tierHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revocation",
			Name:      "tier_hits_total",
			Help:      "Revocation facts found per storage tier",
		}, []string{"tier"}),
		tierFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revocation",
			Name:      "tier_failures_total",
			Help:      "Tier reads or writes that failed or timed out",
		}, []string{"tier"}),
		checkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "revocation",
			Name:      "check_duration_seconds",
			Help:      "Latency of revocation checks across all tiers",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		cleanupSweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "revocation",
			Name:      "cleanup_removed_total",
			Help:      "Expired membership-tier entries removed by cleanup sweeps",
		}),
	}
}

// IncRevocation counts an accepted revocation.
func (p *Provider) IncRevocation(scope string, reason string) {
	p.revocations.WithLabelValues(scope, reason).Inc()
}

// IncCheck counts a completed check by outcome.
func (p *Provider) IncCheck(outcome string) {
	p.checks.WithLabelValues(outcome).Inc()
}

// IncTierHit counts a fact served by the named tier.
func (p *Provider) IncTierHit(tier string) {
	p.tierHits.WithLabelValues(tier).Inc()
}

// IncTierFailure counts a failed or timed-out tier access.
func (p *Provider) IncTierFailure(tier string) {
	p.tierFailures.WithLabelValues(tier).Inc()
}

// ObserveCheckDuration records end-to-end check latency.
func (p *Provider) ObserveCheckDuration(d time.Duration) {
	p.checkDuration.Observe(d.Seconds())
}

// AddCleanupRemoved records entries reclaimed by a sweep.
func (p *Provider) AddCleanupRemoved(count int) {
	if count > 0 {
		p.cleanupSweeps.Add(float64(count))
	}
}

var _ port.RevocationMetrics = (*Provider)(nil)
