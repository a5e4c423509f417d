package observability

import (
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	codesTotal      *prometheus.CounterVec
	discountsTotal  *prometheus.CounterVec
	truncations     *prometheus.CounterVec
	ledgerFailures  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boletopix_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boletopix_external_errors_total",
				Help: "Total errors from external stores.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boletopix_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boletopix_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		codesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pix_codes_total",
				Help: "Pix code generation attempts by outcome.",
			},
			[]string{"outcome"},
		),
		discountsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pix_discount_total",
				Help: "Discount evaluations by eligibility reason.",
			},
			[]string{"reason"},
		),
		truncations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pix_encoding_truncations_total",
				Help: "Payload fields rewritten to fit the BR Code limits.",
			},
			[]string{"field"},
		),
		ledgerFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pix_ledger_write_failures_total",
				Help: "Ledger entries that could not be persisted.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrCode counts one generation attempt. Reused codes are counted as "reused".
func (m *Metrics) IncrCode(outcome string) {
	m.codesTotal.WithLabelValues(outcome).Inc()
}

// IncrDiscount counts one discount evaluation.
func (m *Metrics) IncrDiscount(reason domain.EligibilityReason) {
	m.discountsTotal.WithLabelValues(string(reason)).Inc()
}

// IncrTruncation counts one rewritten payload field.
func (m *Metrics) IncrTruncation(field string) {
	m.truncations.WithLabelValues(field).Inc()
}

// IncrLedgerFailure counts one lost ledger write.
func (m *Metrics) IncrLedgerFailure() {
	m.ledgerFailures.Inc()
}

// GetPixSnapshot returns a snapshot of generation metrics suitable for the
// GET /v1/metrics/pix endpoint.
func (m *Metrics) GetPixSnapshot() *domain.PixMetrics {
	generated := getCounterValue(m.codesTotal, string(domain.OutcomeGenerated))
	denied := getCounterValue(m.codesTotal, string(domain.OutcomeDenied))
	failed := getCounterValue(m.codesTotal, string(domain.OutcomeFailed))
	reused := getCounterValue(m.codesTotal, "reused")
	applied := getCounterValue(m.discountsTotal, string(domain.ReasonApplied))
	evaluated := applied +
		getCounterValue(m.discountsTotal, string(domain.ReasonNotEligible)) +
		getCounterValue(m.discountsTotal, string(domain.ReasonWindowExpired))
	hits := getCounterValue(m.cacheHits, "merchant")
	misses := getCounterValue(m.cacheMisses, "merchant")

	snap := &domain.PixMetrics{
		Generated:      int64(generated),
		Denied:         int64(denied),
		Failed:         int64(failed),
		Reused:         int64(reused),
		LedgerFailures: int64(counterValue(m.ledgerFailures)),
		AvgLatencyMs:   avgHistogramMs(m.requestDuration, "pix.generate"),
		Period:         "all_time",
	}
	if evaluated > 0 {
		snap.DiscountRate = applied / evaluated
	}
	if hits+misses > 0 {
		snap.MerchantHitRate = hits / (hits + misses)
	}
	return snap
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func avgHistogramMs(hv *prometheus.HistogramVec, label string) float64 {
	m := &dto.Metric{}
	if err := hv.WithLabelValues(label).(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	h := m.GetHistogram()
	if h.GetSampleCount() == 0 {
		return 0
	}
	return h.GetSampleSum() / float64(h.GetSampleCount()) * 1000
}
