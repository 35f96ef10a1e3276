// Package metrics exposes Prometheus instrumentation for the exchange.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// Collector holds all exchange metrics.
type Collector struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec

	VolumeLamports      *prometheus.CounterVec
	FeesAccruedLamports *prometheus.CounterVec
	FeesWithdrawn       *prometheus.CounterVec
	TokensBurned        prometheus.Counter
	VestingClaimed      prometheus.Counter
	VestingBurned       prometheus.Counter

	MarketsLaunched prometheus.Gauge
}

// NewCollector registers every metric on a fresh registry so independent
// collectors can coexist in one process.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "launchpad"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "operations_total",
			Help:      "Total number of exchange operations by result",
		}, []string{"operation", "result"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "operation_duration_seconds",
			Help:      "Exchange operation latency including persistence",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "errors_total",
			Help:      "Total number of failed operations by error kind and name",
		}, []string{"kind", "error"}),

		VolumeLamports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "volume_lamports_total",
			Help:      "Traded SOL volume by side",
		}, []string{"side"}),
		FeesAccruedLamports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "accrued_lamports_total",
			Help:      "Fees accrued by recipient",
		}, []string{"recipient"}),
		FeesWithdrawn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "withdrawn_lamports_total",
			Help:      "Fees paid out by recipient",
		}, []string{"recipient"}),
		TokensBurned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "access_tokens_burned_total",
			Help:      "Token base units burned for access",
		}),
		VestingClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "claimed_tokens_total",
			Help:      "Token base units released to creators",
		}),
		VestingBurned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "revoked_tokens_total",
			Help:      "Unvested token base units burned on revocation",
		}),

		MarketsLaunched: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "markets",
			Help:      "Number of markets launched",
		}),
	}
}

// Observe records the outcome and latency of one operation.
func (c *Collector) Observe(operation string, started time.Time, err error) {
	c.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err == nil {
		c.OperationsTotal.WithLabelValues(operation, "ok").Inc()
		return
	}
	c.OperationsTotal.WithLabelValues(operation, "error").Inc()

	name := "unknown"
	if e, ok := errcode.As(err); ok {
		name = e.Name
	}
	c.ErrorsTotal.WithLabelValues(string(errcode.KindOf(err)), name).Inc()
}

// AddFees counts a platform/creator fee split.
func (c *Collector) AddFees(platform, creator uint64) {
	c.FeesAccruedLamports.WithLabelValues("platform").Add(float64(platform))
	c.FeesAccruedLamports.WithLabelValues("creator").Add(float64(creator))
}

// Registry exposes the underlying registry for scraping and tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
