// Package prommetrics exports nvram store metrics to Prometheus.
package prommetrics

import (
	"errors"
	"time"

	"github.com/hupe1980/nvram"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nvram"

// Collector implements nvram.MetricsCollector.
type Collector struct {
	opLatency  *prometheus.HistogramVec
	ops        *prometheus.CounterVec
	setBytes   *prometheus.CounterVec
	purges     *prometheus.CounterVec
	purgeLive  *prometheus.GaugeVec
	reclaimed  *prometheus.CounterVec
	recoveries *prometheus.CounterVec
}

var _ nvram.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers it with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of store operations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"op", "region"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by outcome",
		}, []string{"op", "region", "status"}),
		setBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "set_bytes_total",
			Help:      "Value bytes written",
		}, []string{"region"}),
		purges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purges_total",
			Help:      "Segment compactions by outcome",
		}, []string{"region", "status"}),
		purgeLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "purge_live_records",
			Help:      "Records carried over by the last compaction",
		}, []string{"region"}),
		reclaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_reclaimed_bytes_total",
			Help:      "Bytes freed by compaction",
		}, []string{"region"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Region recoveries at open",
		}, []string{"region", "status"}),
	}

	reg.MustRegister(c.opLatency, c.ops, c.setBytes, c.purges, c.purgeLive, c.reclaimed, c.recoveries)
	return c
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, nvram.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// RecordGet implements nvram.MetricsCollector.
func (c *Collector) RecordGet(region string, d time.Duration, err error) {
	c.opLatency.WithLabelValues("get", region).Observe(d.Seconds())
	c.ops.WithLabelValues("get", region, status(err)).Inc()
}

// RecordSet implements nvram.MetricsCollector.
func (c *Collector) RecordSet(region string, size int, d time.Duration, err error) {
	op := "set"
	if size == 0 {
		op = "delete"
	}
	c.opLatency.WithLabelValues(op, region).Observe(d.Seconds())
	c.ops.WithLabelValues(op, region, status(err)).Inc()
	if err == nil {
		c.setBytes.WithLabelValues(region).Add(float64(size))
	}
}

// RecordPurge implements nvram.MetricsCollector.
func (c *Collector) RecordPurge(region string, live int, reclaimed uint32, d time.Duration, err error) {
	c.opLatency.WithLabelValues("purge", region).Observe(d.Seconds())
	c.purges.WithLabelValues(region, status(err)).Inc()
	if err != nil {
		return
	}
	c.purgeLive.WithLabelValues(region).Set(float64(live))
	c.reclaimed.WithLabelValues(region).Add(float64(reclaimed))
}

// RecordRecovery implements nvram.MetricsCollector.
func (c *Collector) RecordRecovery(region string, d time.Duration, err error) {
	c.opLatency.WithLabelValues("recover", region).Observe(d.Seconds())
	c.recoveries.WithLabelValues(region, status(err)).Inc()
}
