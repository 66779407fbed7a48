package nvram

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordGet is called after each read. region is the region that
	// answered, or the last one searched on a miss.
	RecordGet(region string, duration time.Duration, err error)

	// RecordSet is called after each write. size is the value length;
	// zero means a delete.
	RecordSet(region string, size int, duration time.Duration, err error)

	// RecordPurge is called after each compaction. live is the number of
	// records copied and reclaimed the number of bytes freed.
	RecordPurge(region string, live int, reclaimed uint32, duration time.Duration, err error)

	// RecordRecovery is called once per region at Open.
	RecordRecovery(region string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordGet(string, time.Duration, error)                {}
func (NoopMetricsCollector) RecordSet(string, int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordPurge(string, int, uint32, time.Duration, error) {}
func (NoopMetricsCollector) RecordRecovery(string, time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	GetCount        atomic.Int64
	GetMisses       atomic.Int64
	GetErrors       atomic.Int64
	GetTotalNanos   atomic.Int64
	SetCount        atomic.Int64
	SetErrors       atomic.Int64
	SetBytes        atomic.Int64
	SetTotalNanos   atomic.Int64
	DeleteCount     atomic.Int64
	PurgeCount      atomic.Int64
	PurgeErrors     atomic.Int64
	PurgeReclaimed  atomic.Int64
	PurgeTotalNanos atomic.Int64
	RecoveryCount   atomic.Int64
	RecoveryErrors  atomic.Int64
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(_ string, duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	switch {
	case err == nil:
	case isNotFound(err):
		b.GetMisses.Add(1)
	default:
		b.GetErrors.Add(1)
	}
}

// RecordSet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSet(_ string, size int, duration time.Duration, err error) {
	if size == 0 {
		b.DeleteCount.Add(1)
	} else {
		b.SetCount.Add(1)
		b.SetBytes.Add(int64(size))
	}
	b.SetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SetErrors.Add(1)
	}
}

// RecordPurge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPurge(_ string, _ int, reclaimed uint32, duration time.Duration, err error) {
	b.PurgeCount.Add(1)
	b.PurgeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PurgeErrors.Add(1)
		return
	}
	b.PurgeReclaimed.Add(int64(reclaimed))
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(_ string, _ time.Duration, err error) {
	b.RecoveryCount.Add(1)
	if err != nil {
		b.RecoveryErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		GetCount:       b.GetCount.Load(),
		GetMisses:      b.GetMisses.Load(),
		GetErrors:      b.GetErrors.Load(),
		GetAvgNanos:    avg(b.GetTotalNanos.Load(), b.GetCount.Load()),
		SetCount:       b.SetCount.Load(),
		SetErrors:      b.SetErrors.Load(),
		SetBytes:       b.SetBytes.Load(),
		SetAvgNanos:    avg(b.SetTotalNanos.Load(), b.SetCount.Load()+b.DeleteCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		PurgeCount:     b.PurgeCount.Load(),
		PurgeErrors:    b.PurgeErrors.Load(),
		PurgeReclaimed: b.PurgeReclaimed.Load(),
		PurgeAvgNanos:  avg(b.PurgeTotalNanos.Load(), b.PurgeCount.Load()),
		RecoveryCount:  b.RecoveryCount.Load(),
		RecoveryErrors: b.RecoveryErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	GetCount       int64
	GetMisses      int64
	GetErrors      int64
	GetAvgNanos    int64
	SetCount       int64
	SetErrors      int64
	SetBytes       int64
	SetAvgNanos    int64
	DeleteCount    int64
	PurgeCount     int64
	PurgeErrors    int64
	PurgeReclaimed int64
	PurgeAvgNanos  int64
	RecoveryCount  int64
	RecoveryErrors int64
}
