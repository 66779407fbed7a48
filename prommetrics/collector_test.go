package prommetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/nvram"
	"github.com/hupe1980/nvram/partition"
	"github.com/hupe1980/nvram/storage"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !match(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func match(m *dto.Metric, labels map[string]string) bool {
	n := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			n++
		}
	}
	return n == len(labels)
}

func TestCollector_Record(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := New(reg)

	c.RecordGet("user", time.Millisecond, nil)
	c.RecordGet("user", time.Millisecond, nvram.ErrNotFound)
	c.RecordGet("user", time.Millisecond, errors.New("boom"))
	c.RecordSet("user", 10, time.Millisecond, nil)
	c.RecordSet("user", 0, time.Millisecond, nil)
	c.RecordPurge("user", 4, 96, time.Millisecond, nil)
	c.RecordPurge("user", 0, 0, time.Millisecond, errors.New("boom"))
	c.RecordRecovery("factory", time.Millisecond, nil)

	assert.Equal(t, 1.0, value(t, reg, "nvram_operations_total", map[string]string{"op": "get", "status": "success"}))
	assert.Equal(t, 1.0, value(t, reg, "nvram_operations_total", map[string]string{"op": "get", "status": "not_found"}))
	assert.Equal(t, 1.0, value(t, reg, "nvram_operations_total", map[string]string{"op": "get", "status": "error"}))
	assert.Equal(t, 1.0, value(t, reg, "nvram_operations_total", map[string]string{"op": "delete", "status": "success"}))
	assert.Equal(t, 10.0, value(t, reg, "nvram_set_bytes_total", map[string]string{"region": "user"}))
	assert.Equal(t, 4.0, value(t, reg, "nvram_purge_live_records", map[string]string{"region": "user"}))
	assert.Equal(t, 96.0, value(t, reg, "nvram_purge_reclaimed_bytes_total", map[string]string{"region": "user"}))
	assert.Equal(t, 1.0, value(t, reg, "nvram_purges_total", map[string]string{"status": "error"}))
	assert.Equal(t, 1.0, value(t, reg, "nvram_recoveries_total", map[string]string{"region": "factory"}))
	assert.Equal(t, 3.0, value(t, reg, "nvram_operation_latency_seconds", map[string]string{"op": "get"}))
}

func TestCollector_WithStore(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	table, err := partition.Layout(2*4096, 2*4096, 0)
	require.NoError(t, err)
	s, err := nvram.Open(ctx, storage.NewMemory(4*4096, 4096), table, nvram.WithMetricsCollector(New(reg)))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	_, err = s.Get(ctx, "missing", make([]byte, 4))
	require.ErrorIs(t, err, nvram.ErrNotFound)

	for _, region := range []string{partition.User, partition.Factory} {
		assert.Equal(t, 1.0, value(t, reg, "nvram_recoveries_total", map[string]string{"region": region, "status": "success"}))
	}
	assert.Equal(t, 1.0, value(t, reg, "nvram_operations_total", map[string]string{"op": "set", "region": partition.User}))
	assert.Equal(t, 1.0, value(t, reg, "nvram_operations_total", map[string]string{"op": "get", "status": "not_found"}))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
