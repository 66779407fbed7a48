package nvram

import (
	"log/slog"

	"github.com/hupe1980/nvram/partition"
)

// DefaultSegmentSize is the segment size used when none is configured.
const DefaultSegmentSize = 4096

type options struct {
	fastSearch       bool
	forcePurge       bool
	segmentSize      uint32
	scratchSize      int
	userName         string
	factoryName      string
	factoryRWName    string
	metricsCollector MetricsCollector
	logger           *Logger
}

func defaultOptions() options {
	return options{
		fastSearch:       true,
		segmentSize:      DefaultSegmentSize,
		scratchSize:      128,
		userName:         partition.User,
		factoryName:      partition.Factory,
		factoryRWName:    partition.FactoryRW,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
}

// Option configures Open.
type Option func(*options)

// WithFastSearch selects the bitmap index (true, the default) or plain
// linear scanning of the active segment. Results are identical either way.
func WithFastSearch(enabled bool) Option {
	return func(o *options) {
		o.fastSearch = enabled
	}
}

// WithForcePurge compacts every region during Open even when recovery
// found nothing to repair.
func WithForcePurge(enabled bool) Option {
	return func(o *options) {
		o.forcePurge = enabled
	}
}

// WithSegmentSize sets the segment size. It must be a multiple of the device
// erase block and at most 32 KiB.
func WithSegmentSize(size uint32) Option {
	return func(o *options) {
		o.segmentSize = size
	}
}

// WithScratchSize sets the per-region I/O chunk buffer size.
func WithScratchSize(size int) Option {
	return func(o *options) {
		o.scratchSize = size
	}
}

// WithPartitionNames overrides the partition names looked up at Open. An
// empty factoryRW disables that region.
func WithPartitionNames(user, factory, factoryRW string) Option {
	return func(o *options) {
		o.userName = user
		o.factoryName = factory
		o.factoryRWName = factoryRW
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &nvram.BasicMetricsCollector{}
//	store, err := nvram.Open(ctx, dev, table, nvram.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example:
//
//	logger := nvram.NewJSONLogger(slog.LevelInfo)
//	store, err := nvram.Open(ctx, dev, table, nvram.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}
