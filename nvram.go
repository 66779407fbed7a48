package nvram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/nvram/internal/region"
	"github.com/hupe1980/nvram/partition"
	"github.com/hupe1980/nvram/storage"
	"golang.org/x/sync/errgroup"
)

// Partitions resolves region names to device ranges. *partition.Table
// implements it.
type Partitions interface {
	Lookup(name string) (partition.Partition, bool)
}

// Store is an opened configuration store. It is safe for concurrent use.
type Store struct {
	user      *region.Region
	factory   *region.Region
	factoryRW *region.Region // nil when the device has no Factory-RW partition

	opts    options
	logger  *Logger
	metrics MetricsCollector
}

// Open recovers every configured region of dev. The User and Factory
// partitions are required; Factory-RW is optional. Regions recover
// concurrently.
func Open(ctx context.Context, dev storage.Device, table Partitions, optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		opts:    opts,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
	}

	var err error
	if s.user, err = s.newRegion(dev, table, opts.userName, true); err != nil {
		return nil, err
	}
	if s.factory, err = s.newRegion(dev, table, opts.factoryName, true); err != nil {
		return nil, err
	}
	if opts.factoryRWName != "" {
		if s.factoryRW, err = s.newRegion(dev, table, opts.factoryRWName, false); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range s.regions() {
		g.Go(func() error {
			start := time.Now()
			err := r.Recover(gctx, opts.forcePurge)
			s.metrics.RecordRecovery(r.Name(), time.Since(start), err)
			s.logger.LogRecovery(ctx, r.Name(), time.Since(start), err)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translateError(err)
	}
	return s, nil
}

func (s *Store) newRegion(dev storage.Device, table Partitions, name string, required bool) (*region.Region, error) {
	p, ok := table.Lookup(name)
	if !ok {
		if required {
			return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, name)
		}
		s.logger.Debug("optional partition absent", "region", name)
		return nil, nil
	}

	r, err := region.New(dev, region.Config{
		Name:        name,
		Base:        p.Offset,
		Size:        p.Size,
		SegmentSize: s.opts.segmentSize,
		FastSearch:  s.opts.fastSearch,
		ScratchSize: s.opts.scratchSize,
		Logger:      s.logger.Logger,
		OnPurge: func(st region.PurgeStats) {
			s.metrics.RecordPurge(st.Region, st.Live, st.Reclaimed, st.Duration, st.Err)
		},
	})
	if err != nil {
		return nil, translateError(err)
	}
	return r, nil
}

// regions returns the open regions in read priority order.
func (s *Store) regions() []*region.Region {
	rs := []*region.Region{s.user}
	if s.factoryRW != nil {
		rs = append(rs, s.factoryRW)
	}
	return append(rs, s.factory)
}

func (s *Store) factoryTarget() *region.Region {
	if s.factoryRW != nil {
		return s.factoryRW
	}
	return s.factory
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, region.ErrNotFound)
}

// get reads name from the first region of rs that holds it.
func (s *Store) get(ctx context.Context, rs []*region.Region, name string, buf []byte) (int, error) {
	start := time.Now()
	var (
		n   int
		err error
		r   *region.Region
	)
	for _, r = range rs {
		n, err = r.Get(ctx, name, buf)
		if !isNotFound(err) {
			break
		}
	}
	err = translateError(err)
	s.metrics.RecordGet(r.Name(), time.Since(start), err)
	return n, err
}

func (s *Store) set(ctx context.Context, r *region.Region, name string, data []byte) error {
	start := time.Now()
	err := translateError(r.Set(ctx, name, data))
	s.metrics.RecordSet(r.Name(), len(data), time.Since(start), err)
	s.logger.LogSet(ctx, r.Name(), name, len(data), err)
	return err
}

// Get copies up to len(buf) bytes of the value of name into buf and returns
// the number of bytes copied. User is searched first, then Factory-RW, then
// Factory.
func (s *Store) Get(ctx context.Context, name string, buf []byte) (int, error) {
	return s.get(ctx, s.regions(), name, buf)
}

// Set stores data under name in the User region. Empty data deletes name.
// Writing the value already stored does not touch the flash.
func (s *Store) Set(ctx context.Context, name string, data []byte) error {
	return s.set(ctx, s.user, name, data)
}

// GetFactory reads name from Factory-RW, then Factory.
func (s *Store) GetFactory(ctx context.Context, name string, buf []byte) (int, error) {
	return s.get(ctx, s.regions()[1:], name, buf)
}

// SetFactory stores data under name in Factory-RW, or in Factory when the
// device has no Factory-RW partition.
func (s *Store) SetFactory(ctx context.Context, name string, data []byte) error {
	return s.set(ctx, s.factoryTarget(), name, data)
}

// Clear makes sure at least reserve bytes can be appended to the User region
// without compaction, and erases the next User segment ahead of time.
func (s *Store) Clear(ctx context.Context, reserve int) error {
	return translateError(s.user.Reserve(ctx, reserve))
}

// ClearAll erases every User segment. Factory data is untouched.
func (s *Store) ClearAll(ctx context.Context) error {
	err := translateError(s.user.Wipe(ctx))
	if err == nil {
		s.logger.WithRegion(s.user.Name()).InfoContext(ctx, "user region cleared")
	}
	return err
}

// Entry is a live record returned by Dump.
type Entry struct {
	Region string
	Name   string
	// Offset is the record position within the active segment.
	Offset uint32
	// Size is the aligned on-media record size.
	Size uint32
	Data []byte
}

// Dump returns every live record, region by region in read priority order.
func (s *Store) Dump(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for _, r := range s.regions() {
		err := r.ForEach(ctx, func(e region.Entry) bool {
			out = append(out, Entry{
				Region: r.Name(),
				Name:   e.Name,
				Offset: e.Offset,
				Size:   e.Size,
				Data:   e.Data,
			})
			return true
		})
		if err != nil {
			return nil, translateError(err)
		}
	}
	return out, nil
}

// RegionStats describes the occupancy of a region's active segment.
type RegionStats struct {
	Name          string
	Size          uint32
	SegmentOffset uint32
	SeqID         uint8
	WriteOffset   uint32
	LiveRecords   int
	LiveBytes     uint32
	ObsoleteBytes uint32
	FreeBytes     uint32
}

// Stats reports occupancy for every region.
func (s *Store) Stats(ctx context.Context) ([]RegionStats, error) {
	var out []RegionStats
	for _, r := range s.regions() {
		u, err := r.Usage(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		out = append(out, RegionStats{
			Name:          r.Name(),
			Size:          r.Size(),
			SegmentOffset: u.SegmentOffset,
			SeqID:         u.SeqID,
			WriteOffset:   u.WriteOffset,
			LiveRecords:   u.LiveRecords,
			LiveBytes:     u.LiveBytes,
			ObsoleteBytes: u.ObsoleteBytes,
			FreeBytes:     u.FreeBytes,
		})
	}
	return out, nil
}

// Compact forces a compaction of every region with checksum verification.
func (s *Store) Compact(ctx context.Context) error {
	for _, r := range s.regions() {
		if err := r.Purge(ctx, true); err != nil {
			return translateError(err)
		}
	}
	return nil
}
