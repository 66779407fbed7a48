// Package region implements one logical configuration partition: a ring of
// segments of which exactly one is active, holding append-only key/value
// records.
//
// Writes append a new record before retiring the previous one. When the
// active segment fills up, the live records are compacted into the next
// segment of the ring (purge), which also spreads erase cycles across the
// partition.
package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/nvram/internal/index"
	"github.com/hupe1980/nvram/internal/item"
	"github.com/hupe1980/nvram/internal/segment"
	"github.com/hupe1980/nvram/storage"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrNotFound is returned when a key has no live record.
	ErrNotFound = errors.New("region: not found")

	// ErrInvalidArgument is returned for bad names, sizes or buffers.
	ErrInvalidArgument = errors.New("region: invalid argument")

	// ErrNoSpace is returned when a record does not fit even after compaction.
	ErrNoSpace = errors.New("region: no space")

	// ErrGeometry is returned when a region does not fit its device.
	ErrGeometry = errors.New("region: invalid geometry")
)

// Config describes a region.
type Config struct {
	// Name is used in logs and errors.
	Name string
	// Base is the absolute device address of the region.
	Base uint32
	// Size is the region length, a multiple of SegmentSize.
	Size uint32
	// SegmentSize is the erase unit the region rotates through.
	SegmentSize uint32
	// FastSearch selects the bitmap index over linear scanning.
	FastSearch bool
	// ScratchSize is the per-region chunk buffer size.
	ScratchSize int
	// Logger receives recovery and compaction events. Nil discards them.
	Logger *slog.Logger
	// OnPurge, if set, is called after every compaction attempt.
	OnPurge func(PurgeStats)
}

// PurgeStats describes one compaction.
type PurgeStats struct {
	Region    string
	From      uint32
	To        uint32
	SeqID     uint8
	Live      int
	Reclaimed uint32
	Duration  time.Duration
	Err       error
}

// Region is a single configuration partition. All methods are safe for
// concurrent use; each operation holds the region lock from lookup to the
// last media write.
type Region struct {
	cfg   Config
	dev   storage.Device
	codec *item.Codec
	idx   index.Index
	sem   *semaphore.Weighted
	log   *slog.Logger

	segOffset   uint32
	writeOffset uint32
	seqID       uint8
	// dirty is set when an append failed part way; bytes past writeOffset
	// may be programmed and the segment must be compacted before the next append.
	dirty bool
}

// New validates the geometry and returns an unrecovered region. Call
// Recover before any other operation.
func New(dev storage.Device, cfg Config) (*Region, error) {
	eb := dev.EraseBlockSize()
	switch {
	case cfg.SegmentSize == 0 || cfg.SegmentSize%eb != 0:
		return nil, fmt.Errorf("%w: %s: segment size %d is not a multiple of erase block %d", ErrGeometry, cfg.Name, cfg.SegmentSize, eb)
	case cfg.SegmentSize > segment.MaxSize:
		return nil, fmt.Errorf("%w: %s: segment size %d exceeds %d", ErrGeometry, cfg.Name, cfg.SegmentSize, segment.MaxSize)
	case cfg.SegmentSize < segment.ItemStart+item.MaxSize:
		return nil, fmt.Errorf("%w: %s: segment size %d cannot hold a record", ErrGeometry, cfg.Name, cfg.SegmentSize)
	case cfg.Size < cfg.SegmentSize || cfg.Size%cfg.SegmentSize != 0:
		return nil, fmt.Errorf("%w: %s: size %d is not a multiple of segment size %d", ErrGeometry, cfg.Name, cfg.Size, cfg.SegmentSize)
	case cfg.Base%eb != 0:
		return nil, fmt.Errorf("%w: %s: base %#x is not erase aligned", ErrGeometry, cfg.Name, cfg.Base)
	case uint64(cfg.Base)+uint64(cfg.Size) > uint64(dev.Size()):
		return nil, fmt.Errorf("%w: %s: [%#x,+%#x) exceeds device size %#x", ErrGeometry, cfg.Name, cfg.Base, cfg.Size, dev.Size())
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("region", cfg.Name)

	r := &Region{
		cfg:   cfg,
		dev:   dev,
		codec: item.NewCodec(cfg.ScratchSize),
		idx:   index.New(cfg.FastSearch, item.Align),
		sem:   semaphore.NewWeighted(1),
		log:   log,
	}
	r.codec.OnCorrupt = func(addr uint32, err error) {
		if err != nil {
			r.log.Error("failed to retire corrupt record", "offset", addr-r.segAddr(), "error", err)
			return
		}
		r.log.Warn("retired corrupt record", "offset", addr-r.segAddr())
	}
	return r, nil
}

// Name returns the region name.
func (r *Region) Name() string { return r.cfg.Name }

func (r *Region) lock(ctx context.Context) error {
	return r.sem.Acquire(ctx, 1)
}

func (r *Region) unlock() { r.sem.Release(1) }

func (r *Region) segAddr() uint32 { return r.cfg.Base + r.segOffset }

func (r *Region) addr(off uint32) uint32 { return r.segAddr() + off }

func (r *Region) segments() uint32 { return r.cfg.Size / r.cfg.SegmentSize }

func (r *Region) nextSegment() uint32 {
	return (r.segOffset + r.cfg.SegmentSize) % r.cfg.Size
}

// peek classifies the slot at segment offset off from its header.
func (r *Region) peek(off uint32) (item.Header, item.Status, error) {
	return r.codec.Peek(r.dev, r.addr(off), r.cfg.SegmentSize-off)
}

// classify fully classifies the slot at segment offset off.
func (r *Region) classify(off uint32, checkCRC bool) (item.Record, item.Status, error) {
	return r.codec.Classify(r.dev, r.addr(off), r.cfg.SegmentSize-off, checkCRC)
}

// live walks the candidate records below the write frontier and calls fn
// for each valid header until fn returns false. Iteration stops at the
// first empty or invalid slot.
func (r *Region) live(fn func(off uint32, h item.Header) (bool, error)) error {
	for off := r.idx.Next(segment.ItemStart); off != index.None && off < r.writeOffset; {
		h, st, err := r.peek(off)
		if err != nil {
			return fmt.Errorf("%s: read record at %#x: %w", r.cfg.Name, off, err)
		}
		if st == item.Empty || st == item.Invalid {
			return nil
		}
		if st == item.Valid {
			more, err := fn(off, h)
			if err != nil || !more {
				return err
			}
		}
		off = r.idx.Next(off + h.Size())
	}
	return nil
}
