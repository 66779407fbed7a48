package region

import (
	"context"
	"fmt"

	"github.com/hupe1980/nvram/internal/segment"
)

// Reserve makes sure at least n bytes are free in the active segment,
// compacting if needed, and erases the next segment of the ring ahead of
// time so the next compaction does not pay for the erase.
func (r *Region) Reserve(ctx context.Context, n int) error {
	if n < 0 || n > int(r.cfg.SegmentSize-segment.ItemStart) {
		return fmt.Errorf("%w: reserve %d bytes", ErrInvalidArgument, n)
	}
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	if r.dirty || r.writeOffset+uint32(n) > r.cfg.SegmentSize {
		if err := r.purge(false); err != nil {
			return err
		}
		if r.writeOffset+uint32(n) > r.cfg.SegmentSize {
			return fmt.Errorf("%w: %s: %d bytes requested, %d free", ErrNoSpace, r.cfg.Name, n, r.cfg.SegmentSize-r.writeOffset)
		}
	}

	if r.segments() < 2 {
		return nil
	}
	next := r.nextSegment()
	erased, err := segment.EraseIfDirty(r.dev, r.cfg.Base+next, r.cfg.SegmentSize, r.codec.Scratch())
	if err != nil {
		return fmt.Errorf("%s: erase ahead %#x: %w", r.cfg.Name, next, err)
	}
	if erased {
		r.log.Debug("erased next segment ahead", "offset", next)
	}
	return nil
}

// Wipe erases every segment and starts over with an empty active segment.
func (r *Region) Wipe(ctx context.Context) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	for off := uint32(0); off < r.cfg.Size; off += r.cfg.SegmentSize {
		if _, err := segment.EraseIfDirty(r.dev, r.cfg.Base+off, r.cfg.SegmentSize, r.codec.Scratch()); err != nil {
			return fmt.Errorf("%s: erase segment %#x: %w", r.cfg.Name, off, err)
		}
	}
	r.log.Info("wiped region")
	return r.format(0)
}
