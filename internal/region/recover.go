package region

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/nvram/internal/item"
	"github.com/hupe1980/nvram/internal/segment"
)

// Recover finds the active segment, rebuilds the index and locates the
// write frontier. A region that has never been used is formatted. If a
// corrupt record sits before the frontier, the segment is full, or force is
// set, the region is compacted. A single-segment region cannot be compacted:
// it stays readable and later appends that need compaction fail with
// ErrNoSpace.
func (r *Region) Recover(ctx context.Context, force bool) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()
	return r.recover(force)
}

func (r *Region) recover(force bool) error {
	res, err := segment.Scan(r.dev, r.cfg.Base, r.cfg.Size, r.cfg.SegmentSize)
	if errors.Is(err, segment.ErrGeometry) {
		return fmt.Errorf("%w: %s: %w", ErrGeometry, r.cfg.Name, err)
	}
	if err != nil {
		return fmt.Errorf("%s: scan segments: %w", r.cfg.Name, err)
	}
	if !res.Found {
		r.log.Info("no valid segment, formatting region")
		return r.format(0)
	}

	r.segOffset = res.Offset
	r.seqID = res.Header.SeqID
	r.dirty = false

	for _, off := range res.Stale {
		if err := segment.MarkObsolete(r.dev, r.cfg.Base+off); err != nil {
			return fmt.Errorf("%s: retire stale segment %#x: %w", r.cfg.Name, off, err)
		}
		r.log.Info("retired stale segment", "offset", off)
	}

	needPurge, err := r.scanItems()
	if err != nil {
		return err
	}

	r.log.Debug("recovered region",
		"segment", r.segOffset,
		"seq_id", r.seqID,
		"write_offset", r.writeOffset,
		"need_purge", needPurge,
	)

	if !needPurge && !force {
		return nil
	}
	if r.segments() < 2 {
		// Never append behind a torn or full frontier.
		r.dirty = needPurge
		if needPurge {
			r.log.Warn("single segment region needs compaction, appends disabled",
				"write_offset", r.writeOffset,
			)
		}
		return nil
	}
	return r.purge(true)
}

// scanItems walks the active segment with checksum verification, rebuilds
// the index and sets the write frontier. Older duplicates of a name are
// retired so only the most recently appended copy stays live. It reports
// whether the segment needs compaction.
func (r *Region) scanItems() (bool, error) {
	r.idx.Reset()
	latest := make(map[string]uint32)

	off := uint32(segment.ItemStart)
	for off < r.cfg.SegmentSize {
		rec, st, err := r.classify(off, true)
		if err != nil {
			return false, fmt.Errorf("%s: scan record at %#x: %w", r.cfg.Name, off, err)
		}

		switch st {
		case item.Empty:
			r.writeOffset = off
			return false, nil
		case item.Invalid:
			r.writeOffset = off
			r.log.Warn("corrupt record before write frontier", "offset", off)
			return true, nil
		case item.Valid:
			if prev, ok := latest[rec.Name]; ok {
				if err := item.Retire(r.dev, r.addr(prev)); err != nil {
					return false, fmt.Errorf("%s: retire duplicate %q: %w", r.cfg.Name, rec.Name, err)
				}
				r.idx.Clear(prev)
				r.log.Info("retired duplicate record", "name", rec.Name, "offset", prev)
			}
			latest[rec.Name] = off
			r.idx.Set(off)
		}
		off += rec.Size()
	}

	r.writeOffset = r.cfg.SegmentSize
	return true, nil
}

// format starts a fresh active segment at off.
func (r *Region) format(off uint32) error {
	addr := r.cfg.Base + off
	if _, err := segment.EraseIfDirty(r.dev, addr, r.cfg.SegmentSize, r.codec.Scratch()); err != nil {
		return fmt.Errorf("%s: erase segment %#x: %w", r.cfg.Name, off, err)
	}
	h, err := segment.WriteHeader(r.dev, addr, r.seqID+1, r.cfg.SegmentSize)
	if err != nil {
		return fmt.Errorf("%s: write segment header %#x: %w", r.cfg.Name, off, err)
	}

	r.segOffset = off
	r.seqID = h.SeqID
	r.writeOffset = segment.ItemStart
	r.dirty = false
	r.idx.Reset()
	return nil
}
