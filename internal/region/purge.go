package region

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/nvram/internal/index"
	"github.com/hupe1980/nvram/internal/item"
	"github.com/hupe1980/nvram/internal/segment"
)

// Purge compacts the live records of the active segment into the next
// segment of the ring.
func (r *Region) Purge(ctx context.Context, checkCRC bool) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()
	return r.purge(checkCRC)
}

// purge rotates to the next segment, copying only valid records. The new
// header is programmed after the copy and before the old segment is
// retired, so an interrupted purge leaves the old segment authoritative.
func (r *Region) purge(checkCRC bool) (err error) {
	start := time.Now()
	stats := PurgeStats{Region: r.cfg.Name, From: r.segOffset}
	defer func() {
		stats.Duration = time.Since(start)
		stats.Err = err
		if err != nil {
			r.log.Error("purge failed", "from", stats.From, "to", stats.To, "error", err)
		} else {
			r.log.Info("purged segment",
				"from", stats.From,
				"to", stats.To,
				"seq_id", stats.SeqID,
				"live", stats.Live,
				"reclaimed", stats.Reclaimed,
			)
		}
		if r.cfg.OnPurge != nil {
			r.cfg.OnPurge(stats)
		}
	}()

	if r.segments() < 2 {
		return fmt.Errorf("%w: %s: single segment region cannot be compacted", ErrNoSpace, r.cfg.Name)
	}

	next := r.nextSegment()
	nextAddr := r.cfg.Base + next
	stats.To = next

	if _, err := segment.EraseIfDirty(r.dev, nextAddr, r.cfg.SegmentSize, r.codec.Scratch()); err != nil {
		return fmt.Errorf("%s: erase segment %#x: %w", r.cfg.Name, next, err)
	}

	newIdx := index.New(r.cfg.FastSearch, item.Align)
	dst := uint32(segment.ItemStart)

	err = r.live(func(off uint32, h item.Header) (bool, error) {
		rec := item.Record{Addr: r.addr(off), Header: h}
		if checkCRC {
			var st item.Status
			var err error
			rec, st, err = r.classify(off, true)
			if err != nil {
				return false, fmt.Errorf("%s: verify record at %#x: %w", r.cfg.Name, off, err)
			}
			if st == item.Invalid {
				r.log.Warn("corrupt record stops compaction", "offset", off)
				return false, nil
			}
		}
		if err := r.codec.Copy(r.dev, rec, nextAddr+dst); err != nil {
			return false, fmt.Errorf("%s: copy record %#x to %#x: %w", r.cfg.Name, off, next+dst, err)
		}
		newIdx.Set(dst)
		dst += rec.Size()
		stats.Live++
		return true, nil
	})
	if err != nil {
		return err
	}

	h, err := segment.WriteHeader(r.dev, nextAddr, r.seqID+1, r.cfg.SegmentSize)
	if err != nil {
		return fmt.Errorf("%s: write segment header %#x: %w", r.cfg.Name, next, err)
	}

	old := r.segOffset
	if r.writeOffset > dst {
		stats.Reclaimed = r.writeOffset - dst
	}
	stats.SeqID = h.SeqID

	r.segOffset = next
	r.writeOffset = dst
	r.seqID = h.SeqID
	r.idx = newIdx
	r.dirty = false

	// The new segment is authoritative from here on: a newer sequence
	// number wins at the next scan even if this write is lost.
	if err := segment.MarkObsolete(r.dev, r.cfg.Base+old); err != nil {
		return fmt.Errorf("%s: retire segment %#x: %w", r.cfg.Name, old, err)
	}
	return nil
}
