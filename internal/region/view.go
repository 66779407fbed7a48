package region

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/nvram/internal/item"
	"github.com/hupe1980/nvram/internal/segment"
	"github.com/hupe1980/nvram/storage"
)

// Entry is a live record as seen by ForEach.
type Entry struct {
	Name   string
	Offset uint32
	Size   uint32
	Data   []byte
}

// ForEach calls fn for every live record in segment order until fn returns
// false. Data is freshly allocated for each entry.
func (r *Region) ForEach(ctx context.Context, fn func(Entry) bool) error {
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	return r.live(func(off uint32, _ item.Header) (bool, error) {
		rec, st, err := r.classify(off, false)
		if err != nil {
			return false, fmt.Errorf("%s: read record at %#x: %w", r.cfg.Name, off, err)
		}
		if st != item.Valid {
			return true, nil
		}
		data := make([]byte, rec.Header.DataSize)
		if _, err := item.ReadData(r.dev, rec, data); err != nil {
			return false, fmt.Errorf("%s: read %q: %w", r.cfg.Name, rec.Name, err)
		}
		return fn(Entry{Name: rec.Name, Offset: off, Size: rec.Size(), Data: data}), nil
	})
}

// Usage describes how the active segment is occupied.
type Usage struct {
	SegmentOffset uint32
	SeqID         uint8
	WriteOffset   uint32
	LiveRecords   int
	LiveBytes     uint32
	ObsoleteBytes uint32
	FreeBytes     uint32
}

// Usage walks every record of the active segment, live or not.
func (r *Region) Usage(ctx context.Context) (Usage, error) {
	if err := r.lock(ctx); err != nil {
		return Usage{}, err
	}
	defer r.unlock()

	u := Usage{
		SegmentOffset: r.segOffset,
		SeqID:         r.seqID,
		WriteOffset:   r.writeOffset,
		FreeBytes:     r.cfg.SegmentSize - r.writeOffset,
	}
	for off := uint32(segment.ItemStart); off < r.writeOffset; {
		h, st, err := r.peek(off)
		if err != nil {
			return Usage{}, fmt.Errorf("%s: read record at %#x: %w", r.cfg.Name, off, err)
		}
		switch st {
		case item.Valid:
			u.LiveRecords++
			u.LiveBytes += h.Size()
		case item.Obsolete:
			u.ObsoleteBytes += h.Size()
		default:
			return u, nil
		}
		off += h.Size()
	}
	return u, nil
}

// Size returns the region length in bytes.
func (r *Region) Size() uint32 { return r.cfg.Size }

// ReadImage returns a copy of the raw region bytes.
func (r *Region) ReadImage(ctx context.Context) ([]byte, error) {
	if err := r.lock(ctx); err != nil {
		return nil, err
	}
	defer r.unlock()

	img := make([]byte, r.cfg.Size)
	if err := r.dev.Read(r.cfg.Base, img); err != nil {
		return nil, fmt.Errorf("%s: read image: %w", r.cfg.Name, err)
	}
	return img, nil
}

// WriteImage erases the region, programs img and recovers from it.
func (r *Region) WriteImage(ctx context.Context, img []byte) error {
	if len(img) != int(r.cfg.Size) {
		return fmt.Errorf("%w: %s: image is %d bytes, region is %d", ErrInvalidArgument, r.cfg.Name, len(img), r.cfg.Size)
	}
	if err := r.checkImage(img); err != nil {
		return err
	}
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()

	if err := r.dev.Erase(r.cfg.Base, r.cfg.Size); err != nil {
		return fmt.Errorf("%s: erase: %w", r.cfg.Name, err)
	}
	if err := r.dev.Write(r.cfg.Base, img); err != nil {
		return fmt.Errorf("%s: program image: %w", r.cfg.Name, err)
	}
	r.log.Info("programmed region image", "bytes", len(img))
	return r.recover(false)
}

// checkImage scans the segment headers of img before anything is erased.
func (r *Region) checkImage(img []byte) error {
	mem := storage.NewMemory(r.cfg.Size, r.dev.EraseBlockSize())
	if err := mem.Write(0, img); err != nil {
		return fmt.Errorf("%s: stage image: %w", r.cfg.Name, err)
	}
	if _, err := segment.Scan(mem, 0, r.cfg.Size, r.cfg.SegmentSize); err != nil {
		if errors.Is(err, segment.ErrGeometry) {
			return fmt.Errorf("%w: %s: image: %w", ErrGeometry, r.cfg.Name, err)
		}
		return fmt.Errorf("%s: scan image: %w", r.cfg.Name, err)
	}
	return nil
}
