package region

import (
	"context"
	"fmt"

	"github.com/hupe1980/nvram/internal/hash"
	"github.com/hupe1980/nvram/internal/item"
)

func checkName(name string) error {
	if err := item.Validate(name, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// Get copies up to len(buf) bytes of the value of name into buf and returns
// the number of bytes copied.
func (r *Region) Get(ctx context.Context, name string, buf []byte) (int, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", ErrInvalidArgument)
	}
	if err := r.lock(ctx); err != nil {
		return 0, err
	}
	defer r.unlock()

	rec, ok, err := r.find(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s: %q", ErrNotFound, r.cfg.Name, name)
	}
	n, err := item.ReadData(r.dev, rec, buf)
	if err != nil {
		return 0, fmt.Errorf("%s: read %q: %w", r.cfg.Name, name, err)
	}
	return n, nil
}

// Set stores data under name. An empty data deletes name; deleting a
// missing name is not an error. Writing the value already stored is a no-op.
func (r *Region) Set(ctx context.Context, name string, data []byte) error {
	if err := item.Validate(name, len(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()
	return r.set(name, data)
}

func (r *Region) set(name string, data []byte) error {
	old, exists, err := r.find(name)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		if !exists {
			return nil
		}
		return r.retire(old)
	}

	if exists {
		same, err := r.codec.Equal(r.dev, old, data)
		if err != nil {
			return fmt.Errorf("%s: compare %q: %w", r.cfg.Name, name, err)
		}
		if same {
			return nil
		}
	}

	size := item.SizeOf(name, len(data))
	if r.dirty || r.writeOffset+size > r.cfg.SegmentSize {
		if err := r.purge(false); err != nil {
			return err
		}
		if r.writeOffset+size > r.cfg.SegmentSize {
			return fmt.Errorf("%w: %s: %d bytes needed, %d free", ErrNoSpace, r.cfg.Name, size, r.cfg.SegmentSize-r.writeOffset)
		}
		// Compaction moved every record.
		if old, exists, err = r.find(name); err != nil {
			return err
		}
	}

	off := r.writeOffset
	if _, err := r.codec.Write(r.dev, r.addr(off), name, data); err != nil {
		r.dirty = true
		return fmt.Errorf("%s: %w", r.cfg.Name, err)
	}
	r.writeOffset += size
	r.idx.Set(off)

	if exists {
		return r.retire(old)
	}
	return nil
}

func (r *Region) retire(rec item.Record) error {
	if err := rec.Retire(r.dev); err != nil {
		return fmt.Errorf("%s: retire %q: %w", r.cfg.Name, rec.Name, err)
	}
	r.idx.Clear(rec.Addr - r.segAddr())
	return nil
}

// find returns the most recently appended live record for name. The name
// hash and size filter candidates before the name itself is read.
func (r *Region) find(name string) (item.Record, bool, error) {
	want := hash.NameHash([]byte(name))
	nameSize := uint8(len(name) + 1)

	var (
		found item.Record
		ok    bool
	)
	err := r.live(func(off uint32, h item.Header) (bool, error) {
		if h.Hash != want || h.NameSize != nameSize {
			return true, nil
		}
		rec, st, err := r.classify(off, false)
		if err != nil {
			return false, fmt.Errorf("%s: read record at %#x: %w", r.cfg.Name, off, err)
		}
		if st == item.Valid && rec.Name == name {
			found, ok = rec, true
		}
		return true, nil
	})
	return found, ok, err
}
