// Package index tracks which record slots of the active segment hold a live
// record.
//
// Two strategies satisfy [Index]: [Linear] knows nothing and makes callers
// visit every slot in order, [Bitmap] remembers live slots in a roaring
// bitmap so iteration costs O(live records). Callers are written against the
// interface only; the observable behavior of the store is identical with
// either strategy.
package index

import "github.com/RoaringBitmap/roaring/v2"

// None is returned by Next when no candidate slot remains.
const None = ^uint32(0)

// Index maps segment offsets of live records.
type Index interface {
	// Next returns the first candidate record offset at or after off, or None.
	Next(off uint32) uint32
	// Set marks the record at off as live.
	Set(off uint32)
	// Clear marks the record at off as retired.
	Clear(off uint32)
	// Reset forgets every record.
	Reset()
}

// New returns a Bitmap index when fast is set, otherwise a Linear one.
func New(fast bool, align uint32) Index {
	if fast {
		return NewBitmap(align)
	}
	return Linear{}
}

// Linear is the index-free strategy: every offset is a candidate.
type Linear struct{}

func (Linear) Next(off uint32) uint32 { return off }
func (Linear) Set(uint32)             {}
func (Linear) Clear(uint32)           {}
func (Linear) Reset()                 {}

// Bitmap keeps one bit per alignment slot (bit = offset / align).
type Bitmap struct {
	rb    *roaring.Bitmap
	align uint32
}

// NewBitmap creates an empty bitmap index for records aligned to align bytes.
func NewBitmap(align uint32) *Bitmap {
	return &Bitmap{rb: roaring.New(), align: align}
}

// Next implements Index.
func (b *Bitmap) Next(off uint32) uint32 {
	it := b.rb.Iterator()
	it.AdvanceIfNeeded((off + b.align - 1) / b.align)
	if !it.HasNext() {
		return None
	}
	return it.Next() * b.align
}

// Set implements Index.
func (b *Bitmap) Set(off uint32) { b.rb.Add(off / b.align) }

// Clear implements Index.
func (b *Bitmap) Clear(off uint32) { b.rb.Remove(off / b.align) }

// Reset implements Index.
func (b *Bitmap) Reset() { b.rb.Clear() }

// Count returns the number of live records.
func (b *Bitmap) Count() int { return int(b.rb.GetCardinality()) }
