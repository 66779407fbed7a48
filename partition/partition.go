// Package partition describes where each configuration region lives on the
// flash device.
package partition

import (
	"errors"
	"fmt"
	"sort"
)

// Well-known partition names.
const (
	User      = "nvram_user"
	Factory   = "nvram_factory"
	FactoryRW = "nvram_factory_rw"
)

// ErrInvalid is returned for malformed tables.
var ErrInvalid = errors.New("partition: invalid table")

// Partition is a named byte range of the device.
type Partition struct {
	Name   string
	Offset uint32
	Size   uint32
}

// End returns the first address past the partition.
func (p Partition) End() uint64 { return uint64(p.Offset) + uint64(p.Size) }

func (p Partition) String() string {
	return fmt.Sprintf("%s[%#x,+%#x)", p.Name, p.Offset, p.Size)
}

// Table is an immutable set of non-overlapping partitions.
type Table struct {
	parts []Partition
}

// New validates parts and builds a table.
func New(parts ...Partition) (*Table, error) {
	sorted := append([]Partition(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	seen := make(map[string]struct{}, len(sorted))
	for i, p := range sorted {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: partition at %#x has no name", ErrInvalid, p.Offset)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate partition %q", ErrInvalid, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Size == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalid, p.Name)
		}
		if p.End() > 1<<32 {
			return nil, fmt.Errorf("%w: %s exceeds the 32-bit address space", ErrInvalid, p)
		}
		if i > 0 && sorted[i-1].End() > uint64(p.Offset) {
			return nil, fmt.Errorf("%w: %s overlaps %s", ErrInvalid, sorted[i-1], p)
		}
	}
	return &Table{parts: sorted}, nil
}

// Lookup returns the partition called name.
func (t *Table) Lookup(name string) (Partition, bool) {
	for _, p := range t.parts {
		if p.Name == name {
			return p, true
		}
	}
	return Partition{}, false
}

// Partitions returns the partitions ordered by offset.
func (t *Table) Partitions() []Partition {
	return append([]Partition(nil), t.parts...)
}

// Fit checks that every partition lies inside a device of devSize bytes and
// starts and ends on an erase block boundary.
func (t *Table) Fit(devSize, eraseBlock uint32) error {
	for _, p := range t.parts {
		if p.End() > uint64(devSize) {
			return fmt.Errorf("%w: %s exceeds device size %#x", ErrInvalid, p, devSize)
		}
		if eraseBlock != 0 && (p.Offset%eraseBlock != 0 || p.Size%eraseBlock != 0) {
			return fmt.Errorf("%w: %s is not aligned to erase block %#x", ErrInvalid, p, eraseBlock)
		}
	}
	return nil
}

// Layout places the standard partitions back to back from offset 0. A zero
// factoryRW size omits that partition.
func Layout(user, factory, factoryRW uint32) (*Table, error) {
	parts := []Partition{
		{Name: User, Offset: 0, Size: user},
		{Name: Factory, Offset: user, Size: factory},
	}
	if factoryRW > 0 {
		parts = append(parts, Partition{Name: FactoryRW, Offset: user + factory, Size: factoryRW})
	}
	return New(parts...)
}
