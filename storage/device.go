package storage

import (
	"errors"
	"fmt"
)

// Erased is the value every byte holds after an erase.
const Erased = 0xFF

var (
	// ErrOutOfRange is returned when an access falls outside the device.
	ErrOutOfRange = errors.New("storage: address out of range")

	// ErrUnaligned is returned when an erase is not aligned to the erase block.
	ErrUnaligned = errors.New("storage: unaligned erase")

	// ErrClosed is returned when operating on a closed device.
	ErrClosed = errors.New("storage: device closed")
)

// Device is a raw storage medium addressed by absolute byte offsets.
type Device interface {
	// Read fills p with the bytes starting at addr.
	Read(addr uint32, p []byte) error

	// Write programs p at addr. Bits can only be cleared; writing 0xFF over
	// programmed bytes leaves them unchanged.
	Write(addr uint32, p []byte) error

	// Erase resets size bytes at addr to 0xFF. Both must be multiples of
	// EraseBlockSize.
	Erase(addr, size uint32) error

	// Size returns the device capacity in bytes.
	Size() uint32

	// EraseBlockSize returns the erase granularity in bytes.
	EraseBlockSize() uint32
}

func checkRange(dev Device, addr uint32, n int) error {
	if n < 0 || uint64(addr)+uint64(n) > uint64(dev.Size()) {
		return fmt.Errorf("%w: addr=%#x len=%d size=%#x", ErrOutOfRange, addr, n, dev.Size())
	}
	return nil
}

func checkErase(dev Device, addr, size uint32) error {
	if err := checkRange(dev, addr, int(size)); err != nil {
		return err
	}
	bs := dev.EraseBlockSize()
	if addr%bs != 0 || size%bs != 0 {
		return fmt.Errorf("%w: addr=%#x size=%#x block=%#x", ErrUnaligned, addr, size, bs)
	}
	return nil
}

// program applies NOR programming semantics of src onto dst.
func program(dst, src []byte) {
	for i, b := range src {
		dst[i] &= b
	}
}

func fill(p []byte) {
	for i := range p {
		p[i] = Erased
	}
}
