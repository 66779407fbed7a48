package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrSizeMismatch is returned when an existing image file does not have the requested size.
var ErrSizeMismatch = errors.New("storage: image size mismatch")

// File is a Device backed by a memory-mapped image file.
//
// The image is created erased (all 0xFF) when it does not exist. Changes are
// flushed to the file by Sync and Close.
type File struct {
	mu     sync.RWMutex
	f      *os.File
	data   []byte
	unmap  func([]byte) error
	block  uint32
	closed bool
}

// OpenFile opens or creates a flash image at path.
func OpenFile(path string, size, eraseBlock uint32) (*File, error) {
	if eraseBlock == 0 || size == 0 || size%eraseBlock != 0 {
		return nil, fmt.Errorf("storage: size %d is not a multiple of erase block %d", size, eraseBlock)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	switch fi.Size() {
	case 0:
		if err := initImage(f, size, eraseBlock); err != nil {
			f.Close()
			return nil, err
		}
	case int64(size):
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrSizeMismatch, path, fi.Size(), size)
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{f: f, data: data, unmap: unmap, block: eraseBlock}, nil
}

func initImage(f *os.File, size, eraseBlock uint32) error {
	blk := make([]byte, eraseBlock)
	fill(blk)
	for off := uint32(0); off < size; off += eraseBlock {
		if _, err := f.WriteAt(blk, int64(off)); err != nil {
			return err
		}
	}
	return f.Sync()
}

// Read implements Device.
func (d *File) Read(addr uint32, p []byte) error {
	if err := checkRange(d, addr, len(p)); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	copy(p, d.data[addr:])
	return nil
}

// Write implements Device.
func (d *File) Write(addr uint32, p []byte) error {
	if err := checkRange(d, addr, len(p)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	program(d.data[addr:], p)
	return nil
}

// Erase implements Device.
func (d *File) Erase(addr, size uint32) error {
	if err := checkErase(d, addr, size); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	fill(d.data[addr : addr+size])
	return nil
}

// Size implements Device.
func (d *File) Size() uint32 { return uint32(len(d.data)) }

// EraseBlockSize implements Device.
func (d *File) EraseBlockSize() uint32 { return d.block }

// Sync flushes the mapping to the image file.
func (d *File) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return osSync(d.data)
}

// Close flushes and unmaps the image.
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	err := osSync(d.data)
	if unmapErr := d.unmap(d.data); unmapErr != nil && err == nil {
		err = unmapErr
	}
	if closeErr := d.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
