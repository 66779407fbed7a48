package storage

import (
	"fmt"
	"sync"
)

// Memory is an in-memory Device with NOR flash semantics.
type Memory struct {
	mu    sync.RWMutex
	data  []byte
	block uint32
}

// NewMemory creates an erased device of size bytes with the given erase block size.
func NewMemory(size, eraseBlock uint32) *Memory {
	if eraseBlock == 0 || size%eraseBlock != 0 {
		panic(fmt.Sprintf("storage: size %d is not a multiple of erase block %d", size, eraseBlock))
	}
	data := make([]byte, size)
	fill(data)
	return &Memory{data: data, block: eraseBlock}
}

// Read implements Device.
func (m *Memory) Read(addr uint32, p []byte) error {
	if err := checkRange(m, addr, len(p)); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	copy(p, m.data[addr:])
	return nil
}

// Write implements Device.
func (m *Memory) Write(addr uint32, p []byte) error {
	if err := checkRange(m, addr, len(p)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	program(m.data[addr:], p)
	return nil
}

// Erase implements Device.
func (m *Memory) Erase(addr, size uint32) error {
	if err := checkErase(m, addr, size); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fill(m.data[addr : addr+size])
	return nil
}

// Size implements Device.
func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

// EraseBlockSize implements Device.
func (m *Memory) EraseBlockSize() uint32 { return m.block }

// Bytes returns a copy of the whole medium.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Corrupt overwrites bytes at addr unconditionally, bypassing NOR semantics.
// Tests use it to simulate bit rot.
func (m *Memory) Corrupt(addr uint32, p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[addr:], p)
}
