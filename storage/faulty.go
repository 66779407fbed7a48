package storage

import (
	"errors"
	"sync"
)

// ErrInjected is the default error returned by an injected fault.
var ErrInjected = errors.New("storage: injected fault")

// Fault defines specific failure behavior.
type Fault struct {
	// FailAfterBytes fails the write that would push the total programmed
	// byte count past this limit. -1 disables the limit.
	FailAfterBytes int64
	// Torn programs the prefix of the failing write that still fits under
	// FailAfterBytes before failing, as a power cut mid-program would.
	Torn bool
	// Sticky keeps failing every later write and erase once tripped.
	Sticky bool
	FailOnErase bool
	FailOnRead  bool
	Err         error
}

// Faulty is a Device wrapper that injects errors and counts operations.
type Faulty struct {
	Device

	mu      sync.Mutex
	fault   Fault
	tripped bool
	written int64
	writes  int
	erases  int
	reads   int
}

// NewFaulty wraps dev with fault injection disabled.
func NewFaulty(dev Device) *Faulty {
	return &Faulty{
		Device: dev,
		fault:  Fault{FailAfterBytes: -1},
	}
}

// SetFault replaces the active fault and resets the tripped state.
func (f *Faulty) SetFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fault = fault
	f.tripped = false
}

// Reset disables fault injection. Counters are kept.
func (f *Faulty) Reset() {
	f.SetFault(Fault{FailAfterBytes: -1})
}

// Written returns the total number of bytes programmed.
func (f *Faulty) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// Writes returns the number of successful Write calls.
func (f *Faulty) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Erases returns the number of successful Erase calls.
func (f *Faulty) Erases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.erases
}

// Reads returns the number of successful Read calls.
func (f *Faulty) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *Faulty) err() error {
	if f.fault.Err != nil {
		return f.fault.Err
	}
	return ErrInjected
}

// Read implements Device.
func (f *Faulty) Read(addr uint32, p []byte) error {
	f.mu.Lock()
	if f.fault.FailOnRead {
		err := f.err()
		f.mu.Unlock()
		return err
	}
	f.reads++
	f.mu.Unlock()
	return f.Device.Read(addr, p)
}

// Write implements Device.
func (f *Faulty) Write(addr uint32, p []byte) error {
	f.mu.Lock()
	if f.tripped && f.fault.Sticky {
		err := f.err()
		f.mu.Unlock()
		return err
	}

	limit := f.fault.FailAfterBytes
	if limit >= 0 && f.written+int64(len(p)) > limit {
		f.tripped = true
		err := f.err()
		keep := limit - f.written
		torn := f.fault.Torn && keep > 0
		if torn {
			f.written += keep
		}
		f.mu.Unlock()

		if torn {
			if werr := f.Device.Write(addr, p[:keep]); werr != nil {
				return errors.Join(err, werr)
			}
		}
		return err
	}

	f.written += int64(len(p))
	f.writes++
	f.mu.Unlock()
	return f.Device.Write(addr, p)
}

// Erase implements Device.
func (f *Faulty) Erase(addr, size uint32) error {
	f.mu.Lock()
	if f.fault.FailOnErase || (f.tripped && f.fault.Sticky) {
		err := f.err()
		f.mu.Unlock()
		return err
	}
	f.erases++
	f.mu.Unlock()
	return f.Device.Erase(addr, size)
}
