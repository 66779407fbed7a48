package storage

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled limits the bandwidth of program and erase operations on a Device.
// Reads are not limited.
type Throttled struct {
	Device
	limiter *rate.Limiter
}

// NewThrottled wraps dev so that at most bytesPerSec bytes are programmed or
// erased per second. A non-positive rate returns an unlimited wrapper.
func NewThrottled(dev Device, bytesPerSec int) *Throttled {
	t := &Throttled{Device: dev}
	if bytesPerSec > 0 {
		burst := bytesPerSec
		if eb := int(dev.EraseBlockSize()); burst < eb {
			burst = eb
		}
		t.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
	return t
}

func (t *Throttled) wait(n int) error {
	if t.limiter == nil {
		return nil
	}
	burst := t.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := t.limiter.WaitN(context.Background(), step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// Write implements Device.
func (t *Throttled) Write(addr uint32, p []byte) error {
	if err := t.wait(len(p)); err != nil {
		return err
	}
	return t.Device.Write(addr, p)
}

// Erase implements Device.
func (t *Throttled) Erase(addr, size uint32) error {
	if err := t.wait(int(size)); err != nil {
		return err
	}
	return t.Device.Erase(addr, size)
}
