package geoarena

import (
	"time"

	"github.com/openziti/geoarena/device"
	"github.com/pkg/errors"
)

type FenceStatus int

const (
	FencePending FenceStatus = iota
	FenceReached
)

func (self FenceStatus) String() string {
	if self == FenceReached {
		return "reached"
	}
	return "pending"
}

// Fence marks the point in the device submission stream at which it was created. Reaching it implies every
// operation submitted earlier has completed, including those covered by any older fence on the same pool.
//
type Fence struct {
	pool    *Pool
	dev     device.Device
	sp      device.SyncPoint
	reached bool
	created time.Time
}

// NewFence creates a fence covering all work submitted so far and makes it the pool's pending fence, superseding
// any previous one. Host-emulated pools have no device asynchrony and receive an already reached fence.
//
func NewFence(pool *Pool) (*Fence, error) {
	if err := pool.usable(); err != nil {
		return nil, err
	}
	f := &Fence{pool: pool, created: time.Now()}
	if dev := pool.storage.syncDevice(); dev != nil {
		sp, err := dev.CreateSyncPoint()
		if err != nil {
			return nil, pool.fail(errors.Wrapf(ErrFenceWaitFailed, "unable to create sync point for pool [%s] (%v)", pool.id, err))
		}
		f.dev = dev
		f.sp = sp
		pool.flight.sp = sp
		pool.flight.armed = true
	} else {
		f.reached = true
	}
	pool.pendingFence = f
	pool.flight.referenced = false
	pool.ii.FenceCreated()
	return f, nil
}

// Wait blocks until the fence is reached. A non-zero timeout bounds the wait; exceeding it, or a device that cannot
// honour a bounded wait, fails the fence rather than hanging. Any failure is fatal for the pool.
//
func (self *Fence) Wait(timeout time.Duration) error {
	if self.reached {
		return nil
	}
	if err := self.dev.WaitSyncPoint(self.sp, timeout); err != nil {
		return self.pool.fail(errors.Wrapf(ErrFenceWaitFailed, "sync point #%d of pool [%s] (%v)", self.sp, self.pool.id, err))
	}
	self.reached = true
	return nil
}

// Query reports whether the fence has been reached without blocking.
//
func (self *Fence) Query() (FenceStatus, error) {
	if self.reached {
		return FenceReached, nil
	}
	reached, err := self.dev.PollSyncPoint(self.sp)
	if err != nil {
		return FencePending, self.pool.fail(errors.Wrapf(ErrFenceWaitFailed, "sync point #%d of pool [%s] (%v)", self.sp, self.pool.id, err))
	}
	if reached {
		self.reached = true
		return FenceReached, nil
	}
	return FencePending, nil
}

func (self *Fence) Created() time.Time { return self.created }
