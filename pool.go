package geoarena

import (
	"time"

	"github.com/google/uuid"
	"github.com/openziti/geoarena/device"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Pool is a fixed-capacity region handed out by bump allocation. Memory is only reclaimed in bulk by Reset, which
// invalidates every Range minted before it by advancing the pool's generation.
//
// A Pool is not safe for concurrent use; callers serialize access to a single pool.
//
type Pool struct {
	id           string
	capacity     int
	cursor       int
	peak         int
	generation   uint64
	usage        UsageHint
	kind         Kind
	storage      backing
	pendingFence *Fence
	flight       *inflight
	failed       error
	destroyed    bool
	profile      *Profile
	ii           InstrumentInstance
}

// inflight tracks device work that may still read a pool's storage. The pool's registry entry shares it, so storage
// that outlives its pool is only released after that work retires.
//
type inflight struct {
	referenced bool
	sp         device.SyncPoint
	armed      bool
}

// NewPool creates a pool of capacity bytes. A nil dev selects host-emulated storage. A nil reg skips registry
// tracking and uses the baseline profile.
//
func NewPool(reg *Registry, dev device.Device, capacity int, usage UsageHint, kind Kind) (*Pool, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "capacity [%d]", capacity)
	}

	profile := NewBaselineProfile()
	var i Instrument = NewNilInstrument()
	if reg != nil {
		reg.Collect()
		profile = reg.profile
		i = reg.instrument
	}

	var storage backing
	if dev == nil {
		storage = newHostBacking(capacity)
	} else {
		db, err := newDeviceBacking(dev, capacity, kind)
		if err != nil {
			return nil, err
		}
		storage = db
	}

	p := &Pool{
		id:       uuid.New().String(),
		capacity: capacity,
		usage:    usage,
		kind:     kind,
		storage:  storage,
		flight:   &inflight{},
		profile:  profile,
	}
	p.ii = i.NewInstance(p.id)
	p.ii.Created(capacity, storage.mode(), kind)
	if reg != nil {
		reg.track(p)
	}
	logrus.Debugf("created %s pool [%s] of [%d] bytes (%s, %s)", kind, p.id, capacity, storage.mode(), usage)
	return p, nil
}

// Allocate reserves sizeBytes at the next multiple of alignment. An alignment of 0 selects the profile default. The
// reserved bytes are zeroed.
//
func (self *Pool) Allocate(sizeBytes, alignment int) (*Range, error) {
	cursor, peak := self.cursor, self.peak
	offset, err := self.reserve(sizeBytes, alignment)
	if err != nil {
		return nil, err
	}
	if err := self.zero(offset, sizeBytes); err != nil {
		self.rollback(cursor, peak)
		return nil, err
	}
	return newRange(self, offset, sizeBytes, 1, 0, FormatBytes), nil
}

func (self *Pool) reserve(sizeBytes, alignment int) (int, error) {
	if err := self.usable(); err != nil {
		return 0, err
	}
	if sizeBytes < 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "allocation size [%d]", sizeBytes)
	}
	if alignment <= 0 {
		alignment = self.profile.DefaultAlignment
	}

	start := roundUp(self.cursor, alignment)
	if start+sizeBytes > self.capacity {
		self.ii.AllocationFailed(sizeBytes)
		return 0, errors.Wrapf(ErrOutOfCapacity, "[%d] bytes at [%d] exceeds capacity [%d] of pool [%s]", sizeBytes, start, self.capacity, self.id)
	}

	self.cursor = roundUp(start+sizeBytes, alignment)
	if self.cursor > self.capacity {
		self.cursor = self.capacity
	}
	if self.cursor > self.peak {
		self.peak = self.cursor
	}
	self.ii.Allocated(start, sizeBytes, self.cursor)
	return start, nil
}

// rollback returns the cursor to where it stood before a reservation whose initial write failed. No Range was
// minted for it, so nothing can observe the region.
//
func (self *Pool) rollback(cursor, peak int) {
	logrus.Debugf("rolling back pool [%s] cursor from [%d] to [%d]", self.id, self.cursor, cursor)
	self.cursor = cursor
	self.peak = peak
}

func (self *Pool) zero(offset, size int) error {
	if size == 0 {
		return nil
	}
	data, err := self.storage.beginWrite(offset, size)
	if err != nil {
		return err
	}
	for i := range data {
		data[i] = 0
	}
	return self.storage.endWrite()
}

// Reset waits for outstanding device work against the pool, then empties it and invalidates every Range.
//
func (self *Pool) Reset() error {
	if err := self.usable(); err != nil {
		return err
	}
	if err := self.sync(); err != nil {
		return err
	}
	self.cursor = 0
	self.generation++
	self.ii.Reset(self.generation)
	logrus.Debugf("reset pool [%s] to generation [%d]", self.id, self.generation)
	return nil
}

// Finish waits for outstanding device work against the pool without invalidating any Range.
//
func (self *Pool) Finish() error {
	if err := self.usable(); err != nil {
		return err
	}
	return self.sync()
}

// NoteReferenced records that submitted device work reads from this pool. The next Reset or Finish will fence it.
//
func (self *Pool) NoteReferenced() {
	self.flight.referenced = true
}

// Destroy releases the pool's storage. Every Range becomes permanently invalid.
//
func (self *Pool) Destroy() error {
	if self.destroyed {
		return nil
	}
	var syncErr error
	if self.failed == nil {
		syncErr = self.sync()
	}
	releaseErr := self.storage.release()
	self.destroyed = true
	self.generation++
	self.pendingFence = nil
	self.ii.Destroyed()
	logrus.Debugf("destroyed pool [%s]", self.id)
	if syncErr != nil {
		return syncErr
	}
	if releaseErr != nil {
		return errors.Wrapf(releaseErr, "unable to release storage for pool [%s]", self.id)
	}
	return nil
}

func (self *Pool) sync() error {
	if !self.storage.needsFence() {
		self.pendingFence = nil
		self.flight.referenced = false
		return nil
	}
	if self.flight.referenced {
		if _, err := NewFence(self); err != nil {
			return err
		}
	}
	if self.pendingFence != nil {
		start := time.Now()
		if err := self.pendingFence.Wait(self.profile.FenceTimeout()); err != nil {
			return err
		}
		self.ii.FenceWaited(time.Since(start))
	}
	self.pendingFence = nil
	self.flight.armed = false
	return nil
}

func (self *Pool) fail(err error) error {
	if self.failed == nil {
		self.failed = err
		self.ii.FenceFailed(err)
		logrus.Errorf("pool [%s] failed; device storage must be recreated (%v)", self.id, err)
	}
	return err
}

func (self *Pool) usable() error {
	if self.destroyed {
		return errors.Wrapf(ErrPoolDestroyed, "pool [%s]", self.id)
	}
	return self.failed
}

func (self *Pool) ID() string             { return self.id }
func (self *Pool) Kind() Kind             { return self.kind }
func (self *Pool) Usage() UsageHint       { return self.usage }
func (self *Pool) Mode() BackingMode      { return self.storage.mode() }
func (self *Pool) TotalSize() int         { return self.capacity }
func (self *Pool) FreeSize() int          { return self.capacity - self.cursor }
func (self *Pool) AllocatedSize() int     { return self.cursor }
func (self *Pool) PeakAllocatedSize() int { return self.peak }
func (self *Pool) Generation() uint64     { return self.generation }
func (self *Pool) PendingFence() *Fence   { return self.pendingFence }
func (self *Pool) Referenced() bool       { return self.flight.referenced }
func (self *Pool) Destroyed() bool        { return self.destroyed }
func (self *Pool) Failed() error          { return self.failed }

// DeviceBuffer returns the device buffer backing a device-resident pool, for binding as a draw source.
//
func (self *Pool) DeviceBuffer() (device.Buffer, bool) {
	if db, ok := self.storage.(*deviceBacking); ok && !db.released {
		return db.buf, true
	}
	return 0, false
}

func (self *Pool) Instrument() InstrumentInstance {
	return self.ii
}

func (self *Pool) Stats() PoolStats {
	return PoolStats{
		Id:         self.id,
		Kind:       self.kind,
		Usage:      self.usage,
		Mode:       self.storage.mode(),
		Capacity:   self.capacity,
		Allocated:  self.cursor,
		Peak:       self.peak,
		Generation: self.generation,
		Destroyed:  self.destroyed,
	}
}

func roundUp(v, alignment int) int {
	if alignment <= 1 {
		return v
	}
	if r := v % alignment; r != 0 {
		return v + alignment - r
	}
	return v
}
