// Package sim implements an asynchronous in-process device. Submitted reads complete on a worker goroutine after
// a configurable latency, which makes fence and same-region mapping behaviour observable without graphics hardware.
//
package sim

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/emirpasic/gods/trees/btree"
	"github.com/emirpasic/gods/utils"
	"github.com/openziti/geoarena/device"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	LatencyMs int

	// UnboundedWaitsOnly models drivers whose sync points cannot be waited on with a timeout.
	UnboundedWaitsOnly bool
}

func NewDefaultConfig() *Config {
	return &Config{LatencyMs: 2}
}

type Device struct {
	lock       sync.Mutex
	ready      *sync.Cond
	latency    time.Duration
	unbounded  bool
	buffers    map[device.Buffer]*buffer
	nextBuffer device.Buffer
	commands   *queue.Queue
	submitted  uint64
	completed  uint64
	syncPoints map[device.SyncPoint]uint64
	syncOrder  *queue.Queue
	nextSync   device.SyncPoint
	lost       bool
	closed     bool
	done       chan struct{}
}

type buffer struct {
	data     []byte
	kind     device.BufferKind
	inFlight *btree.Tree
	mapped   bool
}

type command struct {
	seq    uint64
	buf    device.Buffer
	offset int
	size   int
	due    time.Time
}

func NewDevice(cfg *Config) *Device {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	d := &Device{
		latency:    time.Duration(cfg.LatencyMs) * time.Millisecond,
		unbounded:  cfg.UnboundedWaitsOnly,
		buffers:    make(map[device.Buffer]*buffer),
		commands:   queue.New(),
		syncPoints: make(map[device.SyncPoint]uint64),
		syncOrder:  queue.New(),
		done:       make(chan struct{}),
	}
	d.ready = sync.NewCond(&d.lock)
	go d.run()
	return d
}

func (self *Device) CreateBuffer(capacity int, kind device.BufferKind) (device.Buffer, error) {
	if capacity <= 0 {
		return 0, errors.Errorf("invalid buffer capacity [%d]", capacity)
	}
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.lost {
		return 0, device.ErrDeviceLost
	}
	self.nextBuffer++
	self.buffers[self.nextBuffer] = &buffer{
		data:     make([]byte, capacity),
		kind:     kind,
		inFlight: btree.NewWith(32, utils.IntComparator),
	}
	logrus.Debugf("created %s buffer #%d [%d bytes]", kind, self.nextBuffer, capacity)
	return self.nextBuffer, nil
}

func (self *Device) MapForWrite(buf device.Buffer, offset, size int) ([]byte, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	b, err := self.bufferFor(buf)
	if err != nil {
		return nil, err
	}
	if err := device.CheckRegion(len(b.data), offset, size); err != nil {
		return nil, err
	}
	for overlapsInFlight(b.inFlight, offset, size) {
		if err := self.halted(); err != nil {
			return nil, err
		}
		self.ready.Wait()
	}
	b.mapped = true
	return b.data[offset : offset+size : offset+size], nil
}

func (self *Device) Unmap(buf device.Buffer) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	b, err := self.bufferFor(buf)
	if err != nil {
		return err
	}
	b.mapped = false
	return nil
}

func (self *Device) ReadBuffer(buf device.Buffer, offset, size int) ([]byte, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	b, err := self.bufferFor(buf)
	if err != nil {
		return nil, err
	}
	if err := device.CheckRegion(len(b.data), offset, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

func (self *Device) DestroyBuffer(buf device.Buffer) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if _, found := self.buffers[buf]; !found {
		return errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	delete(self.buffers, buf)
	logrus.Debugf("destroyed buffer #%d", buf)
	return nil
}

// Draw submits an asynchronous device read of [offset, offset+size) of buf.
//
func (self *Device) Draw(buf device.Buffer, offset, size int) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.closed {
		return device.ErrDeviceClosed
	}
	b, err := self.bufferFor(buf)
	if err != nil {
		return err
	}
	if err := device.CheckRegion(len(b.data), offset, size); err != nil {
		return err
	}
	self.submitted++
	cmd := &command{seq: self.submitted, buf: buf, offset: offset, size: size, due: time.Now().Add(self.latency)}
	self.commands.Add(cmd)
	if v, found := b.inFlight.Get(offset); found {
		b.inFlight.Put(offset, append(v.([]*command), cmd))
	} else {
		b.inFlight.Put(offset, []*command{cmd})
	}
	self.ready.Broadcast()
	return nil
}

func (self *Device) CreateSyncPoint() (device.SyncPoint, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	if err := self.halted(); err != nil {
		return 0, err
	}
	self.nextSync++
	self.syncPoints[self.nextSync] = self.submitted
	self.syncOrder.Add(self.nextSync)
	self.prune()
	return self.nextSync, nil
}

func (self *Device) WaitSyncPoint(sp device.SyncPoint, timeout time.Duration) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	target, err := self.targetFor(sp)
	if err != nil {
		return err
	}

	var deadline time.Time
	if timeout > 0 {
		if self.unbounded {
			return errors.Wrapf(device.ErrTimeoutUnsupported, "sync point #%d", sp)
		}
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, func() {
			self.lock.Lock()
			self.ready.Broadcast()
			self.lock.Unlock()
		})
		defer timer.Stop()
	}

	for self.completed < target {
		if err := self.halted(); err != nil {
			return err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return errors.Wrapf(device.ErrWaitTimeout, "sync point #%d after [%s]", sp, timeout)
		}
		self.ready.Wait()
	}
	self.prune()
	return nil
}

func (self *Device) PollSyncPoint(sp device.SyncPoint) (bool, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	if err := self.halted(); err != nil {
		return false, err
	}
	target, err := self.targetFor(sp)
	if err != nil {
		return false, err
	}
	if self.completed < target {
		return false, nil
	}
	self.prune()
	return true, nil
}

// Lose simulates a lost device. Every blocked or future wait fails with device.ErrDeviceLost.
//
func (self *Device) Lose() {
	self.lock.Lock()
	defer self.lock.Unlock()

	logrus.Errorf("device lost with [%d] commands outstanding", self.commands.Length())
	self.lost = true
	self.ready.Broadcast()
}

// SyncPoints returns the number of sync points still tracked. Reached sync points are forgotten.
//
func (self *Device) SyncPoints() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return len(self.syncPoints)
}

// Pending returns the number of submitted commands that have not completed.
//
func (self *Device) Pending() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.commands.Length()
}

// Close stops the worker. Queued commands never complete, and every blocked or future wait, map and submission
// fails with device.ErrDeviceClosed.
//
func (self *Device) Close() {
	self.lock.Lock()
	if !self.closed {
		self.closed = true
		self.ready.Broadcast()
	}
	self.lock.Unlock()
	<-self.done
}

func (self *Device) run() {
	logrus.Debugf("started")
	defer logrus.Debugf("exited")
	defer close(self.done)

	for {
		self.lock.Lock()
		for self.commands.Length() == 0 && !self.closed && !self.lost {
			self.ready.Wait()
		}
		if self.closed || self.lost {
			self.lock.Unlock()
			return
		}
		cmd := self.commands.Peek().(*command)
		self.lock.Unlock()

		if wait := time.Until(cmd.due); wait > 0 {
			time.Sleep(wait)
		}

		self.lock.Lock()
		self.commands.Remove()
		if b, found := self.buffers[cmd.buf]; found {
			retire(b.inFlight, cmd)
		}
		self.completed = cmd.seq
		self.prune()
		self.ready.Broadcast()
		self.lock.Unlock()
	}
}

func (self *Device) halted() error {
	if self.lost {
		return device.ErrDeviceLost
	}
	if self.closed {
		return device.ErrDeviceClosed
	}
	return nil
}

// targetFor returns the submission a sync point waits for. Sync points already pruned as reached report 0.
//
func (self *Device) targetFor(sp device.SyncPoint) (uint64, error) {
	if target, found := self.syncPoints[sp]; found {
		return target, nil
	}
	if sp == 0 || sp > self.nextSync {
		return 0, errors.Wrapf(device.ErrUnknownSyncPoint, "sync point #%d", sp)
	}
	return 0, nil
}

// prune forgets reached sync points. Targets never decrease in creation order, so pruning stops at the first
// sync point still ahead of the completed submission.
//
func (self *Device) prune() {
	for self.syncOrder.Length() > 0 {
		sp := self.syncOrder.Peek().(device.SyncPoint)
		if self.syncPoints[sp] > self.completed {
			return
		}
		delete(self.syncPoints, sp)
		self.syncOrder.Remove()
	}
}

func (self *Device) bufferFor(buf device.Buffer) (*buffer, error) {
	if self.lost {
		return nil, device.ErrDeviceLost
	}
	b, found := self.buffers[buf]
	if !found {
		return nil, errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	return b, nil
}

func overlapsInFlight(inFlight *btree.Tree, offset, size int) bool {
	it := inFlight.Iterator()
	for it.Next() {
		start := it.Key().(int)
		if start >= offset+size {
			return false
		}
		for _, cmd := range it.Value().([]*command) {
			if start+cmd.size > offset {
				return true
			}
		}
	}
	return false
}

func retire(inFlight *btree.Tree, cmd *command) {
	v, found := inFlight.Get(cmd.offset)
	if !found {
		return
	}
	cmds := v.([]*command)
	for i, c := range cmds {
		if c == cmd {
			cmds = append(cmds[:i], cmds[i+1:]...)
			break
		}
	}
	if len(cmds) == 0 {
		inFlight.Remove(cmd.offset)
	} else {
		inFlight.Put(cmd.offset, cmds)
	}
}
