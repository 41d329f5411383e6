// Package mmap implements a synchronous device whose buffers are anonymous memory mappings. Work completes at
// submission, so sync points are reached as soon as they are created.
//
package mmap

import (
	"sync"
	"time"

	"github.com/openziti/geoarena/device"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Device struct {
	lock       sync.Mutex
	buffers    map[device.Buffer][]byte
	nextBuffer device.Buffer
	nextSync   device.SyncPoint
}

func NewDevice() *Device {
	return &Device{buffers: make(map[device.Buffer][]byte)}
}

func (self *Device) CreateBuffer(capacity int, kind device.BufferKind) (device.Buffer, error) {
	if capacity <= 0 {
		return 0, errors.Errorf("invalid buffer capacity [%d]", capacity)
	}
	data, err := mapRegion(capacity)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to map [%d] bytes", capacity)
	}

	self.lock.Lock()
	defer self.lock.Unlock()

	self.nextBuffer++
	self.buffers[self.nextBuffer] = data
	logrus.Debugf("mapped %s buffer #%d [%d bytes]", kind, self.nextBuffer, capacity)
	return self.nextBuffer, nil
}

func (self *Device) MapForWrite(buf device.Buffer, offset, size int) ([]byte, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	data, found := self.buffers[buf]
	if !found {
		return nil, errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	if err := device.CheckRegion(len(data), offset, size); err != nil {
		return nil, err
	}
	return data[offset : offset+size : offset+size], nil
}

func (self *Device) Unmap(buf device.Buffer) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if _, found := self.buffers[buf]; !found {
		return errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	return nil
}

func (self *Device) ReadBuffer(buf device.Buffer, offset, size int) ([]byte, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	data, found := self.buffers[buf]
	if !found {
		return nil, errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	if err := device.CheckRegion(len(data), offset, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, data[offset:offset+size])
	return out, nil
}

func (self *Device) DestroyBuffer(buf device.Buffer) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	data, found := self.buffers[buf]
	if !found {
		return errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	delete(self.buffers, buf)
	return unmapRegion(data)
}

// Draw validates the region and completes immediately.
//
func (self *Device) Draw(buf device.Buffer, offset, size int) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	data, found := self.buffers[buf]
	if !found {
		return errors.Wrapf(device.ErrUnknownBuffer, "buffer #%d", buf)
	}
	return device.CheckRegion(len(data), offset, size)
}

func (self *Device) CreateSyncPoint() (device.SyncPoint, error) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.nextSync++
	return self.nextSync, nil
}

func (self *Device) WaitSyncPoint(device.SyncPoint, time.Duration) error { return nil }

func (self *Device) PollSyncPoint(device.SyncPoint) (bool, error) { return true, nil }
