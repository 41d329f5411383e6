package geoarena

import (
	"github.com/openziti/geoarena/device"
	"github.com/pkg/errors"
)

// backing is the storage strategy behind a pool. Ranges only ever touch pool memory through it.
//
type backing interface {
	mode() BackingMode
	beginWrite(offset, size int) ([]byte, error)
	endWrite() error
	read(offset, size int) ([]byte, error)

	// syncDevice returns the device whose sync points guard this storage, or nil when no device asynchrony exists.
	syncDevice() device.Device
	needsFence() bool
	release() error
}

type hostBacking struct {
	data []byte
}

func newHostBacking(capacity int) *hostBacking {
	return &hostBacking{data: make([]byte, capacity)}
}

func (self *hostBacking) mode() BackingMode { return HostEmulated }

func (self *hostBacking) beginWrite(offset, size int) ([]byte, error) {
	if self.data == nil {
		return nil, ErrPoolDestroyed
	}
	if err := device.CheckRegion(len(self.data), offset, size); err != nil {
		return nil, err
	}
	return self.data[offset : offset+size : offset+size], nil
}

func (self *hostBacking) endWrite() error { return nil }

func (self *hostBacking) read(offset, size int) ([]byte, error) {
	if self.data == nil {
		return nil, ErrPoolDestroyed
	}
	if err := device.CheckRegion(len(self.data), offset, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, self.data[offset:offset+size])
	return out, nil
}

func (self *hostBacking) syncDevice() device.Device { return nil }
func (self *hostBacking) needsFence() bool          { return false }

func (self *hostBacking) release() error {
	self.data = nil
	return nil
}

type deviceBacking struct {
	dev      device.Device
	buf      device.Buffer
	released bool
}

func newDeviceBacking(dev device.Device, capacity int, kind Kind) (*deviceBacking, error) {
	buf, err := dev.CreateBuffer(capacity, kind)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s device buffer [%d bytes]", kind, capacity)
	}
	return &deviceBacking{dev: dev, buf: buf}, nil
}

func (self *deviceBacking) mode() BackingMode { return DeviceResident }

func (self *deviceBacking) beginWrite(offset, size int) ([]byte, error) {
	if self.released {
		return nil, ErrPoolDestroyed
	}
	data, err := self.dev.MapForWrite(self.buf, offset, size)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to map [%d, %d) for write", offset, offset+size)
	}
	return data, nil
}

func (self *deviceBacking) endWrite() error {
	return self.dev.Unmap(self.buf)
}

func (self *deviceBacking) read(offset, size int) ([]byte, error) {
	if self.released {
		return nil, ErrPoolDestroyed
	}
	return self.dev.ReadBuffer(self.buf, offset, size)
}

func (self *deviceBacking) syncDevice() device.Device { return self.dev }
func (self *deviceBacking) needsFence() bool          { return true }

func (self *deviceBacking) release() error {
	if self.released {
		return nil
	}
	self.released = true
	return self.dev.DestroyBuffer(self.buf)
}
