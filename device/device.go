// Package device describes the graphics device surface consumed by geoarena pools. Implementations own the
// actual storage and the ordering of submitted work; pools only ever observe the device through buffer mapping
// and sync points.
//
package device

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrDeviceLost         = errors.New("device lost")
	ErrDeviceClosed       = errors.New("device closed")
	ErrUnknownBuffer      = errors.New("unknown device buffer")
	ErrUnknownSyncPoint   = errors.New("unknown sync point")
	ErrOutOfBounds        = errors.New("region out of buffer bounds")
	ErrTimeoutUnsupported = errors.New("bounded sync point wait not supported")
	ErrWaitTimeout        = errors.New("sync point wait timed out")
	ErrNotSupported       = errors.New("operation not supported on this platform")
)

// Buffer is an opaque handle to device-resident storage.
//
type Buffer uint64

// SyncPoint is an opaque token marking a position in the device submission stream.
//
type SyncPoint uint64

type BufferKind int

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
)

func (self BufferKind) String() string {
	switch self {
	case VertexBuffer:
		return "vertex"
	case IndexBuffer:
		return "index"
	default:
		return "unknown"
	}
}

// Device is the external collaborator that owns device memory and executes submitted work asynchronously.
//
type Device interface {
	CreateBuffer(capacity int, kind BufferKind) (Buffer, error)

	// MapForWrite returns a writable view of [offset, offset+size). Implementations may block until in-flight
	// device reads of that same region have completed; they must not wait on unrelated regions.
	MapForWrite(buf Buffer, offset, size int) ([]byte, error)
	Unmap(buf Buffer) error

	// ReadBuffer copies [offset, offset+size) back to host memory.
	ReadBuffer(buf Buffer, offset, size int) ([]byte, error)
	DestroyBuffer(buf Buffer) error

	CreateSyncPoint() (SyncPoint, error)

	// WaitSyncPoint blocks until every operation submitted before the sync point was created has completed. A
	// timeout of 0 waits without bound.
	WaitSyncPoint(sp SyncPoint, timeout time.Duration) error
	PollSyncPoint(sp SyncPoint) (bool, error)
}

// CheckRegion validates a region against a buffer capacity.
//
func CheckRegion(capacity, offset, size int) error {
	if offset < 0 || size < 0 || offset+size > capacity {
		return errors.Wrapf(ErrOutOfBounds, "region [%d, %d) of [%d]", offset, offset+size, capacity)
	}
	return nil
}
