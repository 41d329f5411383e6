package geoarena

import "github.com/pkg/errors"

var (
	// ErrOutOfCapacity means an allocation does not fit the pool's remaining space. Recoverable: reset the pool or
	// allocate from a larger one.
	ErrOutOfCapacity = errors.New("out of capacity")

	// ErrStaleHandle means a range was used after its pool was reset or destroyed.
	ErrStaleHandle = errors.New("stale handle")

	// ErrFenceWaitFailed means the device could not confirm completion. Fatal for the pool and its device storage.
	ErrFenceWaitFailed = errors.New("fence wait failed")

	// ErrSizeMismatch means a payload does not fit the range's original reservation.
	ErrSizeMismatch = errors.New("size mismatch")

	ErrPoolDestroyed   = errors.New("pool destroyed")
	ErrInvalidArgument = errors.New("invalid argument")
)
