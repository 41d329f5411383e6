package geoarena

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Range is a handle to a sub-region of a Pool plus the element layout stored there. It stays valid until its pool
// is reset or destroyed; after that every access fails with ErrStaleHandle without touching pool memory.
//
type Range struct {
	pool        *Pool
	offset      int
	elementSize int
	count       int
	stride      int
	format      Format
	generation  uint64
	reserved    int
}

func newRange(pool *Pool, offset, count, elementSize, stride int, format Format) *Range {
	return &Range{
		pool:        pool,
		offset:      offset,
		elementSize: elementSize,
		count:       count,
		stride:      stride,
		format:      format,
		generation:  pool.generation,
		reserved:    count * elementSize,
	}
}

// FromPool reserves space for count elements of elementSize bytes, placed stride bytes apart (0 packs them
// tightly). The reserved bytes are zeroed.
//
func FromPool(pool *Pool, count, elementSize, stride int) (*Range, error) {
	if err := checkLayout(count, elementSize, stride); err != nil {
		return nil, err
	}
	footprint := footprintOf(count, elementSize, stride)
	cursor, peak := pool.cursor, pool.peak
	offset, err := pool.reserve(footprint, 0)
	if err != nil {
		return nil, err
	}
	if err := pool.zero(offset, footprint); err != nil {
		pool.rollback(cursor, peak)
		return nil, err
	}
	return newRange(pool, offset, count, elementSize, stride, FormatCustom), nil
}

// FromPoolWithData reserves space for count tightly packed elements and uploads them from data.
//
func FromPoolWithData(pool *Pool, data []byte, count, elementSize int) (*Range, error) {
	if err := checkLayout(count, elementSize, 0); err != nil {
		return nil, err
	}
	if len(data) < count*elementSize {
		return nil, errors.Wrapf(ErrSizeMismatch, "[%d] bytes supplied for [%d] elements of [%d] bytes", len(data), count, elementSize)
	}
	cursor, peak := pool.cursor, pool.peak
	offset, err := pool.reserve(count*elementSize, 0)
	if err != nil {
		return nil, err
	}
	r := newRange(pool, offset, count, elementSize, 0, FormatCustom)
	if err := r.write(0, data, count); err != nil {
		pool.rollback(cursor, peak)
		return nil, err
	}
	return r, nil
}

// FromSlice reserves and uploads data, using the size of T as the element size.
//
func FromSlice[T any](pool *Pool, data []T, format Format) (*Range, error) {
	r, err := FromPoolWithData(pool, asBytes(data), len(data), sizeOf[T]())
	if err != nil {
		return nil, err
	}
	r.format = format
	return r, nil
}

// Update overwrites the first count elements of the range's region from data. The payload must fit the original
// reservation; the range never grows into adjacent allocations, and its element count and size are unchanged.
//
func (self *Range) Update(data []byte, count int) error {
	if err := self.checkValid("update"); err != nil {
		return err
	}
	if count < 0 {
		return errors.Wrapf(ErrInvalidArgument, "element count [%d]", count)
	}
	if err := self.checkFits("update", count*self.elementSize); err != nil {
		return err
	}
	if len(data) < count*self.elementSize {
		return errors.Wrapf(ErrSizeMismatch, "[%d] bytes supplied for [%d] elements of [%d] bytes", len(data), count, self.elementSize)
	}
	return self.write(0, data, count)
}

func UpdateSlice[T any](r *Range, data []T) error {
	if sz := sizeOf[T](); sz != r.elementSize {
		return errors.Wrapf(ErrSizeMismatch, "element size [%d] for range of [%d]", sz, r.elementSize)
	}
	return r.Update(asBytes(data), len(data))
}

// Set overwrites exactly one element in place.
//
func (self *Range) Set(index int, value []byte) error {
	if err := self.checkValid("set"); err != nil {
		return err
	}
	if index < 0 {
		return errors.Wrapf(ErrInvalidArgument, "element index [%d]", index)
	}
	if err := self.checkFits("set", (index+1)*self.elementSize); err != nil {
		return err
	}
	if len(value) != self.elementSize {
		return errors.Wrapf(ErrSizeMismatch, "[%d] byte value for element of [%d]", len(value), self.elementSize)
	}
	return self.write(index, value, 1)
}

func SetElement[T any](r *Range, index int, value T) error {
	if sz := sizeOf[T](); sz != r.elementSize {
		return errors.Wrapf(ErrSizeMismatch, "element size [%d] for range of [%d]", sz, r.elementSize)
	}
	return r.Set(index, asBytes([]T{value}))
}

// Read copies the range's current elements back to host memory, tightly packed.
//
func (self *Range) Read() ([]byte, error) {
	if err := self.checkValid("read"); err != nil {
		return nil, err
	}
	if self.count == 0 {
		return []byte{}, nil
	}
	stride := self.Stride()
	raw, err := self.pool.storage.read(self.offset, footprintOf(self.count, self.elementSize, stride))
	if err != nil {
		return nil, err
	}
	if stride == self.elementSize {
		return raw, nil
	}
	out := make([]byte, self.count*self.elementSize)
	for i := 0; i < self.count; i++ {
		copy(out[i*self.elementSize:(i+1)*self.elementSize], raw[i*stride:i*stride+self.elementSize])
	}
	return out, nil
}

// Valid reports whether the owning pool is still at the generation this range was minted in.
//
func (self *Range) Valid() bool {
	return !self.pool.destroyed && self.pool.generation == self.generation
}

func (self *Range) Pool() *Pool        { return self.pool }
func (self *Range) Offset() int        { return self.offset }
func (self *Range) Count() int         { return self.count }
func (self *Range) ElementSize() int   { return self.elementSize }
func (self *Range) Format() Format     { return self.format }
func (self *Range) Generation() uint64 { return self.generation }

// Size is the number of payload bytes currently described by the range.
func (self *Range) Size() int { return self.count * self.elementSize }

// MaxReservedSize is the payload size fixed at creation; updates may never exceed it.
func (self *Range) MaxReservedSize() int { return self.reserved }

// Stride is the distance between consecutive elements; tightly packed ranges report the element size.
func (self *Range) Stride() int {
	if self.stride == 0 {
		return self.elementSize
	}
	return self.stride
}

// Footprint is the byte span of the reservation in the pool, including interleaved gaps.
func (self *Range) Footprint() int {
	return footprintOf(self.reserved/max(self.elementSize, 1), self.elementSize, self.Stride())
}

func (self *Range) write(first int, data []byte, n int) error {
	if n == 0 {
		return nil
	}
	es := self.elementSize
	stride := self.Stride()
	dst, err := self.pool.storage.beginWrite(self.offset+first*stride, footprintOf(n, es, stride))
	if err != nil {
		return err
	}
	if stride == es {
		copy(dst, data[:n*es])
	} else {
		for i := 0; i < n; i++ {
			copy(dst[i*stride:i*stride+es], data[i*es:(i+1)*es])
		}
	}
	if err := self.pool.storage.endWrite(); err != nil {
		return err
	}
	self.pool.ii.Written(n * es)
	return nil
}

// checkValid rejects stale ranges, then ranges whose pool has latched a fatal error.
//
func (self *Range) checkValid(op string) error {
	if self.Valid() {
		if self.pool.failed != nil {
			return errors.Wrapf(self.pool.failed, "%s on failed pool [%s]", op, self.pool.id)
		}
		return nil
	}
	err := errors.Wrapf(ErrStaleHandle, "%s on range minted at generation [%d] of pool [%s] now at [%d]", op, self.generation, self.pool.id, self.pool.generation)
	self.pool.ii.StaleHandle(op)
	if self.pool.profile.StrictHandles {
		panic(err)
	}
	logrus.Error(err)
	return err
}

func (self *Range) checkFits(op string, size int) error {
	if size <= self.reserved {
		return nil
	}
	self.pool.ii.SizeMismatch(op, size, self.reserved)
	return errors.Wrapf(ErrSizeMismatch, "%s of [%d] bytes exceeds reservation of [%d]", op, size, self.reserved)
}

func checkLayout(count, elementSize, stride int) error {
	if count < 0 || elementSize <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "[%d] elements of [%d] bytes", count, elementSize)
	}
	if stride != 0 && stride < elementSize {
		return errors.Wrapf(ErrInvalidArgument, "stride [%d] smaller than element size [%d]", stride, elementSize)
	}
	return nil
}

func footprintOf(count, elementSize, stride int) int {
	if count == 0 {
		return 0
	}
	if stride == 0 {
		stride = elementSize
	}
	return (count-1)*stride + elementSize
}

func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func asBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), len(data)*sizeOf[T]())
}
