package geoarena

import (
	"sync"
	"sync/atomic"
)

// stagingBuffer is host scratch space for assembling a block that is then written to pool storage through a single
// mapping.
//
type stagingBuffer struct {
	data []byte
	refs int32
	pool *stagingPool
}

func (self *stagingBuffer) ref() {
	atomic.AddInt32(&self.refs, 1)
}

func (self *stagingBuffer) unref() {
	if atomic.AddInt32(&self.refs, -1) < 1 && self.pool != nil {
		self.pool.put(self)
	}
}

type stagingPool struct {
	bufSize int
	store   *sync.Pool
	allocs  int64
}

func newStagingPool(bufSize int) *stagingPool {
	pool := &stagingPool{
		bufSize: bufSize,
		store:   new(sync.Pool),
	}
	pool.store.New = pool.allocate
	return pool
}

func (self *stagingPool) get() *stagingBuffer {
	buf := self.store.Get().(*stagingBuffer)
	buf.ref()
	return buf
}

func (self *stagingPool) put(buf *stagingBuffer) {
	buf.data = buf.data[:self.bufSize]
	self.store.Put(buf)
}

func (self *stagingPool) allocate() interface{} {
	atomic.AddInt64(&self.allocs, 1)
	return &stagingBuffer{data: make([]byte, self.bufSize), pool: self}
}

const (
	minStagingShift = 12
	maxStagingShift = 22
)

var stagingClasses = func() []*stagingPool {
	var classes []*stagingPool
	for shift := minStagingShift; shift <= maxStagingShift; shift++ {
		classes = append(classes, newStagingPool(1<<shift))
	}
	return classes
}()

// getStaging returns a buffer of exactly size bytes with one reference held. Contents are unspecified. Blocks larger
// than the biggest size class are allocated directly and never pooled.
//
func getStaging(size int) *stagingBuffer {
	for _, class := range stagingClasses {
		if size <= class.bufSize {
			buf := class.get()
			buf.data = buf.data[:size]
			return buf
		}
	}
	return &stagingBuffer{data: make([]byte, size), refs: 1}
}
