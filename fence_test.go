package geoarena

import (
	"testing"
	"time"

	"github.com/openziti/geoarena/device"
	"github.com/openziti/geoarena/device/sim"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimPool(t *testing.T, latencyMs int, reg *Registry) (*Pool, *sim.Device) {
	d := sim.NewDevice(&sim.Config{LatencyMs: latencyMs})
	t.Cleanup(d.Close)
	p, err := NewPool(reg, d, 1024, WriteEveryFrame, VertexData)
	require.NoError(t, err)
	return p, d
}

func drawRange(t *testing.T, d *sim.Device, r *Range) {
	buf, found := r.Pool().DeviceBuffer()
	require.True(t, found)
	require.NoError(t, d.Draw(buf, r.Offset(), r.Footprint()))
	r.Pool().NoteReferenced()
}

func TestFenceSupersedes(t *testing.T) {
	p, d := newSimPool(t, 20, nil)
	r, err := p.Allocate(64, 16)
	require.NoError(t, err)

	drawRange(t, d, r)
	first, err := NewFence(p)
	require.NoError(t, err)
	assert.False(t, p.Referenced())

	drawRange(t, d, r)
	second, err := NewFence(p)
	require.NoError(t, err)
	assert.Equal(t, second, p.PendingFence())

	require.NoError(t, second.Wait(0))
	status, err := first.Query()
	assert.NoError(t, err)
	assert.Equal(t, FenceReached, status)
}

func TestFinishKeepsRangesValid(t *testing.T) {
	p, d := newSimPool(t, 10, nil)
	r, err := FromSlice(p, []uint32{1, 2, 3}, FormatUint32)
	require.NoError(t, err)

	drawRange(t, d, r)
	require.NoError(t, p.Finish())
	assert.Equal(t, 0, d.Pending())
	assert.True(t, r.Valid())
	assert.Nil(t, p.PendingFence())
}

func TestResetWithoutReferencesDoesNotBlock(t *testing.T) {
	p, _ := newSimPool(t, 500, nil)
	_, err := p.Allocate(64, 16)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Reset())
	assert.True(t, time.Since(start) < 250*time.Millisecond)
}

func TestDeviceLossFailsPool(t *testing.T) {
	p, d := newSimPool(t, 1000, nil)
	r, err := p.Allocate(64, 16)
	require.NoError(t, err)
	drawRange(t, d, r)

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Lose()
	}()
	err = p.Reset()
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))
	assert.True(t, errors.Is(p.Failed(), ErrFenceWaitFailed))

	_, err = p.Allocate(8, 4)
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))
	assert.True(t, r.Valid())
	assert.NoError(t, p.Destroy())
}

func TestFenceTimeout(t *testing.T) {
	profile := NewBaselineProfile()
	profile.FenceTimeoutMs = 10
	reg := NewRegistry(profile, nil)
	defer func() { _ = reg.Close() }()

	p, d := newSimPool(t, 1000, reg)
	r, err := p.Allocate(64, 16)
	require.NoError(t, err)
	drawRange(t, d, r)

	err = p.Finish()
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))
	assert.Error(t, p.Failed())
}

func TestUnsupportedBoundedWaitFailsPool(t *testing.T) {
	profile := NewBaselineProfile()
	profile.FenceTimeoutMs = 100
	reg := NewRegistry(profile, nil)
	defer func() { _ = reg.Close() }()

	d := sim.NewDevice(&sim.Config{LatencyMs: 1, UnboundedWaitsOnly: true})
	defer d.Close()
	p, err := NewPool(reg, d, 256, WriteEveryFrame, IndexData)
	require.NoError(t, err)
	r, err := p.Allocate(16, 0)
	require.NoError(t, err)
	drawRange(t, d, r)

	err = p.Reset()
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))
	assert.Equal(t, uint64(0), p.Generation())
}

func TestFailedPoolRejectsRangeAccess(t *testing.T) {
	profile := NewBaselineProfile()
	profile.FenceTimeoutMs = 10
	reg := NewRegistry(profile, nil)
	defer func() { _ = reg.Close() }()

	p, d := newSimPool(t, 1000, reg)
	drawn, err := p.Allocate(64, 16)
	require.NoError(t, err)
	idle, err := FromSlice(p, []uint32{1, 2, 3, 4}, FormatUint32)
	require.NoError(t, err)
	drawRange(t, d, drawn)

	err = p.Finish()
	require.True(t, errors.Is(err, ErrFenceWaitFailed))
	assert.True(t, idle.Valid())

	err = UpdateSlice(idle, []uint32{9, 9, 9, 9})
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))
	err = SetElement(idle, 0, uint32(9))
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))
	_, err = idle.Read()
	assert.True(t, errors.Is(err, ErrFenceWaitFailed))

	buf, found := p.DeviceBuffer()
	require.True(t, found)
	data, err := d.ReadBuffer(buf, idle.Offset(), idle.Size())
	require.NoError(t, err)
	assert.Equal(t, asBytes([]uint32{1, 2, 3, 4}), data)
}

func TestFailedWriteReturnsReservation(t *testing.T) {
	p, d := newSimPool(t, 1, nil)
	_, err := p.Allocate(32, 16)
	require.NoError(t, err)
	d.Lose()

	_, err = p.Allocate(64, 16)
	assert.True(t, errors.Is(err, device.ErrDeviceLost))
	_, err = FromSlice(p, []uint32{1, 2}, FormatUint32)
	assert.True(t, errors.Is(err, device.ErrDeviceLost))
	_, err = FromPool(p, 4, 4, 8)
	assert.True(t, errors.Is(err, device.ErrDeviceLost))
	_, err = CreateInterleaved(p, Interleaved([]float32{1, 2}, FormatFloat32))
	assert.True(t, errors.Is(err, device.ErrDeviceLost))

	assert.Equal(t, 32, p.AllocatedSize())
	assert.Equal(t, 32, p.PeakAllocatedSize())
	assert.Equal(t, 1024-32, p.FreeSize())
}
