package geoarena

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(n int, first byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = first + byte(i)
	}
	return out
}

func TestCreateInterleaved(t *testing.T) {
	p, err := NewPool(nil, nil, 1024, WriteEveryFrame, VertexData)
	require.NoError(t, err)

	a := InterleaveSource{Data: sequence(48, 0), Count: 4, ElementSize: 12, Format: FormatVec3}
	b := InterleaveSource{Data: sequence(32, 100), Count: 4, ElementSize: 8, Format: FormatVec2}
	c := InterleaveSource{Count: 0, ElementSize: 16, Format: FormatVec4}

	ranges, err := CreateInterleaved(p, a, b, c)
	require.NoError(t, err)
	require.Len(t, ranges, 3)
	assert.Equal(t, 80, p.AllocatedSize())

	ra, rb, rc := ranges[0], ranges[1], ranges[2]
	assert.Equal(t, 20, ra.Stride())
	assert.Equal(t, 20, rb.Stride())
	assert.Equal(t, ra.Offset()+12, rb.Offset())
	assert.Equal(t, 0, rc.Count())
	assert.Equal(t, 0, rc.MaxReservedSize())

	block, err := p.storage.read(ra.Offset(), 80)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, sequence(48, 0)[i*12:(i+1)*12], block[i*20:i*20+12])
		assert.Equal(t, sequence(32, 100)[i*8:(i+1)*8], block[i*20+12:i*20+20])
	}

	data, err := rb.Read()
	require.NoError(t, err)
	assert.Equal(t, sequence(32, 100), data)
}

func TestInterleavedUpdateKeepsStride(t *testing.T) {
	p, err := NewPool(nil, nil, 1024, WriteEveryFrame, VertexData)
	require.NoError(t, err)

	ranges, err := CreateInterleaved(p,
		Interleaved([]float32{1, 2, 3}, FormatFloat32),
		Interleaved([]uint16{4, 5, 6}, FormatUint16),
	)
	require.NoError(t, err)

	require.NoError(t, SetElement(ranges[1], 2, uint16(60)))
	require.NoError(t, UpdateSlice(ranges[0], []float32{10, 20, 30}))

	data, err := ranges[1].Read()
	require.NoError(t, err)
	assert.Equal(t, asBytes([]uint16{4, 5, 60}), data)
	data, err = ranges[0].Read()
	require.NoError(t, err)
	assert.Equal(t, asBytes([]float32{10, 20, 30}), data)
}

func TestCreateInterleavedMismatchedCounts(t *testing.T) {
	p, err := NewPool(nil, nil, 1024, WriteEveryFrame, VertexData)
	require.NoError(t, err)

	_, err = CreateInterleaved(p,
		Interleaved([]float32{1, 2, 3}, FormatFloat32),
		Interleaved([]float32{1, 2}, FormatFloat32),
	)
	assert.True(t, errors.Is(err, ErrSizeMismatch))
	assert.Equal(t, 0, p.AllocatedSize())
}

func TestCreateInterleavedAllEmpty(t *testing.T) {
	p, err := NewPool(nil, nil, 64, WriteEveryFrame, VertexData)
	require.NoError(t, err)

	ranges, err := CreateInterleaved(p, InterleaveSource{ElementSize: 4}, InterleaveSource{ElementSize: 8})
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, 0, p.AllocatedSize())
	for _, r := range ranges {
		assert.Equal(t, 0, r.Count())
		assert.True(t, r.Valid())
	}
}

func TestCreateInterleavedOnDevicePool(t *testing.T) {
	p, d := newSimPool(t, 60, nil)
	head, err := p.Allocate(64, 16)
	require.NoError(t, err)
	drawRange(t, d, head)

	buf, found := p.DeviceBuffer()
	require.True(t, found)
	require.NoError(t, d.Draw(buf, 0, p.TotalSize()))

	positions := InterleaveSource{Data: sequence(36, 0), Count: 3, ElementSize: 12, Format: FormatVec3}
	normals := InterleaveSource{Data: sequence(36, 50), Count: 3, ElementSize: 12, Format: FormatVec3}
	start := time.Now()
	ranges, err := CreateInterleaved(p, positions, normals)
	require.NoError(t, err)
	assert.True(t, time.Since(start) >= 30*time.Millisecond)
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, 64+72, p.AllocatedSize())

	block, err := d.ReadBuffer(buf, ranges[0].Offset(), 72)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, sequence(36, 0)[i*12:(i+1)*12], block[i*24:i*24+12])
		assert.Equal(t, sequence(36, 50)[i*12:(i+1)*12], block[i*24+12:i*24+24])
	}

	data, err := ranges[0].Read()
	require.NoError(t, err)
	assert.Equal(t, sequence(36, 0), data)
	data, err = ranges[1].Read()
	require.NoError(t, err)
	assert.Equal(t, sequence(36, 50), data)

	drawRange(t, d, ranges[1])
	require.NoError(t, p.Reset())
	assert.Equal(t, 0, d.Pending())
	assert.False(t, ranges[0].Valid())
}
