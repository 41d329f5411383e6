package submit

import (
	"testing"
	"time"

	"github.com/openziti/geoarena"
	"github.com/openziti/geoarena/device"
	"github.com/openziti/geoarena/device/sim"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDraw struct {
	buf    device.Buffer
	offset int
	size   int
}

type recordingQueue struct {
	draws []recordedDraw
}

func (self *recordingQueue) Draw(buf device.Buffer, offset, size int) error {
	self.draws = append(self.draws, recordedDraw{buf, offset, size})
	return nil
}

func TestDrawMarksPoolsReferenced(t *testing.T) {
	d := sim.NewDevice(&sim.Config{LatencyMs: 1})
	defer d.Close()

	vertices, err := geoarena.NewPool(nil, d, 1024, geoarena.WriteEveryFrame, geoarena.VertexData)
	require.NoError(t, err)
	indices, err := geoarena.NewPool(nil, d, 256, geoarena.WriteEveryFrame, geoarena.IndexData)
	require.NoError(t, err)

	v, err := vertices.Allocate(96, 16)
	require.NoError(t, err)
	i, err := geoarena.FromSlice(indices, []uint16{0, 1, 2}, geoarena.FormatUint16)
	require.NoError(t, err)

	q := &recordingQueue{}
	s := NewSubmitter(q)
	require.NoError(t, s.BindVertexSource(v))
	require.NoError(t, s.BindIndexSource(i))
	require.NoError(t, s.Draw())

	assert.True(t, vertices.Referenced())
	assert.True(t, indices.Referenced())
	assert.Equal(t, 1, s.Draws())
	require.Len(t, q.draws, 2)
	assert.Equal(t, 0, q.draws[0].offset)
	assert.Equal(t, 96, q.draws[0].size)
	assert.Equal(t, 6, q.draws[1].size)
}

func TestBindRejectsStaleRange(t *testing.T) {
	d := sim.NewDevice(nil)
	defer d.Close()

	p, err := geoarena.NewPool(nil, d, 256, geoarena.WriteEveryFrame, geoarena.VertexData)
	require.NoError(t, err)
	r, err := p.Allocate(32, 0)
	require.NoError(t, err)
	require.NoError(t, p.Reset())

	s := NewSubmitter(&recordingQueue{})
	err = s.BindVertexSource(r)
	assert.True(t, errors.Is(err, geoarena.ErrStaleHandle))
}

func TestBindRejectsWrongKindAndHostPools(t *testing.T) {
	d := sim.NewDevice(nil)
	defer d.Close()

	p, err := geoarena.NewPool(nil, d, 256, geoarena.WriteOnce, geoarena.VertexData)
	require.NoError(t, err)
	r, err := p.Allocate(32, 0)
	require.NoError(t, err)

	s := NewSubmitter(&recordingQueue{})
	assert.True(t, errors.Is(s.BindIndexSource(r), geoarena.ErrInvalidArgument))

	host, err := geoarena.NewPool(nil, nil, 256, geoarena.WriteOnce, geoarena.VertexData)
	require.NoError(t, err)
	hr, err := host.Allocate(32, 0)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.BindVertexSource(hr), geoarena.ErrInvalidArgument))

	assert.Error(t, s.Draw())
}

func TestResetWaitsForSubmittedDraws(t *testing.T) {
	d := sim.NewDevice(&sim.Config{LatencyMs: 30})
	defer d.Close()

	p, err := geoarena.NewPool(nil, d, 1024, geoarena.WriteEveryFrame, geoarena.VertexData)
	require.NoError(t, err)
	r, err := geoarena.FromSlice(p, []float32{1, 2, 3, 4}, geoarena.FormatVec4)
	require.NoError(t, err)

	s := NewSubmitter(d)
	require.NoError(t, s.BindVertexSource(r))
	require.NoError(t, s.Draw())
	assert.Equal(t, 1, d.Pending())

	start := time.Now()
	require.NoError(t, p.Reset())
	assert.True(t, time.Since(start) >= 20*time.Millisecond)
	assert.Equal(t, 0, d.Pending())
	assert.False(t, p.Referenced())
	assert.Nil(t, p.PendingFence())
}
