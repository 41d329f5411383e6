package geoarena

import (
	"path/filepath"
	"testing"

	"github.com/openziti/geoarena/util"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstrument(t *testing.T) {
	for _, name := range []string{"", "nil", "trace", "prometheus"} {
		i, err := NewInstrument(name, nil)
		assert.NoError(t, err, name)
		assert.NotNil(t, i, name)
	}
	_, err := NewInstrument("bogus", nil)
	assert.Error(t, err)
}

func TestMetricsInstrumentWritesSamples(t *testing.T) {
	root := t.TempDir()
	i, err := NewMetricsInstrument(map[string]interface{}{"path": root, "snapshot_ms": 5})
	require.NoError(t, err)
	reg := NewRegistry(nil, i)

	p, err := NewPool(reg, nil, 256, WriteEveryFrame, VertexData)
	require.NoError(t, err)
	_, err = FromSlice(p, []uint32{1, 2, 3}, FormatUint32)
	require.NoError(t, err)
	require.NoError(t, p.Reset())

	require.NoError(t, reg.Close())
	require.NoError(t, i.(*MetricsInstrument).WriteAllSamples())

	found, err := util.DiscoverMetrics(root)
	require.NoError(t, err)
	require.Len(t, found, 1)
	for path, id := range found {
		assert.Equal(t, metricsId, id.Id)
		assert.Equal(t, "256", id.Values["capacity"])
		assert.Equal(t, "host_emulated", id.Values["mode"])

		resets, err := util.ReadSamples(filepath.Join(path, "resets.csv"))
		require.NoError(t, err)
		total := int64(0)
		for _, s := range resets {
			total += s.V
		}
		assert.Equal(t, int64(1), total)
	}
}

func TestPrometheusInstrument(t *testing.T) {
	i, err := NewPrometheusInstrument(map[string]interface{}{"namespace": "test"})
	require.NoError(t, err)
	reg := NewRegistry(nil, i)
	defer func() { _ = reg.Close() }()

	p, err := NewPool(reg, nil, 512, WriteOnce, IndexData)
	require.NoError(t, err)
	_, err = p.Allocate(100, 16)
	require.NoError(t, err)
	_, err = p.Allocate(1024, 16)
	require.Error(t, err)

	families, err := i.(*PrometheusInstrument).Gatherer().Gather()
	require.NoError(t, err)
	values := make(map[string]*dto.Metric)
	for _, mf := range families {
		if len(mf.GetMetric()) > 0 {
			values[mf.GetName()] = mf.GetMetric()[0]
		}
	}
	require.Contains(t, values, "test_pool_capacity_bytes")
	assert.Equal(t, float64(512), values["test_pool_capacity_bytes"].GetGauge().GetValue())
	assert.Equal(t, float64(112), values["test_pool_allocated_bytes"].GetGauge().GetValue())
	assert.Equal(t, float64(1), values["test_pool_allocations_total"].GetCounter().GetValue())
	assert.Equal(t, float64(1), values["test_pool_allocation_failures_total"].GetCounter().GetValue())

	require.NoError(t, p.Destroy())
	families, err = i.(*PrometheusInstrument).Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.NotEqual(t, "test_pool_capacity_bytes", mf.GetName())
	}
}
