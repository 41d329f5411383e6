package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadSamples(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	samples := []*Sample{{Ts: now, V: 112}, {Ts: now.Add(time.Second), V: 224}}
	require.NoError(t, WriteSamples("allocated_bytes", root, samples))

	out, err := ReadSamples(filepath.Join(root, "allocated_bytes.csv"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(224), out[1].V)
	assert.Equal(t, now.UnixNano(), out[0].Ts.UnixNano())
}

func TestDiscoverMetrics(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "pool_a")
	require.NoError(t, os.MkdirAll(dir, os.ModePerm))
	require.NoError(t, WriteMetricsId("geoarena.pool", dir, map[string]string{"kind": "vertex"}))

	found, err := DiscoverMetrics(root)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "vertex", found[dir].Values["kind"])
}
