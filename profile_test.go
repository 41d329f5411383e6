package geoarena

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileLoad(t *testing.T) {
	p := NewBaselineProfile()
	d := make(map[string]interface{})
	d["profile_version"] = 1
	d["default_alignment"] = 16
	d["strict_handles"] = true
	d["fence_timeout_ms"] = 250
	assert.Equal(t, 4, p.DefaultAlignment)
	assert.False(t, p.StrictHandles)
	err := p.Load(d)
	assert.NoError(t, err)
	assert.Equal(t, 16, p.DefaultAlignment)
	assert.True(t, p.StrictHandles)
	assert.Equal(t, 250*time.Millisecond, p.FenceTimeout())
	fmt.Println(p.Dump())
}

func TestProfileLoadRequiresVersion(t *testing.T) {
	p := NewBaselineProfile()
	assert.Error(t, p.Load(map[string]interface{}{"default_alignment": 8}))
	assert.Error(t, p.Load(map[string]interface{}{"profile_version": 2}))
}

func TestProfileValidate(t *testing.T) {
	p := NewBaselineProfile()
	assert.NoError(t, p.Validate())

	p.DefaultAlignment = 0
	assert.Error(t, p.Validate())

	p = NewBaselineProfile()
	p.Instrument = "bogus"
	assert.Error(t, p.Validate())
}

func TestLoadProfileYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	yml := `profile_version: 1
default_alignment: 256
instrument: trace
instrument_config:
  allocation: true
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 256, p.DefaultAlignment)
	assert.Equal(t, "trace", p.Instrument)
	assert.Equal(t, true, p.InstrumentConfig["allocation"])

	i, err := NewProfileInstrument(p)
	require.NoError(t, err)
	assert.NotNil(t, i)
}
