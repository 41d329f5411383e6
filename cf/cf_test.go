package cf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Alignment int                    `cf:"alignment"`
	Scale     float64                `cf:"scale"`
	Strict    bool                   `cf:"strict"`
	Name      string                 `cf:"name"`
	Nested    map[string]interface{} `cf:"nested"`
	Untagged  int
}

func TestLoad(t *testing.T) {
	c := &testConfig{Alignment: 4}
	data := map[string]interface{}{
		"alignment": 16,
		"scale":     2,
		"strict":    true,
		"name":      "frame",
		"nested":    map[interface{}]interface{}{"path": "/tmp"},
		"Untagged":  7,
	}
	assert.NoError(t, Load(data, c))
	assert.Equal(t, 16, c.Alignment)
	assert.Equal(t, 2.0, c.Scale)
	assert.True(t, c.Strict)
	assert.Equal(t, "frame", c.Name)
	assert.Equal(t, "/tmp", c.Nested["path"])
	assert.Equal(t, 7, c.Untagged)
}

func TestLoadMismatch(t *testing.T) {
	c := &testConfig{}
	err := Load(map[string]interface{}{"alignment": "sixteen"}, c)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alignment")
}

func TestLoadNotStruct(t *testing.T) {
	i := 0
	assert.Error(t, Load(map[string]interface{}{}, &i))
}

func TestDump(t *testing.T) {
	out := Dump("config", &testConfig{Alignment: 16, Nested: map[string]interface{}{"b": 2, "a": 1}})
	assert.True(t, strings.HasPrefix(out, "config {\n"))
	assert.Contains(t, out, "alignment")
	assert.Contains(t, out, "{a: 1, b: 2}")
}
