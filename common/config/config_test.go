package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapSource map[string]interface{}

func (m mapSource) GetValue(key string) interface{} { return m[key] }
func (m mapSource) Name() string                    { return "map" }

func TestDefaultsWithoutLoad(t *testing.T) {
	m := NewConfigManager()
	i := m.RegisterOption("jim.int", "", 30)
	s := m.RegisterOption("jim.str", "", "-mod")
	b := m.RegisterOption("jim.bool", "", true)

	assert.Equal(t, 30, i.GetInt())
	assert.Equal(t, "-mod", s.GetString())
	assert.True(t, b.GetBool())
	assert.Equal(t, "default", i.SourceName())
}

func TestLaterSourcesWin(t *testing.T) {
	m := NewConfigManager()
	opt := m.RegisterOption("jim.fuzzy_threshold", "", 75)

	m.AddSource(mapSource{"jim.fuzzy_threshold": "60"})
	m.AddSource(mapSource{"jim.fuzzy_threshold": "80"})
	m.Load()

	assert.Equal(t, 80, opt.GetInt())
	assert.Equal(t, "map", opt.SourceName())
}

func TestEnvSource(t *testing.T) {
	assert.Equal(t, "JIM_EXPIRY_BANS_DELAY_SECONDS", EnvKey("jim.expiry.bans.delay_seconds"))

	os.Setenv("JIM_TEST_OPTION", "yes")
	defer os.Unsetenv("JIM_TEST_OPTION")

	m := NewConfigManager()
	opt := m.RegisterOption("jim.test_option", "", false)
	m.AddSource(&EnvSource{})
	m.Load()

	assert.True(t, opt.GetBool())
	assert.Equal(t, "env", opt.SourceName())
}

func TestSet(t *testing.T) {
	m := NewConfigManager()
	opt := m.RegisterOption("jim.timeout", "", 30)
	opt.Set("5")
	assert.Equal(t, 5, opt.GetInt())
	assert.Equal(t, int64(5e9), int64(opt.GetSeconds()))
}
