package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testPlugin struct {
	sysName string
}

func (p *testPlugin) PluginInfo() *PluginInfo {
	return &PluginInfo{Name: p.sysName, SysName: p.sysName, Category: PluginCategoryMisc}
}

type testWorker struct {
	testPlugin
}

func (w *testWorker) Work() {}

func TestPluginsWith(t *testing.T) {
	old := Plugins
	Plugins = nil
	defer func() { Plugins = old }()

	RegisterPlugin(&testPlugin{sysName: "a"})
	RegisterPlugin(&testWorker{testPlugin{sysName: "b"}})

	workers := PluginsWith[interface{ Work() }]()
	assert.Len(t, workers, 1)
	assert.Len(t, PluginsWith[Plugin](), 2)

	assert.Panics(t, func() { RegisterPlugin(&testPlugin{sysName: "a"}) })
}
