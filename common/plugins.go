package common

var (
	Plugins []Plugin
)

type PluginCategory struct {
	Name string
}

var (
	PluginCategoryCore       = &PluginCategory{Name: "Core"}
	PluginCategoryModeration = &PluginCategory{Name: "Moderation"}
	PluginCategoryMisc       = &PluginCategory{Name: "Misc"}
)

type PluginInfo struct {
	Name     string // Human readable name of the plugin
	SysName  string // snake_case version of the name, used as the "p" log field
	Category *PluginCategory
}

// Plugin is anything that logs under its own name and can be registered to run in the background
type Plugin interface {
	PluginInfo() *PluginInfo
}

// RegisterPlugin adds a plugin to Plugins. Two plugins with the same SysName is a programming
// error and panics.
func RegisterPlugin(plugin Plugin) {
	info := plugin.PluginInfo()
	for _, v := range Plugins {
		if v.PluginInfo().SysName == info.SysName {
			panic("plugin registered twice: " + info.SysName)
		}
	}

	Plugins = append(Plugins, plugin)
	logger.Info("Registered plugin: " + info.Name)
}

// PluginsWith returns the registered plugins implementing T, in registration order
func PluginsWith[T any]() []T {
	var result []T
	for _, p := range Plugins {
		if cast, ok := p.(T); ok {
			result = append(result, cast)
		}
	}
	return result
}
