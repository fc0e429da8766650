// Package bot connects to discord and routes incoming events to the shard that owns the guild
package bot

import (
	"github.com/safetyjim/safetyjim/common"
)

var logger = common.GetFixedPrefixLogger("bot")

// Plugin is the bot core, handlers registered under it are logged as "bot"
type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Bot",
		SysName:  "bot",
		Category: common.PluginCategoryCore,
	}
}
