// Package moderation has the moderation commands and the actions behind them.
//
// Every action (ban, mute, kick, warn, softban, hardban) follows the same steps: tell the
// target, do it on discord, record it, post it in the mod log and finally check whether the
// guild's escalation threshold for that kind of action was reached.
package moderation

import (
	"time"

	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/common/config"
	"github.com/safetyjim/safetyjim/common/keylock"
	"github.com/safetyjim/safetyjim/common/multiratelimit"
	"github.com/safetyjim/safetyjim/settings"
	"github.com/safetyjim/safetyjim/store"
)

var logger = common.GetPluginLogger(&Plugin{})

var confMassbanRate = config.RegisterOption("jim.massban_bans_per_second", "Max bans per second a mass ban issues in one guild", 5)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Moderation",
		SysName:  "moderation",
		Category: common.PluginCategoryModeration,
	}
}

// how long one action may hold the lock of its target
const actionLockTTL = time.Second * 30

type subject struct {
	GuildID int64
	UserID  int64
}

type Moderation struct {
	Store    store.ActionStore
	Settings *settings.Cache

	// serializes actions against the same member, so a ban and a mute for the same
	// user can't interleave their discord calls and records
	locks *keylock.KeyLock[subject]

	// per guild
	massbanLimit *multiratelimit.MultiRatelimiter[int64]

	// set in tests
	now func() time.Time
}

func New(st store.ActionStore, cache *settings.Cache) *Moderation {
	return &Moderation{
		Store:    st,
		Settings: cache,
		locks:    keylock.NewKeyLock[subject](),
		now:      time.Now,

		massbanLimit: multiratelimit.NewMultiRatelimiter[int64](float64(confMassbanRate.GetInt()), confMassbanRate.GetInt()),
	}
}

// Register adds the commands, the message filters and the member and guild handlers
func (m *Moderation) Register(registry *commands.Registry, dispatcher *commands.Dispatcher, router *bot.EventRouter) {
	registry.Add(m.Commands()...)
	dispatcher.AddProcessor(&Plugin{}, m.wordFilterProcessor)
	dispatcher.AddProcessor(&Plugin{}, m.inviteLinkProcessor)

	router.AddHandler(&Plugin{}, m.handleMemberAdd, bot.EventGuildMemberAdd)
	router.AddHandler(&Plugin{}, m.handleMemberRemove, bot.EventGuildMemberRemove)
	router.AddHandler(&Plugin{}, m.handleGuildCreate, bot.EventGuildCreate)
	router.AddHandler(&Plugin{}, m.handleGuildDelete, bot.EventGuildDelete)
}
