package moderation

import (
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/store"
)

const (
	msgBotMissingPerms = "I don't have enough permissions to do that!"
	msgInvalidTime     = "Invalid time argument. Please try again."
	msgTimeInPast      = "Your time argument was set for the past. Try again.\nIf you're specifying a date, e.g. `30 December`, make sure you also write the year."
	msgNoMutedRole     = "Could not find a role called Muted, please create one yourself or mute a user to set it up automatically."
)

// targetAction describes one of the "<target> [reason] | [time]" commands
type targetAction struct {
	name     string
	perms    int64
	permName string
	// the bot needs these as well
	botPerms int64
	timed    bool
	scope    commands.TargetScope

	run func(ac *ActionContext, target *bot.User, reason string, expires *time.Time) (int64, error)
	// confirmation message, "Banned"
	past string
}

func (m *Moderation) Commands() []*commands.Command {
	actions := []*targetAction{
		{
			name: "ban", perms: bot.PermissionBanMembers, permName: "Ban Members", botPerms: bot.PermissionBanMembers,
			timed: true, scope: commands.ScopeUsers, run: m.Ban, past: "Banned",
		},
		{
			name: "mute", perms: bot.PermissionManageRoles, permName: "Manage Roles", botPerms: bot.PermissionManageRoles,
			timed: true, scope: commands.ScopeMembers, run: m.Mute, past: "Muted",
		},
		{
			name: "kick", perms: bot.PermissionKickMembers, permName: "Kick Members", botPerms: bot.PermissionKickMembers,
			scope: commands.ScopeMembers, run: untimed(m.Kick), past: "Kicked",
		},
		{
			name: "warn", perms: bot.PermissionKickMembers, permName: "Kick Members",
			scope: commands.ScopeMembers, run: untimed(m.Warn), past: "Warned",
		},
		{
			name: "softban", perms: bot.PermissionBanMembers, permName: "Ban Members", botPerms: bot.PermissionBanMembers,
			scope: commands.ScopeMembers, run: untimed(m.Softban), past: "Softbanned",
		},
		{
			name: "hardban", perms: bot.PermissionBanMembers, permName: "Ban Members", botPerms: bot.PermissionBanMembers,
			scope: commands.ScopeUsers, run: untimed(m.Hardban), past: "Hardbanned",
		},
	}

	cmds := make([]*commands.Command, 0, len(actions)+4)
	for _, a := range actions {
		cmds = append(cmds, m.targetActionCommand(a))
	}

	cmds = append(cmds, &commands.Command{
		Name:              "unban",
		Usages:            []string{"unban @user - unbans specified user"},
		RequiredPerms:     bot.PermissionBanMembers,
		RequiredPermsName: "Ban Members",
		RunFunc:           m.cmdUnban,
		Plugin:            &Plugin{},
	}, &commands.Command{
		Name:              "unmute",
		Usages:            []string{"unmute @user1 @user2 ... - unmutes specified user"},
		RequiredPerms:     bot.PermissionManageRoles,
		RequiredPermsName: "Manage Roles",
		RunFunc:           m.cmdUnmute,
		Plugin:            &Plugin{},
	}, &commands.Command{
		Name:              "massban",
		Usages:            []string{"massban @user1 @user2 ... - bans all specified users"},
		RequiredPerms:     bot.PermissionBanMembers,
		RequiredPermsName: "Ban Members",
		RunFunc:           m.cmdMassban,
		Plugin:            &Plugin{},
	}, m.settingsCommand())

	return cmds
}

func untimed(f func(ac *ActionContext, target *bot.User, reason string) (int64, error)) func(*ActionContext, *bot.User, string, *time.Time) (int64, error) {
	return func(ac *ActionContext, target *bot.User, reason string, _ *time.Time) (int64, error) {
		return f(ac, target, reason)
	}
}

func (a *targetAction) usages() []string {
	if a.timed {
		return []string{
			a.name + " @user [reason] | [time] - " + a.name + "s the user with specific arguments. Both parameters can be omitted.",
		}
	}
	return []string{
		a.name + " @user [reason] - " + a.name + "s the user with the specified reason",
	}
}

func (m *Moderation) targetActionCommand(a *targetAction) *commands.Command {
	return &commands.Command{
		Name:              a.name,
		Usages:            a.usages(),
		RequiredPerms:     a.perms,
		RequiredPermsName: a.permName,
		Plugin:            &Plugin{},
		RunFunc: func(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
			return m.runTargetAction(a, data, settings, args)
		},
	}
}

func (m *Moderation) actionContext(data *commands.Data, settings *store.GuildSettings) *ActionContext {
	return &ActionContext{
		Ctx:       data.Context(),
		GW:        data.GW,
		GuildID:   data.GuildID(),
		ChannelID: data.ChannelID(),
		Moderator: data.Author(),
		Settings:  settings,
	}
}

// resolveTarget finds and confirms the target, replying on the outcomes that end the command.
// A nil target with a nil error means the user has already been told why.
func resolveTarget(data *commands.Data, token string, scope commands.TargetScope, verb string) (*commands.Target, error) {
	t, err := data.ResolveTarget(token, scope)
	switch err {
	case nil:
		return t, nil
	case commands.ErrTargetNotFound:
		data.FailMessage("Could not find the user to " + verb + "!")
		return nil, nil
	case commands.ErrNotConfirmed:
		return nil, nil
	}
	return nil, err
}

func (m *Moderation) runTargetAction(a *targetAction, data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
	token, rest := commands.NextArg(args)
	if token == "" {
		return commands.MalformedUsage, nil
	}

	target, err := resolveTarget(data, token, a.scope, a.name)
	if target == nil || err != nil {
		return commands.Handled, err
	}

	if a.botPerms != 0 {
		ok, err := data.BotHasPermissions(a.botPerms)
		if err != nil {
			return commands.Handled, err
		}
		if !ok {
			data.FailMessage(msgBotMissingPerms)
			return commands.Handled, nil
		}
	}

	if target.User.ID == data.Author().ID {
		data.FailMessage("You can't " + a.name + " yourself, dummy!")
		return commands.Handled, nil
	}

	if target.User.ID == data.GW.BotUser().ID {
		if a.name == "mute" {
			data.FailMessage("Now that's just rude. (I can't mute myself)")
		} else {
			data.FailMessage("You can't " + a.name + " me!")
		}
		return commands.Handled, nil
	}

	reason, expires, err := common.ParseTextAndTime(rest, time.Now())
	if err != nil {
		if err == common.ErrTimeInPast {
			data.FailMessage(msgTimeInPast)
		} else {
			data.FailMessage(msgInvalidTime)
		}
		return commands.Handled, nil
	}

	if !a.timed {
		expires = nil
	}

	_, err = a.run(m.actionContext(data, settings), target.User, reason, expires)
	if err != nil {
		data.Logger().WithError(err).WithField("target", target.User.ID).Warn("Moderation action failed")
		if a.name == "mute" {
			data.FailMessage("Could not mute the specified user. Do I have enough permissions or is Muted role below me?")
		} else {
			data.FailMessage("Could not " + a.name + " the specified user. Do I have enough permissions?")
		}
		return commands.Handled, nil
	}

	data.ReactSuccess()

	text := a.past + " " + target.User.TagAndID()
	if a.timed {
		text += " " + ExpirationText(expires)
	}
	data.SendModActionConfirmation(settings, text)
	return commands.Handled, nil
}

func (m *Moderation) cmdUnban(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
	ok, err := data.BotHasPermissions(bot.PermissionBanMembers)
	if err != nil {
		return commands.Handled, err
	}
	if !ok {
		data.FailMessage("I do not have enough permissions to do that!")
		return commands.Handled, nil
	}

	token, _ := commands.NextArg(args)
	if token == "" {
		return commands.MalformedUsage, nil
	}

	target, err := resolveTarget(data, token, commands.ScopeBanned, "unban")
	if target == nil || err != nil {
		return commands.Handled, err
	}

	if err := m.Unban(m.actionContext(data, settings), target.User); err != nil {
		data.Logger().WithError(err).WithField("target", target.User.ID).Warn("Unban failed")
		data.FailMessage("Could not unban the specified user. Do I have enough permissions?")
		return commands.Handled, nil
	}

	data.ReactSuccess()
	return commands.Handled, nil
}

func (m *Moderation) cmdUnmute(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
	if strings.TrimSpace(args) == "" {
		return commands.MalformedUsage, nil
	}

	role, err := FindMutedRole(data.GW, data.GuildID())
	if err != nil {
		if err == bot.ErrNotFound {
			data.FailMessage(msgNoMutedRole)
			return commands.Handled, nil
		}
		return commands.Handled, err
	}

	ac := m.actionContext(data, settings)

	for rest := args; ; {
		var token string
		token, rest = commands.NextArg(rest)
		if token == "" {
			break
		}

		target, err := resolveTarget(data, token, commands.ScopeMembers, "unmute")
		if target == nil || err != nil {
			return commands.Handled, err
		}

		if err := m.Unmute(ac, target.User, role); err != nil {
			data.Logger().WithError(err).WithField("target", target.User.ID).Warn("Unmute failed")
			data.FailMessage("Could not unmute the user: \"" + target.User.Username + "\". Do I have enough permissions or is Muted role below me?")
			return commands.Handled, nil
		}
	}

	data.ReactSuccess()
	return commands.Handled, nil
}

// massban only takes mentions, guessing is too dangerous with this many targets
func (m *Moderation) cmdMassban(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
	var targets []*bot.User
	for rest := args; ; {
		var token string
		token, rest = commands.NextArg(rest)
		if token == "" {
			break
		}

		id, ok := common.ParseUserMention(token)
		if !ok {
			continue
		}

		for _, u := range data.Msg.Mentions {
			if u.ID == id && !containsUser(targets, id) {
				targets = append(targets, u)
			}
		}
	}

	if len(targets) == 0 {
		return commands.MalformedUsage, nil
	}

	ok, err := data.BotHasPermissions(bot.PermissionBanMembers)
	if err != nil {
		return commands.Handled, err
	}
	if !ok {
		data.FailMessage(msgBotMissingPerms)
		return commands.Handled, nil
	}

	for _, t := range targets {
		if t.ID == data.Author().ID {
			data.FailMessage("You can't ban yourself, dummy!")
			return commands.Handled, nil
		}
		if t.ID == data.GW.BotUser().ID {
			data.FailMessage("You can't ban me!")
			return commands.Handled, nil
		}
	}

	ac := m.actionContext(data, settings)

	banned := 0
	for _, t := range targets {
		if err := m.massbanLimit.Wait(ac.Ctx, ac.GuildID); err != nil {
			return commands.Handled, errors.WithMessage(err, "massban ratelimit")
		}

		if _, err := m.Ban(ac, t, "Targeted in mass ban", nil); err != nil {
			data.Logger().WithError(err).WithField("target", t.ID).Warn("Mass ban failed for a user")
			data.FailMessage("Could not ban the user: \"" + t.Username + "\". Do I have enough permissions?")
			return commands.Handled, nil
		}
		banned++
	}

	data.ReactSuccess()
	data.SendModActionConfirmation(settings, "Mass banned "+strconv.Itoa(banned)+" user(s).")
	return commands.Handled, nil
}

func containsUser(users []*bot.User, id int64) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
