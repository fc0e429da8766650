package moderation

import (
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/store"
)

const wordFilterReason = "Using blacklisted word(s)."

// members with any of these are staff, the word filter leaves them alone
const staffPerms = bot.PermissionAdministrator | bot.PermissionBanMembers | bot.PermissionKickMembers |
	bot.PermissionManageRoles | bot.PermissionManageMessages

// wordFilterProcessor deletes messages containing blocklisted words and runs the
// configured word filter action against the author
func (m *Moderation) wordFilterProcessor(data *commands.Data, settings *store.GuildSettings) (bool, error) {
	if !settings.WordFilter || !m.Settings.WordFilters.Match(settings, data.Msg.Content) {
		return false, nil
	}

	return m.removeAndAct(data, settings, settings.WordFilterRule(), wordFilterReason)
}

// isStaff reports whether the author of the message is exempt from the automatic filters
func isStaff(data *commands.Data) (bool, error) {
	perms, err := data.GW.Permissions(data.GuildID(), data.ChannelID(), data.Author().ID)
	if err != nil {
		return false, err
	}

	return perms&staffPerms != 0, nil
}

// removeAndAct deletes the message unless its author is staff and runs rule against them with the bot as moderator
func (m *Moderation) removeAndAct(data *commands.Data, settings *store.GuildSettings, rule store.Threshold, reason string) (bool, error) {
	staff, err := isStaff(data)
	if err != nil {
		return false, err
	}
	if staff {
		return false, nil
	}

	if err := data.GW.DeleteMessage(data.ChannelID(), data.Msg.ID); err != nil {
		data.Logger().WithError(err).Warn("Failed deleting filtered message")
	}

	ac := &ActionContext{
		Ctx:       data.Context(),
		GW:        data.GW,
		GuildID:   data.GuildID(),
		ChannelID: data.ChannelID(),
		Moderator: data.GW.BotUser(),
		Settings:  settings,
	}

	if err := m.RunRule(ac, data.Author(), rule, reason); err != nil {
		data.Logger().WithError(err).WithField("action", rule.Action.String()).WithField("reason", reason).Error("Automatic action failed")
	}

	return true, nil
}
