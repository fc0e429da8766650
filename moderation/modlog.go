package moderation

import (
	"strconv"
	"strings"
	"time"

	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/store"
)

type ModLogAction struct {
	Name string
	// Past is used in DMs and audit log reasons, "Banned"
	Past string
	// UntilText is set for actions that can expire
	UntilText string

	// Kind is the record kind of actions stored as infractions
	Kind            store.InfractionKind
	ThresholdReason string
}

var (
	MABan     = ModLogAction{Name: "ban", Past: "Banned", UntilText: "Banned until"}
	MAMute    = ModLogAction{Name: "mute", Past: "Muted", UntilText: "Muted until"}
	MAKick    = ModLogAction{Name: "kick", Past: "Kicked", Kind: store.InfractionKick, ThresholdReason: "Kick threshold exceeded."}
	MAWarn    = ModLogAction{Name: "warn", Past: "Warned", Kind: store.InfractionWarn, ThresholdReason: "Warning threshold exceeded."}
	MASoftban = ModLogAction{Name: "softban", Past: "Softbanned", Kind: store.InfractionSoftban, ThresholdReason: "Softban threshold exceeded."}
	MAHardban = ModLogAction{Name: "hardban", Past: "Hardbanned", Kind: store.InfractionHardban}
)

// FormatExpiry formats the end of an action, nil means it never ends
func FormatExpiry(t *time.Time) string {
	if t == nil {
		return "Indefinitely"
	}
	return t.UTC().Format(time.RFC1123)
}

// ExpirationText is the suffix of the confirmation message in the channel
func ExpirationText(t *time.Time) string {
	if t == nil {
		return "(Indefinitely)"
	}
	return "(Expires on " + FormatExpiry(t) + ")"
}

func auditLogReason(ac *ActionContext, action ModLogAction, reason string) string {
	return action.Past + " by " + ac.Moderator.TagAndID() + " - " + reason
}

func guildName(ac *ActionContext) string {
	g, err := ac.GW.Guild(ac.GuildID)
	if err != nil {
		return "the server"
	}
	return g.Name
}

// notifyTarget DMs the target about the action, it's fine if they can't be reached
func (m *Moderation) notifyTarget(ac *ActionContext, target *bot.User, action ModLogAction, reason string, expires *time.Time) {
	if target.Bot {
		return
	}

	name := guildName(ac)
	preposition := "in"
	if action.Kind == store.InfractionKick || action == MABan || action.Kind == store.InfractionSoftban || action.Kind == store.InfractionHardban {
		preposition = "from"
	}

	var b strings.Builder
	b.WriteString("**" + action.Past + " " + preposition + " " + name + "**\n")
	b.WriteString("You were " + strings.ToLower(action.Past) + " " + preposition + " " + name + "\n")
	b.WriteString("**Reason:** " + reason + "\n")
	if action.UntilText != "" {
		b.WriteString("**" + action.UntilText + ":** " + FormatExpiry(expires) + "\n")
	}
	b.WriteString(action.Past + " by " + ac.Moderator.TagAndID())

	if err := ac.GW.SendDM(target.ID, b.String()); err != nil {
		ac.logger(target).WithError(err).Debug("Failed notifying target of action")
	}
}

// createModLogEntry posts the action in the guild's mod log channel if it has one enabled
func (m *Moderation) createModLogEntry(ac *ActionContext, target *bot.User, reason string, action ModLogAction, id int64, expires *time.Time) {
	if !ac.Settings.ModLog {
		return
	}

	if !isTextChannel(ac.GW, ac.GuildID, ac.Settings.ModLogChannelID) {
		if ac.ChannelID != 0 {
			_, err := ac.GW.SendMessage(ac.ChannelID, "Invalid moderator log channel in guild configuration, set a proper one via `"+ac.Settings.Prefix+" settings` command.")
			common.LogIgnoreError(err, "failed sending invalid mod log channel hint", nil)
		}
		return
	}

	var b strings.Builder
	b.WriteString("**Action:** " + strings.ToUpper(action.Name[:1]) + action.Name[1:] + " - #" + strconv.FormatInt(id, 10) + "\n")
	b.WriteString("**User:** " + target.TagAndID() + "\n")
	b.WriteString("**Reason:** " + reason + "\n")
	b.WriteString("**Responsible Moderator:** " + ac.Moderator.TagAndID())
	if ac.ChannelID != 0 {
		b.WriteString("\n**Channel:** " + common.ChannelMention(ac.ChannelID))
	}
	if action.UntilText != "" {
		b.WriteString("\n**" + action.UntilText + ":** " + FormatExpiry(expires))
	}

	if _, err := ac.GW.SendMessage(ac.Settings.ModLogChannelID, b.String()); err != nil {
		ac.logger(target).WithError(err).Warn("Failed posting mod log entry")
	}
}

func isTextChannel(gw bot.Gateway, guildID, channelID int64) bool {
	if channelID == 0 {
		return false
	}

	channels, err := gw.Channels(guildID)
	if err != nil {
		return false
	}

	for _, c := range channels {
		if c.ID == channelID && c.Text {
			return true
		}
	}
	return false
}
