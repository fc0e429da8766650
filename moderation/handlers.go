package moderation

import (
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/store"
)

func (m *Moderation) handleMemberAdd(evt *bot.EventData) error {
	member := evt.GuildMemberAdd()
	gw := evt.Shard.Gateway
	ctx := evt.Context()

	settings, err := m.Settings.Get(ctx, member.GuildID)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	now := m.now()

	if settings.WelcomeMessage {
		m.sendWelcomeMessage(gw, settings, member.Member)
	}

	if settings.HoldingRoom {
		join := &store.Join{
			GuildID:  member.GuildID,
			UserID:   member.User.ID,
			JoinedAt: now.Unix(),
			AllowAt:  now.Unix() + int64(settings.HoldingRoomMinutes)*60,
		}

		if err := m.Store.CreateJoin(ctx, join); err != nil {
			return errors.WithMessage(err, "create join")
		}
	}

	// leaving and joining again shouldn't get anyone out of a mute
	_, err = m.Store.ActiveUserMute(ctx, member.GuildID, member.User.ID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return errors.WithMessage(err, "active mute")
	}

	role, err := SetupMutedRole(gw, member.GuildID)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	return errors.WithMessage(gw.AddMemberRole(member.GuildID, member.User.ID, role.ID), "re-mute")
}

func (m *Moderation) sendWelcomeMessage(gw bot.Gateway, settings *store.GuildSettings, member *bot.Member) {
	guildName := ""
	if g, err := gw.Guild(member.GuildID); err == nil {
		guildName = g.Name
	}

	text := strings.ReplaceAll(settings.Message, "$user", common.UserMention(member.User.ID))
	text = strings.ReplaceAll(text, "$guild", guildName)
	if settings.HoldingRoom {
		text = strings.ReplaceAll(text, "$minute", strconv.Itoa(settings.HoldingRoomMinutes))
	}

	if _, err := gw.SendMessage(settings.WelcomeMessageChannelID, text); err != nil {
		logger.WithError(err).WithField("guild", member.GuildID).Warn("Failed sending welcome message")
	}
}

func (m *Moderation) handleMemberRemove(evt *bot.EventData) error {
	removed := evt.GuildMemberRemove()
	return m.Store.DeleteUserJoins(evt.Context(), removed.GuildID, removed.User.ID)
}

// handleGuildCreate greets guilds the bot was just added to and sets them up with default settings.
// Guilds the bot was already in come through here on every connect and are left alone.
func (m *Moderation) handleGuildCreate(evt *bot.EventData) error {
	guild := evt.GuildCreate()
	gw := evt.Shard.Gateway
	ctx := evt.Context()

	channels, err := gw.Channels(guild.ID)
	if err != nil {
		return errors.WithMessage(err, "channels")
	}

	hasText := false
	for _, c := range channels {
		if c.Text {
			hasText = true
			break
		}
	}

	if !hasText {
		logger.WithField("guild", guild.ID).Info("Guild has no text channels, ignoring it")
		return nil
	}

	settings, created, err := m.Settings.GetOrCreate(ctx, guild.ID)
	if err != nil {
		return common.ErrWithCaller(err)
	}
	if !created {
		return nil
	}

	logger.WithField("guild", guild.ID).Info("Joined new guild")

	channelID := bot.DefaultChannel(gw, guild.ID)
	if channelID == 0 {
		return nil
	}

	_, err = gw.SendMessage(channelID, "Hello! I am Safety Jim, `"+settings.Prefix+"` is my default prefix! Visit https://safetyjim.xyz/commands to see available commands.")
	common.LogIgnoreError(err, "failed sending guild greeting", nil)
	return nil
}

func (m *Moderation) handleGuildDelete(evt *bot.EventData) error {
	guildID := evt.GuildDelete().GuildID
	ctx := evt.Context()

	if err := m.Settings.Delete(ctx, guildID); err != nil {
		return common.ErrWithCaller(err)
	}

	return m.Store.DeleteGuildJoins(ctx, guildID)
}
