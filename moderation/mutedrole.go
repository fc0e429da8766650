package moderation

import (
	"strings"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
)

const MutedRoleName = "Muted"

// mutedRoleDeny is what the Muted role is denied in every channel
const mutedRoleDeny = bot.PermissionSendMessages | bot.PermissionAddReactions | bot.PermissionVoiceSpeak

// FindMutedRole returns the guild's role called Muted, or bot.ErrNotFound
func FindMutedRole(gw bot.Gateway, guildID int64) (*bot.Role, error) {
	roles, err := gw.Roles(guildID)
	if err != nil {
		return nil, errors.WithMessage(err, "roles")
	}

	for _, r := range roles {
		if strings.EqualFold(r.Name, MutedRoleName) {
			return r, nil
		}
	}

	return nil, bot.ErrNotFound
}

// SetupMutedRole finds or creates the Muted role and makes sure it's denied sending messages,
// adding reactions and speaking in every channel of the guild
func SetupMutedRole(gw bot.Gateway, guildID int64) (*bot.Role, error) {
	role, err := FindMutedRole(gw, guildID)
	if err != nil {
		if err != bot.ErrNotFound {
			return nil, err
		}

		role, err = gw.CreateRole(guildID, MutedRoleName, 0)
		if err != nil {
			return nil, errors.WithMessage(err, "create muted role")
		}

		logger.WithField("guild", guildID).Info("Created muted role")
	}

	channels, err := gw.Channels(guildID)
	if err != nil {
		return nil, errors.WithMessage(err, "channels")
	}

	for _, c := range channels {
		err := gw.DenyRoleInChannel(c.ID, role.ID, mutedRoleDeny)
		if err != nil {
			// a channel the bot can't manage shouldn't stop the mute
			logger.WithError(err).WithField("guild", guildID).WithField("channel", c.ID).Warn("Failed setting muted role overwrite")
		}
	}

	return role, nil
}
