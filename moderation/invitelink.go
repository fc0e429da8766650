package moderation

import (
	"strings"

	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/store"
)

const inviteLinkReason = "Sending invite links"

var inviteLinkHosts = []string{"discord.gg/", "discord.com/invite/", "discordapp.com/invite/"}

// ContainsInviteLink reports whether s has a discord invite in it anywhere
func ContainsInviteLink(s string) bool {
	s = strings.ToLower(s)
	for _, h := range inviteLinkHosts {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// inviteLinkProcessor deletes invite links posted by non staff and runs the invite link remover action
func (m *Moderation) inviteLinkProcessor(data *commands.Data, settings *store.GuildSettings) (bool, error) {
	if !settings.InviteLinkRemover || !ContainsInviteLink(data.Msg.Content) {
		return false, nil
	}

	return m.removeAndAct(data, settings, settings.InviteLinkRemoverRule(), inviteLinkReason)
}
