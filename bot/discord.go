package bot

import (
	"net/http"
	"strconv"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/safetyjim/safetyjim/common"
)

// DiscordGateway is the Gateway of a live discordgo session
type DiscordGateway struct {
	Session *discordgo.Session
}

var _ Gateway = (*DiscordGateway)(nil)

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// mapErr turns discord 404's into ErrNotFound
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if errors.Is(err, discordgo.ErrStateNotFound) {
		return ErrNotFound
	}

	return errors.WithStackIf(err)
}

func convertUser(u *discordgo.User) *User {
	if u == nil {
		return nil
	}

	return &User{
		ID:            parseID(u.ID),
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Bot:           u.Bot,
	}
}

func convertMember(guildID int64, m *discordgo.Member) *Member {
	roles := make([]int64, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, parseID(r))
	}

	return &Member{
		GuildID: guildID,
		User:    convertUser(m.User),
		Nick:    m.Nick,
		Roles:   roles,
	}
}

func convertMessage(m *discordgo.Message) *Message {
	mentions := make([]*User, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentions = append(mentions, convertUser(u))
	}

	return &Message{
		ID:        parseID(m.ID),
		ChannelID: parseID(m.ChannelID),
		GuildID:   parseID(m.GuildID),
		Author:    convertUser(m.Author),
		Content:   m.Content,
		Mentions:  mentions,
	}
}

func (d *DiscordGateway) BotUser() *User {
	d.Session.State.RLock()
	defer d.Session.State.RUnlock()

	return convertUser(d.Session.State.User)
}

func (d *DiscordGateway) HasGuild(guildID int64) bool {
	g, err := d.Session.State.Guild(common.StrID(guildID))
	return err == nil && !g.Unavailable
}

func (d *DiscordGateway) Guild(guildID int64) (*Guild, error) {
	g, err := d.Session.State.Guild(common.StrID(guildID))
	if err != nil {
		g, err = d.Session.Guild(common.StrID(guildID))
		if err != nil {
			return nil, mapErr(err)
		}
	}

	return &Guild{
		ID:      guildID,
		Name:    g.Name,
		OwnerID: parseID(g.OwnerID),
	}, nil
}

func (d *DiscordGateway) Channels(guildID int64) ([]*Channel, error) {
	channels, err := d.Session.GuildChannels(common.StrID(guildID))
	if err != nil {
		return nil, mapErr(err)
	}

	result := make([]*Channel, 0, len(channels))
	for _, c := range channels {
		result = append(result, &Channel{
			ID:       parseID(c.ID),
			GuildID:  guildID,
			Name:     c.Name,
			Position: c.Position,
			Text:     c.Type == discordgo.ChannelTypeGuildText,
		})
	}

	return result, nil
}

func (d *DiscordGateway) Roles(guildID int64) ([]*Role, error) {
	roles, err := d.Session.GuildRoles(common.StrID(guildID))
	if err != nil {
		return nil, mapErr(err)
	}

	result := make([]*Role, 0, len(roles))
	for _, r := range roles {
		result = append(result, &Role{ID: parseID(r.ID), Name: r.Name})
	}
	return result, nil
}

func (d *DiscordGateway) Member(guildID, userID int64) (*Member, error) {
	m, err := d.Session.State.Member(common.StrID(guildID), common.StrID(userID))
	if err != nil {
		m, err = d.Session.GuildMember(common.StrID(guildID), common.StrID(userID))
		if err != nil {
			return nil, mapErr(err)
		}
	}

	return convertMember(guildID, m), nil
}

// Members returns the members from state when it has all of them, otherwise pages through the api
func (d *DiscordGateway) Members(guildID int64) ([]*Member, error) {
	if g, err := d.Session.State.Guild(common.StrID(guildID)); err == nil {
		d.Session.State.RLock()
		complete := g.MemberCount > 0 && len(g.Members) >= g.MemberCount
		var result []*Member
		if complete {
			result = make([]*Member, 0, len(g.Members))
			for _, m := range g.Members {
				result = append(result, convertMember(guildID, m))
			}
		}
		d.Session.State.RUnlock()

		if complete {
			return result, nil
		}
	}

	var result []*Member
	after := ""
	for {
		members, err := d.Session.GuildMembers(common.StrID(guildID), after, 1000)
		if err != nil {
			return nil, mapErr(err)
		}

		for _, m := range members {
			result = append(result, convertMember(guildID, m))
		}

		if len(members) < 1000 {
			return result, nil
		}
		after = members[len(members)-1].User.ID
	}
}

func (d *DiscordGateway) User(userID int64) (*User, error) {
	u, err := d.Session.User(common.StrID(userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return convertUser(u), nil
}

func (d *DiscordGateway) Permissions(guildID, channelID, userID int64) (int64, error) {
	perms, err := d.Session.State.UserChannelPermissions(common.StrID(userID), common.StrID(channelID))
	if err == nil {
		return perms, nil
	}

	perms, err = d.Session.UserChannelPermissions(common.StrID(userID), common.StrID(channelID))
	return perms, mapErr(err)
}

func (d *DiscordGateway) SendMessage(channelID int64, content string) (*Message, error) {
	m, err := d.Session.ChannelMessageSend(common.StrID(channelID), content)
	if err != nil {
		return nil, mapErr(err)
	}
	return convertMessage(m), nil
}

func (d *DiscordGateway) SendDM(userID int64, content string) error {
	ch, err := d.Session.UserChannelCreate(common.StrID(userID))
	if err != nil {
		return mapErr(err)
	}

	_, err = d.Session.ChannelMessageSend(ch.ID, content)
	return mapErr(err)
}

func (d *DiscordGateway) AddReaction(channelID, messageID int64, emoji string) error {
	return mapErr(d.Session.MessageReactionAdd(common.StrID(channelID), common.StrID(messageID), emoji))
}

func (d *DiscordGateway) DeleteMessage(channelID, messageID int64) error {
	return mapErr(d.Session.ChannelMessageDelete(common.StrID(channelID), common.StrID(messageID)))
}

func (d *DiscordGateway) CreateRole(guildID int64, name string, permissions int64) (*Role, error) {
	r, err := d.Session.GuildRoleCreate(common.StrID(guildID), &discordgo.RoleParams{
		Name:        name,
		Permissions: &permissions,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &Role{ID: parseID(r.ID), Name: r.Name}, nil
}

func (d *DiscordGateway) DenyRoleInChannel(channelID, roleID int64, deny int64) error {
	return mapErr(d.Session.ChannelPermissionSet(common.StrID(channelID), common.StrID(roleID), discordgo.PermissionOverwriteTypeRole, 0, deny))
}

func (d *DiscordGateway) AddMemberRole(guildID, userID, roleID int64) error {
	return mapErr(d.Session.GuildMemberRoleAdd(common.StrID(guildID), common.StrID(userID), common.StrID(roleID)))
}

func (d *DiscordGateway) RemoveMemberRole(guildID, userID, roleID int64) error {
	return mapErr(d.Session.GuildMemberRoleRemove(common.StrID(guildID), common.StrID(userID), common.StrID(roleID)))
}

func (d *DiscordGateway) Ban(guildID, userID int64, reason string, deleteMessageDays int) error {
	return mapErr(d.Session.GuildBanCreateWithReason(common.StrID(guildID), common.StrID(userID), reason, deleteMessageDays))
}

func (d *DiscordGateway) Unban(guildID, userID int64) error {
	return mapErr(d.Session.GuildBanDelete(common.StrID(guildID), common.StrID(userID)))
}

func (d *DiscordGateway) Bans(guildID int64) ([]*User, error) {
	var result []*User
	after := ""
	for {
		bans, err := d.Session.GuildBans(common.StrID(guildID), 1000, "", after)
		if err != nil {
			return nil, mapErr(err)
		}

		for _, b := range bans {
			result = append(result, convertUser(b.User))
		}

		if len(bans) < 1000 {
			return result, nil
		}
		after = bans[len(bans)-1].User.ID
	}
}

func (d *DiscordGateway) Kick(guildID, userID int64, reason string) error {
	return mapErr(d.Session.GuildMemberDeleteWithReason(common.StrID(guildID), common.StrID(userID), reason))
}
