package bot

import (
	"strconv"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

var ErrNotFound = errors.NewPlain("not found")

// Permission bits, same values as discord's
const (
	PermissionKickMembers    = discordgo.PermissionKickMembers
	PermissionBanMembers     = discordgo.PermissionBanMembers
	PermissionAdministrator  = discordgo.PermissionAdministrator
	PermissionAddReactions   = discordgo.PermissionAddReactions
	PermissionSendMessages   = discordgo.PermissionSendMessages
	PermissionManageMessages = discordgo.PermissionManageMessages
	PermissionVoiceSpeak     = discordgo.PermissionVoiceSpeak
	PermissionManageRoles    = discordgo.PermissionManageRoles
	PermissionViewChannel    = discordgo.PermissionViewChannel
)

const (
	EmojiSuccess = "✅"
	EmojiFail    = "❌"
)

type User struct {
	ID            int64
	Username      string
	Discriminator string
	Bot           bool
}

// Tag is the username, with the discriminator for accounts that still have one
func (u *User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// TagAndID is the tag followed by the id in parentheses, used everywhere a user is shown to moderators
func (u *User) TagAndID() string {
	return u.Tag() + " (" + strconv.FormatInt(u.ID, 10) + ")"
}

type Member struct {
	GuildID int64
	User    *User
	Nick    string
	Roles   []int64
}

// DisplayName is the nickname if the member has one, otherwise the username
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

func (m *Member) HasRole(roleID int64) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

type Guild struct {
	ID      int64
	Name    string
	OwnerID int64
}

type Channel struct {
	ID      int64
	GuildID int64
	Name    string
	// Position is used to find the top most channel
	Position int
	Text     bool
}

type Role struct {
	ID   int64
	Name string
}

type Message struct {
	ID        int64
	ChannelID int64
	GuildID   int64
	Author    *User
	Content   string
	Mentions  []*User
}

// Gateway is one shard's connection to discord, every call may block on the network and fail.
// Calls about things that don't exist return ErrNotFound.
type Gateway interface {
	BotUser() *User
	// HasGuild reports whether the guild is available on this connection
	HasGuild(guildID int64) bool
	Guild(guildID int64) (*Guild, error)
	Channels(guildID int64) ([]*Channel, error)
	Roles(guildID int64) ([]*Role, error)

	Member(guildID, userID int64) (*Member, error)
	Members(guildID int64) ([]*Member, error)
	User(userID int64) (*User, error)
	// Permissions returns the member's computed permissions in the channel
	Permissions(guildID, channelID, userID int64) (int64, error)

	SendMessage(channelID int64, content string) (*Message, error)
	SendDM(userID int64, content string) error
	AddReaction(channelID, messageID int64, emoji string) error
	DeleteMessage(channelID, messageID int64) error

	CreateRole(guildID int64, name string, permissions int64) (*Role, error)
	// DenyRoleInChannel sets the role's overwrite in the channel to deny the given permissions
	DenyRoleInChannel(channelID, roleID int64, deny int64) error
	AddMemberRole(guildID, userID, roleID int64) error
	RemoveMemberRole(guildID, userID, roleID int64) error

	Ban(guildID, userID int64, reason string, deleteMessageDays int) error
	Unban(guildID, userID int64) error
	Bans(guildID int64) ([]*User, error)
	Kick(guildID, userID int64, reason string) error
}

// HasPermissions checks the computed permission set, administrators have everything
func HasPermissions(perms int64, required int64) bool {
	if perms&PermissionAdministrator != 0 {
		return true
	}
	return perms&required == required
}

// DefaultChannel returns the top most text channel the bot can send messages in, or 0
func DefaultChannel(gw Gateway, guildID int64) int64 {
	channels, err := gw.Channels(guildID)
	if err != nil {
		return 0
	}

	var best *Channel
	for _, c := range channels {
		if !c.Text {
			continue
		}

		perms, err := gw.Permissions(guildID, c.ID, gw.BotUser().ID)
		if err != nil || !HasPermissions(perms, PermissionViewChannel|PermissionSendMessages) {
			continue
		}

		if best == nil || c.Position < best.Position {
			best = c
		}
	}

	if best == nil {
		return 0
	}
	return best.ID
}
