package commands

import (
	"context"

	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/store"
	"github.com/sirupsen/logrus"
)

// Data is everything a command or message processor gets about the message it's handling
type Data struct {
	ctx context.Context

	Shard *bot.Shard
	GW    bot.Gateway
	Msg   *bot.Message

	// Cmd is nil for message processors
	Cmd *Command
	// Name is the command name as it was typed
	Name string

	Dispatcher *Dispatcher

	failed bool
}

func (d *Data) Context() context.Context {
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

func (d *Data) WithContext(ctx context.Context) *Data {
	cop := new(Data)
	*cop = *d
	cop.ctx = ctx
	return cop
}

func (d *Data) GuildID() int64 {
	return d.Msg.GuildID
}

func (d *Data) ChannelID() int64 {
	return d.Msg.ChannelID
}

func (d *Data) Author() *bot.User {
	return d.Msg.Author
}

func (d *Data) Logger() *logrus.Entry {
	l := logger.WithField("guild", d.GuildID()).WithField("channel", d.ChannelID()).WithField("user", d.Author().ID)
	if d.Cmd != nil {
		l = l.WithField("cmd", d.Cmd.Name)
	}
	return l
}

// Failed reports whether the command told the user it failed
func (d *Data) Failed() bool {
	return d.failed
}

// Reply sends a message in the channel the command was used in
func (d *Data) Reply(content string) (*bot.Message, error) {
	return d.GW.SendMessage(d.ChannelID(), content)
}

// ReplyIgnoreError is Reply for the places where a failed reply changes nothing
func (d *Data) ReplyIgnoreError(content string) {
	if _, err := d.Reply(content); err != nil {
		d.Logger().WithError(err).Warn("Failed sending reply")
	}
}

func (d *Data) ReactSuccess() {
	d.react(bot.EmojiSuccess)
}

// ReactFail reacts with the fail emoji and marks the command as failed
func (d *Data) ReactFail() {
	d.failed = true
	d.react(bot.EmojiFail)
}

func (d *Data) react(emoji string) {
	err := d.GW.AddReaction(d.ChannelID(), d.Msg.ID, emoji)
	if err != nil {
		d.Logger().WithError(err).Debug("Failed reacting to command")
	}
}

// FailMessage is the standard response to anything the user did wrong, a fail reaction and an explanation
func (d *Data) FailMessage(text string) {
	d.ReactFail()
	d.ReplyIgnoreError(text)
}

// SendModActionConfirmation posts text in the channel if the guild wants those messages
func (d *Data) SendModActionConfirmation(settings *store.GuildSettings, text string) {
	if !settings.ModActionConfirmationMessage {
		return
	}

	d.ReplyIgnoreError(text)
}

// AuthorHasPermissions checks the invoking member's permissions in the channel
func (d *Data) AuthorHasPermissions(perms int64) (bool, error) {
	return d.hasPermissions(d.Author().ID, perms)
}

// BotHasPermissions checks the bot's own permissions in the channel
func (d *Data) BotHasPermissions(perms int64) (bool, error) {
	return d.hasPermissions(d.GW.BotUser().ID, perms)
}

func (d *Data) hasPermissions(userID int64, perms int64) (bool, error) {
	p, err := d.GW.Permissions(d.GuildID(), d.ChannelID(), userID)
	if err != nil {
		return false, err
	}

	return bot.HasPermissions(p, perms), nil
}
