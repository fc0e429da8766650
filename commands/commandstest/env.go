// Package commandstest wires a dispatcher to a fake gateway and an in-memory store for tests
package commandstest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/bot/bottest"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/settings"
	"github.com/safetyjim/safetyjim/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	BotID     int64 = 100000000000000001
	GuildID   int64 = 300000000000000001
	ChannelID int64 = 400000000000000001
	ModID     int64 = 500000000000000001
)

type Env struct {
	T          *testing.T
	GW         *bottest.FakeGateway
	Shard      *bot.Shard
	Store      *store.MemoryStore
	Settings   *settings.Cache
	Registry   *commands.Registry
	Dispatcher *commands.Dispatcher

	mu        sync.Mutex
	nextMsgID int64
}

// NewEnv creates a guild with one channel, the bot and a moderator that can ban, kick and manage roles
func NewEnv(t *testing.T) *Env {
	gw := bottest.NewFakeGateway(&bot.User{ID: BotID, Username: "Safety Jim", Bot: true})
	gw.AddGuild(GuildID, ChannelID)
	gw.AddMember(GuildID, &bot.User{ID: ModID, Username: "moddy"}, "", bot.PermissionBanMembers|bot.PermissionKickMembers|bot.PermissionManageRoles)

	st := store.NewMemoryStore()
	cache := settings.NewCache(st)
	cache.DefaultChannel = func(ctx context.Context, guildID int64) int64 {
		return bot.DefaultChannel(gw, guildID)
	}

	registry := commands.NewRegistry()

	env := &Env{
		T:          t,
		GW:         gw,
		Shard:      bot.NewShard(0, gw, bot.NewEventRouter()),
		Store:      st,
		Settings:   cache,
		Registry:   registry,
		Dispatcher: commands.NewDispatcher(cache, registry),
		nextMsgID:  600000000000000000,
	}

	t.Cleanup(cache.Stop)
	return env
}

// Member adds a member without any permissions
func (e *Env) Member(id int64, username, nick string) *bot.User {
	u := &bot.User{ID: id, Username: username, Discriminator: "0001"}
	e.GW.AddMember(GuildID, u, nick, 0)
	return u
}

// UpdateSettings changes the guild's settings through the cache
func (e *Env) UpdateSettings(f func(s *store.GuildSettings)) {
	s, err := e.Settings.Get(context.Background(), GuildID)
	require.NoError(e.T, err)
	f(s)
	require.NoError(e.T, e.Settings.Update(context.Background(), s))
}

// Message builds a message in the test channel, mentions in content are resolved against the fake gateway
func (e *Env) Message(authorID int64, content string) *bot.Message {
	e.mu.Lock()
	e.nextMsgID++
	id := e.nextMsgID
	e.mu.Unlock()

	author, err := e.GW.User(authorID)
	require.NoError(e.T, err)

	msg := &bot.Message{
		ID:        id,
		ChannelID: ChannelID,
		GuildID:   GuildID,
		Author:    author,
		Content:   content,
	}

	for _, uid := range common.MentionedUserIDs(content) {
		if u, err := e.GW.User(uid); err == nil {
			msg.Mentions = append(msg.Mentions, u)
		}
	}

	return msg
}

// Run dispatches a message and waits for it to be fully handled
func (e *Env) Run(authorID int64, content string) *bot.Message {
	msg := e.Message(authorID, content)
	e.dispatch(msg)
	return msg
}

// RunAsync dispatches a message in the background, the returned channel is closed when it's handled
func (e *Env) RunAsync(authorID int64, content string) (*bot.Message, <-chan struct{}) {
	msg := e.Message(authorID, content)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.dispatch(msg)
	}()
	return msg, done
}

func (e *Env) dispatch(msg *bot.Message) {
	evt := bot.NewEventData(e.Shard, bot.EventMessageCreate, msg.GuildID, &bot.MessageCreate{Message: msg})
	// may run in a goroutine, so no require here
	assert.NoError(e.T, e.Dispatcher.HandleMessageCreate(evt))
}

// WaitConfirmation waits until a confirmation prompt is pending
func (e *Env) WaitConfirmation() {
	require.Eventually(e.T, func() bool {
		return e.Shard.Confirmations.Len() == 1
	}, time.Second*5, time.Millisecond*5)
}

// Reply pushes a message through the shard like the gateway would, returns true if it answered a confirmation
func (e *Env) Reply(authorID int64, content string) bool {
	msg := e.Message(authorID, content)
	before := e.Shard.Confirmations.Len()
	e.Shard.Push(bot.EventMessageCreate, GuildID, &bot.MessageCreate{Message: msg})
	return e.Shard.Confirmations.Len() < before
}

// Reactions returns the emojis added to the message
func (e *Env) Reactions(msg *bot.Message) []string {
	var result []string
	for _, c := range e.GW.CallsTo("AddReaction") {
		if c.Args[1].(int64) == msg.ID {
			result = append(result, c.Args[2].(string))
		}
	}
	return result
}

// LastMessage returns the content of the last message sent by the bot
func (e *Env) LastMessage() string {
	msgs := e.GW.SentMessages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

// SentContents returns the content of every message the bot sent
func (e *Env) SentContents() []string {
	var result []string
	for _, m := range e.GW.SentMessages() {
		result = append(result, m.Content)
	}
	return result
}
