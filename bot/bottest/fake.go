// Package bottest has an in-memory bot.Gateway for tests
package bottest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/safetyjim/safetyjim/bot"
)

// Call is one recorded side effect
type Call struct {
	Method string
	Args   []interface{}
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

type SentMessage struct {
	ChannelID int64
	Content   string
}

// FakeGateway is a single guild-aware fake of a discord connection. Every mutating
// call is recorded in Calls, and Fail makes a method return an error.
type FakeGateway struct {
	mu sync.Mutex

	Self       *bot.User
	Guilds     map[int64]*bot.Guild
	ChannelMap map[int64][]*bot.Channel
	RoleMap    map[int64][]*bot.Role
	MemberMap  map[int64]map[int64]*bot.Member
	Users      map[int64]*bot.User
	BanList    map[int64]map[int64]bool
	// Perms is keyed by user, applies to every channel
	Perms map[int64]int64

	Messages []SentMessage
	DMs      []SentMessage
	Calls    []Call

	failures map[string]error
	nextID   int64
}

var _ bot.Gateway = (*FakeGateway)(nil)

func NewFakeGateway(self *bot.User) *FakeGateway {
	return &FakeGateway{
		Self:       self,
		Guilds:     make(map[int64]*bot.Guild),
		ChannelMap: make(map[int64][]*bot.Channel),
		RoleMap:    make(map[int64][]*bot.Role),
		MemberMap:  make(map[int64]map[int64]*bot.Member),
		Users:      map[int64]*bot.User{self.ID: self},
		BanList:    make(map[int64]map[int64]bool),
		Perms:      make(map[int64]int64),
		failures:   make(map[string]error),
		nextID:     1000,
	}
}

// AddGuild adds a guild with one text channel that everyone can use
func (f *FakeGateway) AddGuild(guildID, channelID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Guilds[guildID] = &bot.Guild{ID: guildID, Name: fmt.Sprintf("guild-%d", guildID)}
	f.ChannelMap[guildID] = append(f.ChannelMap[guildID], &bot.Channel{ID: channelID, GuildID: guildID, Name: "general", Text: true})
	f.MemberMap[guildID] = map[int64]*bot.Member{f.Self.ID: {GuildID: guildID, User: f.Self}}
}

func (f *FakeGateway) RemoveGuild(guildID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Guilds, guildID)
}

func (f *FakeGateway) AddMember(guildID int64, u *bot.User, nick string, perms int64) *bot.Member {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := &bot.Member{GuildID: guildID, User: u, Nick: nick}
	if f.MemberMap[guildID] == nil {
		f.MemberMap[guildID] = make(map[int64]*bot.Member)
	}
	f.MemberMap[guildID][u.ID] = m
	f.Users[u.ID] = u
	f.Perms[u.ID] = perms
	return m
}

func (f *FakeGateway) AddRole(guildID int64, name string) *bot.Role {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	r := &bot.Role{ID: f.nextID, Name: name}
	f.RoleMap[guildID] = append(f.RoleMap[guildID], r)
	return r
}

// Fail makes every following call of method return err, a nil err clears it
func (f *FakeGateway) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

// CallsTo returns the recorded calls of method
func (f *FakeGateway) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []Call
	for _, c := range f.Calls {
		if c.Method == method {
			result = append(result, c)
		}
	}
	return result
}

func (f *FakeGateway) SentMessages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Messages...)
}

func (f *FakeGateway) SentDMs() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.DMs...)
}

// record must be called with mu held
func (f *FakeGateway) record(method string, args ...interface{}) error {
	if err := f.failures[method]; err != nil {
		return err
	}

	f.Calls = append(f.Calls, Call{Method: method, Args: args})
	return nil
}

func (f *FakeGateway) BotUser() *bot.User {
	return f.Self
}

func (f *FakeGateway) HasGuild(guildID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Guilds[guildID]
	return ok
}

func (f *FakeGateway) Guild(guildID int64) (*bot.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.Guilds[guildID]
	if !ok {
		return nil, bot.ErrNotFound
	}
	cop := *g
	return &cop, nil
}

func (f *FakeGateway) Channels(guildID int64) ([]*bot.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failures["Channels"]; err != nil {
		return nil, err
	}
	return append([]*bot.Channel(nil), f.ChannelMap[guildID]...), nil
}

func (f *FakeGateway) Roles(guildID int64) ([]*bot.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failures["Roles"]; err != nil {
		return nil, err
	}
	return append([]*bot.Role(nil), f.RoleMap[guildID]...), nil
}

func (f *FakeGateway) Member(guildID, userID int64) (*bot.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.MemberMap[guildID][userID]
	if !ok {
		return nil, bot.ErrNotFound
	}
	cop := *m
	cop.Roles = append([]int64(nil), m.Roles...)
	return &cop, nil
}

// Members are returned in user id order
func (f *FakeGateway) Members(guildID int64) ([]*bot.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failures["Members"]; err != nil {
		return nil, err
	}

	result := make([]*bot.Member, 0, len(f.MemberMap[guildID]))
	for _, m := range f.MemberMap[guildID] {
		cop := *m
		result = append(result, &cop)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].User.ID < result[j].User.ID
	})
	return result, nil
}

func (f *FakeGateway) User(userID int64) (*bot.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.Users[userID]
	if !ok {
		return nil, bot.ErrNotFound
	}
	return u, nil
}

func (f *FakeGateway) Permissions(guildID, channelID, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if userID == f.Self.ID {
		if p, ok := f.Perms[userID]; ok {
			return p, nil
		}
		return bot.PermissionAdministrator, nil
	}
	return f.Perms[userID], nil
}

func (f *FakeGateway) SendMessage(channelID int64, content string) (*bot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("SendMessage", channelID, content); err != nil {
		return nil, err
	}

	f.nextID++
	f.Messages = append(f.Messages, SentMessage{ChannelID: channelID, Content: content})
	return &bot.Message{ID: f.nextID, ChannelID: channelID, Author: f.Self, Content: content}, nil
}

func (f *FakeGateway) SendDM(userID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("SendDM", userID, content); err != nil {
		return err
	}

	f.DMs = append(f.DMs, SentMessage{ChannelID: userID, Content: content})
	return nil
}

func (f *FakeGateway) AddReaction(channelID, messageID int64, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("AddReaction", channelID, messageID, emoji)
}

func (f *FakeGateway) DeleteMessage(channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DeleteMessage", channelID, messageID)
}

func (f *FakeGateway) CreateRole(guildID int64, name string, permissions int64) (*bot.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("CreateRole", guildID, name); err != nil {
		return nil, err
	}

	f.nextID++
	r := &bot.Role{ID: f.nextID, Name: name}
	f.RoleMap[guildID] = append(f.RoleMap[guildID], r)
	return r, nil
}

func (f *FakeGateway) DenyRoleInChannel(channelID, roleID int64, deny int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DenyRoleInChannel", channelID, roleID, deny)
}

func (f *FakeGateway) AddMemberRole(guildID, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("AddMemberRole", guildID, userID, roleID); err != nil {
		return err
	}

	if m, ok := f.MemberMap[guildID][userID]; ok && !m.HasRole(roleID) {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (f *FakeGateway) RemoveMemberRole(guildID, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("RemoveMemberRole", guildID, userID, roleID); err != nil {
		return err
	}

	if m, ok := f.MemberMap[guildID][userID]; ok {
		for i, r := range m.Roles {
			if r == roleID {
				m.Roles = append(m.Roles[:i], m.Roles[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (f *FakeGateway) Ban(guildID, userID int64, reason string, deleteMessageDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("Ban", guildID, userID, reason, deleteMessageDays); err != nil {
		return err
	}

	if f.BanList[guildID] == nil {
		f.BanList[guildID] = make(map[int64]bool)
	}
	f.BanList[guildID][userID] = true
	delete(f.MemberMap[guildID], userID)
	return nil
}

func (f *FakeGateway) Unban(guildID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("Unban", guildID, userID); err != nil {
		return err
	}

	delete(f.BanList[guildID], userID)
	return nil
}

func (f *FakeGateway) Bans(guildID int64) ([]*bot.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*bot.User
	for id := range f.BanList[guildID] {
		if u, ok := f.Users[id]; ok {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (f *FakeGateway) Kick(guildID, userID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("Kick", guildID, userID, reason); err != nil {
		return err
	}

	delete(f.MemberMap[guildID], userID)
	return nil
}
