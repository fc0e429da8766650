package expiry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/bot/bottest"
	"github.com/safetyjim/safetyjim/commands/commandstest"
	"github.com/safetyjim/safetyjim/moderation"
	"github.com/safetyjim/safetyjim/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

const (
	frankID int64 = 700000000000000010
	fraudID int64 = 700000000000000020
)

type testEnv struct {
	*commandstest.Env
	mod *moderation.Moderation
	r   *Reconciler
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	env := commandstest.NewEnv(t)

	manager := bot.NewShardManager(1, bot.NewEventRouter())
	manager.AddShard(env.GW)

	mod := moderation.New(env.Store, env.Settings)
	te := &testEnv{
		Env: env,
		mod: mod,
		r:   NewReconciler(env.Store, env.Settings, manager, mod),
		now: time.Unix(1700000000, 0),
	}
	te.r.now = func() time.Time { return te.now }
	return te
}

func (e *testEnv) tick(job string) {
	for _, j := range e.r.Jobs {
		if j.Name == job {
			e.r.RunTick(context.Background(), j)
			return
		}
	}
	e.T.Fatalf("no job called %s", job)
}

func (e *testEnv) createBan(guildID, userID int64, expiresAt null.Int64) *store.Ban {
	b := &store.Ban{
		ModAction: store.ModAction{GuildID: guildID, UserID: userID, ModeratorUserID: commandstest.ModID, Reason: "spamming"},
		ExpiresAt: expiresAt,
	}
	require.NoError(e.T, e.Store.CreateBan(context.Background(), b))
	return b
}

func (e *testEnv) createMute(userID int64, expiresAt int64) *store.Mute {
	m := &store.Mute{
		ModAction: store.ModAction{GuildID: commandstest.GuildID, UserID: userID, ModeratorUserID: commandstest.ModID, Reason: "loud"},
		ExpiresAt: null.Int64From(expiresAt),
	}
	require.NoError(e.T, e.Store.CreateMute(context.Background(), m))
	return m
}

func (e *testEnv) ban(id int64) *store.Ban {
	b, err := e.Store.GetBan(context.Background(), id)
	require.NoError(e.T, err)
	return b
}

func (e *testEnv) mute(id int64) *store.Mute {
	m, err := e.Store.GetMute(context.Background(), id)
	require.NoError(e.T, err)
	return m
}

func TestBanExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.Member(frankID, "frank", "")
	require.NoError(t, env.GW.Ban(commandstest.GuildID, frankID, "", 0))

	expired := env.createBan(commandstest.GuildID, frankID, null.Int64From(env.now.Unix()-100))
	later := env.createBan(commandstest.GuildID, fraudID, null.Int64From(env.now.Unix()+100))

	env.tick("bans")

	unbans := env.GW.CallsTo("Unban")
	require.Len(t, unbans, 1)
	assert.Equal(t, frankID, unbans[0].Args[1])
	assert.True(t, env.ban(expired.ID).Unbanned)
	assert.False(t, env.ban(later.ID).Unbanned)

	// nothing new is due, so nothing happens
	env.tick("bans")
	assert.Len(t, env.GW.CallsTo("Unban"), 1)
}

func TestIndefiniteBansNeverExpire(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBan(commandstest.GuildID, frankID, null.Int64{})

	env.now = env.now.Add(time.Hour * 24 * 365 * 10)
	env.tick("bans")

	assert.Empty(t, env.GW.CallsTo("Unban"))
	assert.False(t, env.ban(b.ID).Unbanned)
}

func TestBanExpiryGuildMissing(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBan(commandstest.GuildID, frankID, null.Int64From(env.now.Unix()-100))
	env.GW.RemoveGuild(commandstest.GuildID)

	env.tick("bans")

	assert.Empty(t, env.GW.CallsTo("Unban"))
	assert.True(t, env.ban(b.ID).Unbanned)
}

func TestBanExpiryFailureStillResolves(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBan(commandstest.GuildID, frankID, null.Int64From(env.now.Unix()-100))
	env.GW.Fail("Unban", errors.New("missing permissions"))

	env.tick("bans")

	assert.True(t, env.ban(b.ID).Unbanned)
}

func TestSupersededBanIsNotLifted(t *testing.T) {
	env := newTestEnv(t)
	old := env.createBan(commandstest.GuildID, frankID, null.Int64From(env.now.Unix()-100))

	fetched, err := env.Store.DueBans(context.Background(), env.now.Unix())
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	// a new ban comes in between the fetch and the unban
	env.createBan(commandstest.GuildID, frankID, null.Int64{})

	err = env.r.liftBan(context.Background(), env.GW, fetched[0])
	assert.Equal(t, errAlreadyResolved, err)
	assert.Empty(t, env.GW.CallsTo("Unban"))
	assert.True(t, env.ban(old.ID).Unbanned)
}

func TestMuteExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.Member(frankID, "frank", "")
	role := env.GW.AddRole(commandstest.GuildID, "Muted")
	require.NoError(t, env.GW.AddMemberRole(commandstest.GuildID, frankID, role.ID))

	m := env.createMute(frankID, env.now.Unix()-100)

	env.tick("mutes")

	removed := env.GW.CallsTo("RemoveMemberRole")
	require.Len(t, removed, 1)
	assert.Equal(t, frankID, removed[0].Args[1])
	assert.Equal(t, role.ID, removed[0].Args[2])
	assert.True(t, env.mute(m.ID).Unmuted)

	member, err := env.GW.Member(commandstest.GuildID, frankID)
	require.NoError(t, err)
	assert.False(t, member.HasRole(role.ID))

	env.tick("mutes")
	assert.Len(t, env.GW.CallsTo("RemoveMemberRole"), 1)
}

type staticGateways struct {
	gw bot.Gateway
}

func (s staticGateways) GatewayForGuild(guildID int64) bot.Gateway {
	return s.gw
}

// memberHookGateway runs onMember once, the first time a member is looked up
type memberHookGateway struct {
	*bottest.FakeGateway
	onMember func()
}

func (g *memberHookGateway) Member(guildID, userID int64) (*bot.Member, error) {
	if f := g.onMember; f != nil {
		g.onMember = nil
		f()
	}
	return g.FakeGateway.Member(guildID, userID)
}

func TestMuteDuringExpiryStays(t *testing.T) {
	env := newTestEnv(t)
	frank := env.Member(frankID, "frank", "")
	role := env.GW.AddRole(commandstest.GuildID, "Muted")
	require.NoError(t, env.GW.AddMemberRole(commandstest.GuildID, frankID, role.ID))

	old := env.createMute(frankID, env.now.Unix()-100)

	settings, err := env.Settings.Get(context.Background(), commandstest.GuildID)
	require.NoError(t, err)

	var newID int64
	done := make(chan struct{})
	gw := &memberHookGateway{FakeGateway: env.GW}
	gw.onMember = func() {
		// a moderator mutes frank again, indefinitely, while the old mute is being lifted
		go func() {
			defer close(done)
			ac := &moderation.ActionContext{
				Ctx:       context.Background(),
				GW:        env.GW,
				GuildID:   commandstest.GuildID,
				Moderator: &bot.User{ID: commandstest.ModID, Username: "moddy"},
				Settings:  settings,
			}
			id, err := env.mod.Mute(ac, frank, "still loud", nil)
			assert.NoError(t, err)
			newID = id
		}()

		select {
		case <-done:
		case <-time.After(time.Millisecond * 200):
		}
	}
	env.r.Gateways = staticGateways{gw: gw}

	env.tick("mutes")
	<-done

	assert.True(t, env.mute(old.ID).Unmuted)
	require.NotZero(t, newID)
	assert.False(t, env.mute(newID).Unmuted)

	member, err := env.GW.Member(commandstest.GuildID, frankID)
	require.NoError(t, err)
	assert.True(t, member.HasRole(role.ID))
}

func TestMuteExpiryMemberLeft(t *testing.T) {
	env := newTestEnv(t)
	env.GW.AddRole(commandstest.GuildID, "Muted")
	m := env.createMute(frankID, env.now.Unix()-100)

	env.tick("mutes")

	assert.Empty(t, env.GW.CallsTo("RemoveMemberRole"))
	assert.True(t, env.mute(m.ID).Unmuted)
}

func TestMuteExpiresAtNow(t *testing.T) {
	env := newTestEnv(t)
	env.Member(frankID, "frank", "")
	m := env.createMute(frankID, env.now.Unix())

	env.tick("mutes")
	assert.True(t, env.mute(m.ID).Unmuted)
}

func TestJoinExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.Member(frankID, "frank", "")
	role := env.GW.AddRole(commandstest.GuildID, "Verified")
	env.UpdateSettings(func(s *store.GuildSettings) {
		s.HoldingRoom = true
		s.HoldingRoomRoleID = null.Int64From(role.ID)
	})

	require.NoError(t, env.Store.CreateJoin(context.Background(), &store.Join{
		GuildID: commandstest.GuildID, UserID: frankID, JoinedAt: env.now.Unix() - 180, AllowAt: env.now.Unix(),
	}))

	env.tick("joins")

	added := env.GW.CallsTo("AddMemberRole")
	require.Len(t, added, 1)
	assert.Equal(t, frankID, added[0].Args[1])
	assert.Equal(t, role.ID, added[0].Args[2])

	due, err := env.Store.DueJoins(context.Background(), env.now.Unix())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestJoinExpiryRoleMissing(t *testing.T) {
	env := newTestEnv(t)
	env.Member(frankID, "frank", "")
	env.UpdateSettings(func(s *store.GuildSettings) {
		s.HoldingRoom = true
		s.HoldingRoomRoleID = null.Int64From(12345)
	})

	require.NoError(t, env.Store.CreateJoin(context.Background(), &store.Join{
		GuildID: commandstest.GuildID, UserID: frankID, AllowAt: env.now.Unix() - 1,
	}))

	env.tick("joins")

	assert.Empty(t, env.GW.CallsTo("AddMemberRole"))

	s, err := env.Settings.Get(context.Background(), commandstest.GuildID)
	require.NoError(t, err)
	assert.False(t, s.HoldingRoom)

	due, err := env.Store.DueJoins(context.Background(), env.now.Unix())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestReminderDelivery(t *testing.T) {
	cases := []struct {
		name      string
		setup     func(env *testEnv)
		inChannel bool
	}{
		{"channel", func(env *testEnv) { env.Member(frankID, "frank", "") }, true},
		{"member left", func(env *testEnv) {
			env.GW.Users[frankID] = &bot.User{ID: frankID, Username: "frank"}
		}, false},
		{"send failed", func(env *testEnv) {
			env.Member(frankID, "frank", "")
			env.GW.Fail("SendMessage", errors.New("missing access"))
		}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := newTestEnv(t)
			c.setup(env)

			rem := &store.Reminder{
				GuildID: commandstest.GuildID, ChannelID: commandstest.ChannelID, UserID: frankID,
				RemindAt: env.now.Unix() - 5, Message: "water the plants @everyone",
			}
			require.NoError(t, env.Store.CreateReminder(context.Background(), rem))

			env.tick("reminders")

			if c.inChannel {
				assert.Equal(t, "<@700000000000000010> **Reminder - #1**\nwater the plants @\u200beveryone", env.LastMessage())
				assert.Empty(t, env.GW.SentDMs())
			} else {
				dms := env.GW.SentDMs()
				require.Len(t, dms, 1)
				assert.Equal(t, frankID, dms[0].ChannelID)
				assert.Equal(t, "**Reminder - #1**\nwater the plants @\u200beveryone", dms[0].Content)
			}

			due, err := env.Store.DueReminders(context.Background(), env.now.Unix())
			require.NoError(t, err)
			assert.Empty(t, due)

			env.tick("reminders")
			assert.Equal(t, 1, len(env.GW.SentDMs())+len(env.GW.SentMessages()))
		})
	}
}

type gatewaysFunc func(guildID int64) bot.Gateway

func (f gatewaysFunc) GatewayForGuild(guildID int64) bot.Gateway {
	return f(guildID)
}

func TestRecordPanicDoesNotStopTheBatch(t *testing.T) {
	env := newTestEnv(t)

	const brokenGuildID int64 = 300000000000000099
	env.r.Gateways = gatewaysFunc(func(guildID int64) bot.Gateway {
		if guildID == brokenGuildID {
			panic("broken shard")
		}
		return env.GW
	})

	broken := env.createBan(brokenGuildID, frankID, null.Int64From(env.now.Unix()-100))
	fine := env.createBan(commandstest.GuildID, fraudID, null.Int64From(env.now.Unix()-100))

	assert.NotPanics(t, func() { env.tick("bans") })

	assert.True(t, env.ban(broken.ID).Unbanned)
	assert.True(t, env.ban(fine.ID).Unbanned)
	assert.Len(t, env.GW.CallsTo("Unban"), 1)
}

func TestTickPanicIsRecovered(t *testing.T) {
	env := newTestEnv(t)
	j := &Job{Name: "broken", Interval: time.Second, Tick: func(ctx context.Context, now time.Time) error {
		panic("oh no")
	}}

	assert.NotPanics(t, func() { env.r.RunTick(context.Background(), j) })
}

func TestRunKeepsTicking(t *testing.T) {
	env := newTestEnv(t)

	var ticks int32
	env.r.Jobs = []*Job{{
		Name:     "counter",
		Delay:    time.Millisecond,
		Interval: time.Millisecond * 5,
		Tick: func(ctx context.Context, now time.Time) error {
			// failing ticks don't stop the loop
			atomic.AddInt32(&ticks, 1)
			return errors.New("failed")
		},
	}}

	p := &Plugin{Reconciler: env.r, stopBGWorker: make(chan *sync.WaitGroup)}
	go p.RunBackgroundWorker()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ticks) >= 3
	}, time.Second*5, time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	p.StopBackgroundWorker(&wg)
	wg.Wait()

	stopped := atomic.LoadInt32(&ticks)
	time.Sleep(time.Millisecond * 20)
	assert.Equal(t, stopped, atomic.LoadInt32(&ticks))
}
