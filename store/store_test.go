package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

// runStoreTests runs the behaviour every ActionStore implementation has to share
func runStoreTests(t *testing.T, newStore func(t *testing.T) ActionStore) {
	t.Run("BanSupersede", func(t *testing.T) { testBanSupersede(t, newStore(t)) })
	t.Run("DueAndResolve", func(t *testing.T) { testDueAndResolve(t, newStore(t)) })
	t.Run("MuteLifecycle", func(t *testing.T) { testMuteLifecycle(t, newStore(t)) })
	t.Run("Infractions", func(t *testing.T) { testInfractions(t, newStore(t)) })
	t.Run("Joins", func(t *testing.T) { testJoins(t, newStore(t)) })
	t.Run("Reminders", func(t *testing.T) { testReminders(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("ConcurrentSupersede", func(t *testing.T) { testConcurrentSupersede(t, newStore(t)) })
}

func newBan(guildID, userID int64, expiresAt int64) *Ban {
	b := &Ban{
		ModAction: ModAction{
			GuildID:         guildID,
			UserID:          userID,
			ModeratorUserID: 1,
			CreatedAt:       100,
			Reason:          "spamming",
		},
	}
	if expiresAt > 0 {
		b.ExpiresAt = null.Int64From(expiresAt)
	}
	return b
}

func testBanSupersede(t *testing.T, s ActionStore) {
	ctx := context.Background()

	b1 := newBan(10, 20, 0)
	require.NoError(t, s.CreateBan(ctx, b1))
	assert.NotZero(t, b1.ID)

	b2 := newBan(10, 20, 0)
	require.NoError(t, s.CreateBan(ctx, b2))
	assert.NotEqual(t, b1.ID, b2.ID)

	got1, err := s.GetBan(ctx, b1.ID)
	require.NoError(t, err)
	assert.True(t, got1.Unbanned, "previous ban should be superseded")

	got2, err := s.GetBan(ctx, b2.ID)
	require.NoError(t, err)
	assert.False(t, got2.Unbanned)
	assert.Equal(t, "spamming", got2.Reason)

	// other users in the same guild are not touched
	b3 := newBan(10, 21, 0)
	require.NoError(t, s.CreateBan(ctx, b3))
	got2, err = s.GetBan(ctx, b2.ID)
	require.NoError(t, err)
	assert.False(t, got2.Unbanned)

	_, err = s.GetBan(ctx, 999999)
	assert.Equal(t, ErrNotFound, err)
}

func testDueAndResolve(t *testing.T, s ActionStore) {
	ctx := context.Background()

	due := newBan(10, 20, 500)
	notDue := newBan(10, 21, 2000)
	permanent := newBan(10, 22, 0)
	for _, b := range []*Ban{due, notDue, permanent} {
		require.NoError(t, s.CreateBan(ctx, b))
	}

	bans, err := s.DueBans(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, due.ID, bans[0].ID)

	// expiry exactly at now is due
	bans, err = s.DueBans(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, bans, 1)

	ok, err := s.ResolveBan(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ResolveBan(ctx, due.ID)
	require.NoError(t, err)
	assert.False(t, ok, "resolving twice should not transition again")

	bans, err = s.DueBans(ctx, 1000)
	require.NoError(t, err)
	assert.Empty(t, bans)

	n, err := s.ResolveUserBans(ctx, 10, 22)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testMuteLifecycle(t *testing.T, s ActionStore) {
	ctx := context.Background()

	m1 := &Mute{ModAction: ModAction{GuildID: 1, UserID: 2, ModeratorUserID: 3, CreatedAt: 10, Reason: "a"}, ExpiresAt: null.Int64From(100)}
	require.NoError(t, s.CreateMute(ctx, m1))

	active, err := s.ActiveUserMute(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, active.ID)

	m2 := &Mute{ModAction: ModAction{GuildID: 1, UserID: 2, ModeratorUserID: 3, CreatedAt: 20, Reason: "b"}}
	require.NoError(t, s.CreateMute(ctx, m2))

	got, err := s.GetMute(ctx, m1.ID)
	require.NoError(t, err)
	assert.True(t, got.Unmuted)

	// m1 was superseded so it's no longer due
	mutes, err := s.DueMutes(ctx, 1000)
	require.NoError(t, err)
	assert.Empty(t, mutes)

	n, err := s.CountActionableMutes(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ResolveUserMutes(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.ActiveUserMute(ctx, 1, 2)
	assert.Equal(t, ErrNotFound, err)
}

func testInfractions(t *testing.T, s ActionStore) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateInfraction(ctx, &Infraction{Kind: InfractionWarn, ModAction: ModAction{GuildID: 1, UserID: 2, ModeratorUserID: 3, Reason: DefaultReason}}))
	}
	require.NoError(t, s.CreateInfraction(ctx, &Infraction{Kind: InfractionWarn, ModAction: ModAction{GuildID: 1, UserID: 2, Pardoned: true}}))
	require.NoError(t, s.CreateInfraction(ctx, &Infraction{Kind: InfractionKick, ModAction: ModAction{GuildID: 1, UserID: 2}}))

	n, err := s.CountActionableInfractions(ctx, InfractionWarn, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountActionableInfractions(ctx, InfractionKick, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CountActionableInfractions(ctx, InfractionSoftban, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testJoins(t *testing.T, s ActionStore) {
	ctx := context.Background()

	j1 := &Join{GuildID: 1, UserID: 2, JoinedAt: 0, AllowAt: 180}
	j2 := &Join{GuildID: 1, UserID: 3, JoinedAt: 0, AllowAt: 180}
	j3 := &Join{GuildID: 5, UserID: 3, JoinedAt: 0, AllowAt: 180}
	for _, j := range []*Join{j1, j2, j3} {
		require.NoError(t, s.CreateJoin(ctx, j))
	}

	joins, err := s.DueJoins(ctx, 179)
	require.NoError(t, err)
	assert.Empty(t, joins)

	joins, err = s.DueJoins(ctx, 180)
	require.NoError(t, err)
	assert.Len(t, joins, 3)

	ok, err := s.ResolveJoin(ctx, j1.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.DeleteUserJoins(ctx, 1, 3))
	require.NoError(t, s.DeleteGuildJoins(ctx, 5))

	joins, err = s.DueJoins(ctx, 1000)
	require.NoError(t, err)
	assert.Empty(t, joins)
}

func testReminders(t *testing.T, s ActionStore) {
	ctx := context.Background()

	r := &Reminder{GuildID: 1, ChannelID: 2, UserID: 3, CreatedAt: 10, RemindAt: 50, Message: "feed the cat"}
	require.NoError(t, s.CreateReminder(ctx, r))

	due, err := s.DueReminders(ctx, 60)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "feed the cat", due[0].Message)

	ok, err := s.ResolveReminder(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ResolveReminder(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	due, err = s.DueReminders(ctx, 60)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func testSettings(t *testing.T, s ActionStore) {
	ctx := context.Background()

	_, err := s.GetSettings(ctx, 1)
	assert.Equal(t, ErrNotFound, err)

	assert.Equal(t, ErrNotFound, s.UpdateSettings(ctx, DefaultSettings(1, "-mod", 5)))

	created, err := s.CreateSettings(ctx, DefaultSettings(1, "-mod", 5))
	require.NoError(t, err)
	assert.Equal(t, "-mod", created.Prefix)
	assert.Equal(t, DefaultWelcomeMessage, created.Message)
	assert.Equal(t, int64(5), created.ModLogChannelID)

	// a second create keeps the existing row
	again, err := s.CreateSettings(ctx, DefaultSettings(1, "!", 6))
	require.NoError(t, err)
	assert.Equal(t, "-mod", again.Prefix)

	created.Prefix = "!"
	created.HoldingRoomRoleID = null.Int64From(77)
	created.WarnThreshold = 3
	created.WarnAction = ActionKick
	created.InviteLinkRemover = true
	created.InviteLinkRemoverAction = ActionMute
	created.InviteLinkRemoverActionDuration = 10
	require.NoError(t, s.UpdateSettings(ctx, created))

	got, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "!", got.Prefix)
	assert.Equal(t, null.Int64From(77), got.HoldingRoomRoleID)
	assert.Equal(t, ActionKick, got.WarnThresholdRule().Action)
	assert.True(t, got.InviteLinkRemover)
	assert.Equal(t, time.Minute*10, got.InviteLinkRemoverRule().ActionDuration())

	require.NoError(t, s.DeleteSettings(ctx, 1))
	_, err = s.GetSettings(ctx, 1)
	assert.Equal(t, ErrNotFound, err)
}

func testConcurrentSupersede(t *testing.T, s ActionStore) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.CreateBan(ctx, newBan(40, 50, 100)))
		}()
	}
	wg.Wait()

	// exactly one of them is left unresolved
	bans, err := s.DueBans(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, bans, 1)
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) ActionStore {
		return NewMemoryStore()
	})
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	b := newBan(1, 2, 0)
	require.NoError(t, s.CreateBan(ctx, b))

	b.Reason = "changed after insert"
	got, err := s.GetBan(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "spamming", got.Reason)

	got.Unbanned = true
	again, err := s.GetBan(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, again.Unbanned)
}

func TestParseAction(t *testing.T) {
	for a := ActionNothing; a <= ActionHardban; a++ {
		parsed, ok := ParseAction(a.String())
		assert.True(t, ok)
		assert.Equal(t, a, parsed)
	}

	_, ok := ParseAction("explode")
	assert.False(t, ok)
}
