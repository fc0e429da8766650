package settings

import (
	"context"
	"sync"
	"testing"

	"github.com/safetyjim/safetyjim/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

// countingStore counts settings loads so tests can tell cache hits from misses
type countingStore struct {
	*store.MemoryStore

	mu    sync.Mutex
	loads int
}

func (c *countingStore) GetSettings(ctx context.Context, guildID int64) (*store.GuildSettings, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.MemoryStore.GetSettings(ctx, guildID)
}

func (c *countingStore) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func newTestCache() (*Cache, *countingStore) {
	st := &countingStore{MemoryStore: store.NewMemoryStore()}
	c := NewCache(st)
	c.DefaultChannel = func(ctx context.Context, guildID int64) int64 { return 500 }
	return c, st
}

func TestGetCreatesDefaults(t *testing.T) {
	c, st := newTestCache()
	defer c.Stop()

	s, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "-mod", s.Prefix)
	assert.Equal(t, int64(500), s.ModLogChannelID)
	assert.Equal(t, int64(500), s.WelcomeMessageChannelID)
	assert.Equal(t, store.DefaultHoldingRoomMinutes, s.HoldingRoomMinutes)
	assert.True(t, s.ModActionConfirmationMessage)

	stored, err := st.MemoryStore.GetSettings(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestGetIsCached(t *testing.T) {
	c, st := newTestCache()
	defer c.Stop()

	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), 1)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, st.Loads())
}

func TestGetOrCreate(t *testing.T) {
	c, st := newTestCache()
	defer c.Stop()
	ctx := context.Background()

	s, created, err := c.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "-mod", s.Prefix)

	_, created, err = c.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, st.Loads())

	// a row written by another process is loaded, not created
	_, err = st.MemoryStore.CreateSettings(ctx, store.DefaultSettings(2, "!", 0))
	require.NoError(t, err)
	_, created, err = c.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGetReturnsCopies(t *testing.T) {
	c, _ := newTestCache()
	defer c.Stop()

	s, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	s.Prefix = "mutated"

	again, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "-mod", again.Prefix)
}

func TestUpdateWritesThrough(t *testing.T) {
	c, st := newTestCache()
	defer c.Stop()
	ctx := context.Background()

	s, err := c.Get(ctx, 1)
	require.NoError(t, err)

	s.Prefix = "!jim"
	s.HoldingRoomRoleID = null.Int64From(9)
	require.NoError(t, c.Update(ctx, s))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "!jim", got.Prefix)
	assert.Equal(t, 1, st.Loads(), "update should refresh the cache, not invalidate it")

	stored, err := st.MemoryStore.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "!jim", stored.Prefix)
}

func TestUpdateRejectsBadPrefix(t *testing.T) {
	c, _ := newTestCache()
	defer c.Stop()
	ctx := context.Background()

	s, err := c.Get(ctx, 1)
	require.NoError(t, err)

	for _, p := range []string{"", "two words", "tab\there"} {
		s.Prefix = p
		assert.Equal(t, ErrInvalidPrefix, c.Update(ctx, s))
	}

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "-mod", got.Prefix)
}

func TestDeleteAndInvalidate(t *testing.T) {
	c, st := newTestCache()
	defer c.Stop()
	ctx := context.Background()

	_, err := c.Get(ctx, 1)
	require.NoError(t, err)

	c.Invalidate(1)
	_, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Loads())

	require.NoError(t, c.Delete(ctx, 1))
	_, err = st.MemoryStore.GetSettings(ctx, 1)
	assert.Equal(t, store.ErrNotFound, err)

	// first contact again recreates the defaults
	s, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "-mod", s.Prefix)
}

func TestUpdateDropsWordFilter(t *testing.T) {
	c, _ := newTestCache()
	defer c.Stop()
	ctx := context.Background()

	s, err := c.Get(ctx, 1)
	require.NoError(t, err)
	s.WordFilter = true
	s.WordFilterBlocklist = null.StringFrom("heck")
	require.NoError(t, c.Update(ctx, s))
	assert.True(t, c.WordFilters.Match(s, "what the heck"))

	s.WordFilterBlocklist = null.StringFrom("darn")
	require.NoError(t, c.Update(ctx, s))
	assert.False(t, c.WordFilters.Match(s, "what the heck"))
	assert.True(t, c.WordFilters.Match(s, "darn it"))
}
