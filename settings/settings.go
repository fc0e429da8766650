// Package settings is the read path for guild settings. Everything that needs a guild's
// settings goes through Cache, writes go through Cache.Update so the cached copy is
// never older than the last successful write.
package settings

import (
	"context"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/karlseguin/ccache"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/common/config"
	"github.com/safetyjim/safetyjim/store"
)

var (
	ConfCacheTTLSeconds = config.RegisterOption("jim.settings_cache_ttl_seconds", "How long guild settings stay cached", 60)
	ConfCacheMaxSize    = config.RegisterOption("jim.settings_cache_max_size", "Max number of cached guild settings", 10000)

	ErrInvalidPrefix = errors.NewPlain("prefix can't be empty or contain whitespace")

	logger = common.GetFixedPrefixLogger("settings")
)

const numBuckets = 64

// DefaultChannelFunc returns the channel new settings should point the mod log and welcome message at
type DefaultChannelFunc func(ctx context.Context, guildID int64) int64

type Cache struct {
	store store.SettingsStore
	cache *ccache.Cache
	ttl   time.Duration

	// loads and writes for the same guild are serialized through its bucket, so a load
	// that started before an update can't put the old value back into the cache
	buckets [numBuckets]sync.Mutex

	DefaultPrefix  func() string
	DefaultChannel DefaultChannelFunc

	// dropped together with the settings they were built from
	WordFilters *WordFilters
}

func NewCache(st store.SettingsStore) *Cache {
	return &Cache{
		store:         st,
		cache:         ccache.New(ccache.Configure().MaxSize(int64(ConfCacheMaxSize.GetInt()))),
		ttl:           ConfCacheTTLSeconds.GetSeconds(),
		DefaultPrefix: common.ConfDefaultPrefix.GetString,
		WordFilters:   NewWordFilters(),
	}
}

func cacheKey(guildID int64) string {
	return strconv.FormatInt(guildID, 10)
}

func (c *Cache) bucket(guildID int64) *sync.Mutex {
	b := guildID % numBuckets
	if b < 0 {
		b = -b
	}
	return &c.buckets[b]
}

// Get returns the guild's settings, creating them with defaults if the guild has none yet.
// The returned value is a copy and safe to modify.
func (c *Cache) Get(ctx context.Context, guildID int64) (*store.GuildSettings, error) {
	s, _, err := c.GetOrCreate(ctx, guildID)
	return s, err
}

// GetOrCreate is Get that also reports whether the settings were just created
func (c *Cache) GetOrCreate(ctx context.Context, guildID int64) (s *store.GuildSettings, created bool, err error) {
	if item := c.cache.Get(cacheKey(guildID)); item != nil && !item.Expired() {
		return item.Value().(*store.GuildSettings).Copy(), false, nil
	}

	mu := c.bucket(guildID)
	mu.Lock()
	defer mu.Unlock()

	// someone else may have loaded it while we waited
	if item := c.cache.Get(cacheKey(guildID)); item != nil && !item.Expired() {
		return item.Value().(*store.GuildSettings).Copy(), false, nil
	}

	s, created, err = c.load(ctx, guildID)
	if err != nil {
		return nil, false, err
	}

	c.cache.Set(cacheKey(guildID), s, c.ttl)
	return s.Copy(), created, nil
}

func (c *Cache) load(ctx context.Context, guildID int64) (*store.GuildSettings, bool, error) {
	s, err := c.store.GetSettings(ctx, guildID)
	if err == nil {
		return s, false, nil
	}

	if err != store.ErrNotFound {
		return nil, false, errors.WithMessage(err, "settings load")
	}

	var channelID int64
	if c.DefaultChannel != nil {
		channelID = c.DefaultChannel(ctx, guildID)
	}

	s, err = c.store.CreateSettings(ctx, store.DefaultSettings(guildID, c.DefaultPrefix(), channelID))
	if err != nil {
		return nil, false, errors.WithMessage(err, "settings create")
	}

	logger.WithField("guild", guildID).Info("Created default settings")
	return s, true, nil
}

// Update persists s and then replaces the cached value
func (c *Cache) Update(ctx context.Context, s *store.GuildSettings) error {
	if !store.ValidPrefix(s.Prefix) {
		return ErrInvalidPrefix
	}

	mu := c.bucket(s.GuildID)
	mu.Lock()
	defer mu.Unlock()

	err := c.store.UpdateSettings(ctx, s)
	if err != nil {
		// we don't know what state the row is in now
		c.invalidateLocked(s.GuildID)
		return errors.WithMessage(err, "settings update")
	}

	c.cache.Set(cacheKey(s.GuildID), s.Copy(), c.ttl)
	c.WordFilters.Invalidate(s.GuildID)
	return nil
}

// Delete removes the guild's settings, used when the bot leaves a guild
func (c *Cache) Delete(ctx context.Context, guildID int64) error {
	mu := c.bucket(guildID)
	mu.Lock()
	defer mu.Unlock()

	err := c.store.DeleteSettings(ctx, guildID)
	c.invalidateLocked(guildID)
	return errors.WithMessage(err, "settings delete")
}

// Invalidate drops the cached settings and everything built from them
func (c *Cache) Invalidate(guildID int64) {
	mu := c.bucket(guildID)
	mu.Lock()
	c.invalidateLocked(guildID)
	mu.Unlock()
}

func (c *Cache) invalidateLocked(guildID int64) {
	c.cache.Delete(cacheKey(guildID))
	c.WordFilters.Invalidate(guildID)
}

func (c *Cache) Stop() {
	c.cache.Stop()
}
