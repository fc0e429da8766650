package settings

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/safetyjim/safetyjim/store"
)

// WordFilters caches the compiled blocklist matcher of each guild
type WordFilters struct {
	cache *cache.Cache
}

// noFilter is cached for guilds without a usable blocklist so we don't rebuild every message
var noFilter = (*regexp.Regexp)(nil)

func NewWordFilters() *WordFilters {
	return &WordFilters{
		cache: cache.New(time.Minute, time.Minute*5),
	}
}

// Match reports whether content contains a blocklisted word.
// Low level only matches whole words, high level matches anywhere in the message.
func (w *WordFilters) Match(s *store.GuildSettings, content string) bool {
	if !s.WordFilter {
		return false
	}

	re := w.matcher(s)
	return re != nil && re.MatchString(content)
}

// matcherKey changes with the blocklist and level, so a stale copy of the settings
// can never be served the matcher of a newer one or put its own back under the new key
func matcherKey(s *store.GuildSettings) string {
	h := fnv.New64a()
	h.Write([]byte(s.WordFilterBlocklist.String))
	return guildKeyPrefix(s.GuildID) + strconv.Itoa(int(s.WordFilterLevel)) + ":" + strconv.FormatUint(h.Sum64(), 16)
}

func guildKeyPrefix(guildID int64) string {
	return strconv.FormatInt(guildID, 10) + ":"
}

func (w *WordFilters) matcher(s *store.GuildSettings) *regexp.Regexp {
	key := matcherKey(s)
	if v, ok := w.cache.Get(key); ok {
		return v.(*regexp.Regexp)
	}

	re := CompileBlocklist(s.WordFilterBlocklist.String, s.WordFilterLevel)
	w.cache.SetDefault(key, re)
	return re
}

// Invalidate drops every matcher built for the guild
func (w *WordFilters) Invalidate(guildID int64) {
	prefix := guildKeyPrefix(guildID)
	for k := range w.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			w.cache.Delete(k)
		}
	}
}

// CompileBlocklist builds a case insensitive matcher from a comma or newline separated word list,
// it returns nil if the list has no words
func CompileBlocklist(blocklist string, level store.WordFilterLevel) *regexp.Regexp {
	words := strings.FieldsFunc(blocklist, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}

	if len(quoted) == 0 {
		return noFilter
	}

	pattern := "(" + strings.Join(quoted, "|") + ")"
	if level == store.WordFilterLow {
		pattern = `(^|[^\p{L}\p{N}_])` + pattern + `($|[^\p{L}\p{N}_])`
	}

	return regexp.MustCompile("(?i)" + pattern)
}
