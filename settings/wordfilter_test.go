package settings

import (
	"testing"

	"github.com/safetyjim/safetyjim/store"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestCompileBlocklist(t *testing.T) {
	cases := []struct {
		blocklist string
		level     store.WordFilterLevel
		content   string
		match     bool
	}{
		{"heck, darn", store.WordFilterLow, "what the heck", true},
		{"heck, darn", store.WordFilterLow, "HECK!", true},
		{"heck, darn", store.WordFilterLow, "checked", false},
		{"heck, darn", store.WordFilterHigh, "checked", true},
		{"a.b", store.WordFilterHigh, "axb", false},
		{"a.b", store.WordFilterHigh, "see a.b here", true},
		{"heck\ndarn", store.WordFilterLow, "darn", true},
	}

	for _, c := range cases {
		t.Run(c.content, func(t *testing.T) {
			re := CompileBlocklist(c.blocklist, c.level)
			assert.Equal(t, c.match, re.MatchString(c.content))
		})
	}

	assert.Nil(t, CompileBlocklist(" , ,", store.WordFilterLow))
}

func TestWordFiltersDisabled(t *testing.T) {
	w := NewWordFilters()
	s := store.DefaultSettings(1, "-mod", 0)
	s.WordFilterBlocklist = null.StringFrom("heck")

	assert.False(t, w.Match(s, "heck"))

	s.WordFilter = true
	assert.True(t, w.Match(s, "heck"))

	// no blocklist, nothing matches
	s2 := store.DefaultSettings(2, "-mod", 0)
	s2.WordFilter = true
	assert.False(t, w.Match(s2, "heck"))
}

func TestWordFiltersFollowBlocklist(t *testing.T) {
	w := NewWordFilters()

	old := store.DefaultSettings(1, "-mod", 0)
	old.WordFilter = true
	old.WordFilterBlocklist = null.StringFrom("heck")

	updated := old.Copy()
	updated.WordFilterBlocklist = null.StringFrom("darn")

	// a reader still holding the old copy builds its matcher after the update
	assert.True(t, w.Match(old, "heck"))

	assert.False(t, w.Match(updated, "heck"))
	assert.True(t, w.Match(updated, "darn"))

	updated.WordFilterLevel = store.WordFilterHigh
	assert.True(t, w.Match(updated, "darned"))

	w.Invalidate(1)
	assert.Empty(t, w.cache.Items())
}
