package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in  string
		out time.Duration
	}{
		{"10", time.Minute * 10},
		{"10m", time.Minute * 10},
		{"1h", time.Hour},
		{"1day3h", time.Hour * 27},
		{"2 weeks", time.Hour * 24 * 14},
		{"1mo", time.Hour * 24 * 30},
		{"30s", time.Second * 30},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			d, err := ParseDuration(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.out, d)
		})
	}

	_, err := ParseDuration("tomorrow")
	assert.Error(t, err)
}

func TestParseTextAndTime(t *testing.T) {
	now := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)

	text, ts, err := ParseTextAndTime("spamming | 2 days", now)
	require.NoError(t, err)
	assert.Equal(t, "spamming", text)
	require.NotNil(t, ts)
	assert.Equal(t, now.Add(time.Hour*48), *ts)

	text, ts, err = ParseTextAndTime("  just a reason  ", now)
	require.NoError(t, err)
	assert.Equal(t, "just a reason", text)
	assert.Nil(t, ts)

	text, ts, err = ParseTextAndTime("| in 30m", now)
	require.NoError(t, err)
	assert.Equal(t, "", text)
	require.NotNil(t, ts)
	assert.Equal(t, now.Add(time.Minute*30), *ts)

	_, _, err = ParseTextAndTime("reason | complete gibberish", now)
	assert.Equal(t, ErrInvalidTime, err)
}

func TestParseTimeInPast(t *testing.T) {
	now := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := ParseTime("yesterday", now)
	assert.Equal(t, ErrTimeInPast, err)
}
