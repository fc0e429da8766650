package common

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/when"
	"github.com/jonas747/when/rules"
	wcommon "github.com/jonas747/when/rules/common"
	"github.com/jonas747/when/rules/en"
)

var (
	ErrInvalidTime = errors.NewPlain("invalid time")
	ErrTimeInPast  = errors.NewPlain("time is in the past")

	dateParser *when.Parser
)

func init() {
	dateParser = when.New(&rules.Options{
		Distance:     10,
		MatchByOrder: true})

	dateParser.Add(en.All...)
	dateParser.Add(wcommon.All...)
}

// ParseTextAndTime splits "text | time" and parses the time part relative to now.
// The returned time is nil when no time part was given, the text is trimmed but may be empty.
func ParseTextAndTime(in string, now time.Time) (string, *time.Time, error) {
	text := in
	timePart := ""
	if i := strings.Index(in, "|"); i != -1 {
		text = in[:i]
		timePart = in[i+1:]
		// anything after a second pipe is ignored
		if j := strings.Index(timePart, "|"); j != -1 {
			timePart = timePart[:j]
		}
	}

	text = strings.TrimSpace(text)
	timePart = strings.TrimSpace(timePart)
	if timePart == "" {
		return text, nil, nil
	}

	t, err := ParseTime(timePart, now)
	if err != nil {
		return text, nil, err
	}

	return text, &t, nil
}

// ParseTime parses either a short duration ("1d3h", "30m") or a human time ("in 2 days", "tomorrow at 5pm").
// Times that are not after now return ErrTimeInPast.
func ParseTime(s string, now time.Time) (time.Time, error) {
	var t time.Time
	if dur, err := ParseDuration(strings.TrimPrefix(s, "in ")); err == nil && dur != 0 {
		t = now.Add(dur)
	} else {
		r, err := dateParser.Parse(s, now)
		if err != nil || r == nil {
			return t, ErrInvalidTime
		}
		t = r.Time
	}

	if !t.After(now) {
		return t, ErrTimeInPast
	}

	return t, nil
}
