package common

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"emperror.dev/errors"
)

// ParseDuration parses a compact duration like "1day3h" or "2w", a bare number is minutes
func ParseDuration(str string) (time.Duration, error) {
	var dur time.Duration
	var numBuf, modBuf string

	flush := func() error {
		if numBuf == "" {
			if modBuf != "" {
				return errors.New("no amount given for '" + modBuf + "'")
			}
			return nil
		}

		d, err := durationComponent(numBuf, modBuf)
		if err != nil {
			return err
		}

		dur += d
		numBuf, modBuf = "", ""
		return nil
	}

	for _, v := range strings.ToLower(str) {
		if unicode.IsSpace(v) {
			continue
		}

		if unicode.IsDigit(v) {
			if modBuf != "" {
				if err := flush(); err != nil {
					return 0, err
				}
			}
			numBuf += string(v)
			continue
		}

		modBuf += string(v)
	}

	if err := flush(); err != nil {
		return 0, errors.WrapIf(err, "not a duration")
	}

	return dur, nil
}

func durationComponent(numStr, modifier string) (time.Duration, error) {
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, errors.WithStackIf(err)
	}

	d := time.Duration(n)

	switch {
	case modifier == "", modifier == "m", strings.HasPrefix(modifier, "min"):
		return d * time.Minute, nil
	case strings.HasPrefix(modifier, "mo"):
		return d * time.Hour * 24 * 30, nil
	case strings.HasPrefix(modifier, "s"):
		return d * time.Second, nil
	case strings.HasPrefix(modifier, "h"):
		return d * time.Hour, nil
	case strings.HasPrefix(modifier, "d"):
		return d * time.Hour * 24, nil
	case strings.HasPrefix(modifier, "w"):
		return d * time.Hour * 24 * 7, nil
	case strings.HasPrefix(modifier, "y"):
		return d * time.Hour * 24 * 365, nil
	}

	return 0, errors.New("couldn't figure out what '" + numStr + modifier + "' was")
}
