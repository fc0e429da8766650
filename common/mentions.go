package common

import (
	"regexp"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/snowflake"
)

const zeroWidthSpace = "​"

var (
	everyoneReplacer = strings.NewReplacer("@everyone", "@"+zeroWidthSpace+"everyone", "@here", "@"+zeroWidthSpace+"here")

	userMentionRegex = regexp.MustCompile(`^<@!?([0-9]{15,21})>$`)
	anyMentionRegex  = regexp.MustCompile(`<@!?([0-9]{15,21})>`)

	channelMentionRegex = regexp.MustCompile(`^<#([0-9]{15,21})>$`)
)

var ErrNotSnowflake = errors.NewPlain("not a discord id")

// EscapeSpecialMentions adds a zero width space between the '@' and everyone/here
func EscapeSpecialMentions(in string) string {
	return everyoneReplacer.Replace(in)
}

// ParseSnowflake parses a raw numeric discord id
func ParseSnowflake(s string) (int64, error) {
	if s == "" {
		return 0, ErrNotSnowflake
	}

	id, err := snowflake.ParseString(s)
	if err != nil || id <= 0 {
		return 0, ErrNotSnowflake
	}

	return id.Int64(), nil
}

// ParseUserMention returns the id from a <@id> or <@!id> mention, the whole string has to be the mention
func ParseUserMention(s string) (int64, bool) {
	m := userMentionRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

// ParseChannelMention returns the id from a <#id> mention, the whole string has to be the mention
func ParseChannelMention(s string) (int64, bool) {
	m := channelMentionRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

// MentionedUserIDs returns all the user mentions found anywhere in s, in order
func MentionedUserIDs(s string) []int64 {
	var result []int64
	for _, m := range anyMentionRegex.FindAllStringSubmatch(s, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			result = append(result, id)
		}
	}
	return result
}

func UserMention(userID int64) string {
	return "<@" + StrID(userID) + ">"
}

func ChannelMention(channelID int64) string {
	return "<#" + StrID(channelID) + ">"
}

func StrID(id int64) string {
	return strconv.FormatInt(id, 10)
}
