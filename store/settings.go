package store

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

type WordFilterLevel int

const (
	// WordFilterLow only matches whole words
	WordFilterLow WordFilterLevel = iota
	// WordFilterHigh matches anywhere in the message
	WordFilterHigh
)

// Action is what the bot does on its own when a word filter or an escalation threshold triggers
type Action int

const (
	ActionNothing Action = iota
	ActionWarn
	ActionMute
	ActionKick
	ActionBan
	ActionSoftban
	ActionHardban
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionMute:
		return "mute"
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	case ActionSoftban:
		return "softban"
	case ActionHardban:
		return "hardban"
	}
	return "nothing"
}

// ParseAction is the inverse of Action.String
func ParseAction(s string) (Action, bool) {
	for a := ActionNothing; a <= ActionHardban; a++ {
		if a.String() == s {
			return a, true
		}
	}
	return ActionNothing, false
}

// DurationType is the unit of an automatic action's duration
type DurationType int

const (
	DurationSeconds DurationType = iota
	DurationMinutes
	DurationHours
	DurationDays
)

func (d DurationType) Unit() time.Duration {
	switch d {
	case DurationMinutes:
		return time.Minute
	case DurationHours:
		return time.Hour
	case DurationDays:
		return time.Hour * 24
	}
	return time.Second
}

const (
	DefaultWelcomeMessage     = "Welcome to $guild $user!"
	DefaultHoldingRoomMinutes = 3
)

type GuildSettings struct {
	GuildID int64 `db:"guild_id"`

	Prefix         string `db:"prefix"`
	NoSpacePrefix  bool   `db:"no_space_prefix"`
	SilentCommands bool   `db:"silent_commands"`
	// Posts a short summary in the channel after a successful moderation command
	ModActionConfirmationMessage bool `db:"mod_action_confirmation_message"`

	ModLog          bool  `db:"mod_log"`
	ModLogChannelID int64 `db:"mod_log_channel_id"`

	HoldingRoom        bool       `db:"holding_room"`
	HoldingRoomRoleID  null.Int64 `db:"holding_room_role_id"`
	HoldingRoomMinutes int        `db:"holding_room_minutes"`

	WelcomeMessage          bool   `db:"welcome_message"`
	WelcomeMessageChannelID int64  `db:"welcome_message_channel_id"`
	Message                 string `db:"message"`

	WordFilter                   bool            `db:"word_filter"`
	WordFilterBlocklist          null.String     `db:"word_filter_blocklist"`
	WordFilterLevel              WordFilterLevel `db:"word_filter_level"`
	WordFilterAction             Action          `db:"word_filter_action"`
	WordFilterActionDuration     int             `db:"word_filter_action_duration"`
	WordFilterActionDurationType DurationType    `db:"word_filter_action_duration_type"`

	InviteLinkRemover                   bool         `db:"invite_link_remover"`
	InviteLinkRemoverAction             Action       `db:"invite_link_remover_action"`
	InviteLinkRemoverActionDuration     int          `db:"invite_link_remover_action_duration"`
	InviteLinkRemoverActionDurationType DurationType `db:"invite_link_remover_action_duration_type"`

	WarnThreshold          int          `db:"warn_threshold"`
	WarnAction             Action       `db:"warn_action"`
	WarnActionDuration     int          `db:"warn_action_duration"`
	WarnActionDurationType DurationType `db:"warn_action_duration_type"`

	MuteThreshold          int          `db:"mute_threshold"`
	MuteAction             Action       `db:"mute_action"`
	MuteActionDuration     int          `db:"mute_action_duration"`
	MuteActionDurationType DurationType `db:"mute_action_duration_type"`

	KickThreshold          int          `db:"kick_threshold"`
	KickAction             Action       `db:"kick_action"`
	KickActionDuration     int          `db:"kick_action_duration"`
	KickActionDurationType DurationType `db:"kick_action_duration_type"`

	SoftbanThreshold          int          `db:"softban_threshold"`
	SoftbanAction             Action       `db:"softban_action"`
	SoftbanActionDuration     int          `db:"softban_action_duration"`
	SoftbanActionDurationType DurationType `db:"softban_action_duration_type"`
}

// DefaultSettings returns the settings a guild starts out with, defaultChannelID
// is used for both the mod log and the welcome message
func DefaultSettings(guildID int64, prefix string, defaultChannelID int64) *GuildSettings {
	return &GuildSettings{
		GuildID:                             guildID,
		Prefix:                              prefix,
		ModActionConfirmationMessage:        true,
		ModLogChannelID:                     defaultChannelID,
		HoldingRoomMinutes:                  DefaultHoldingRoomMinutes,
		WelcomeMessageChannelID:             defaultChannelID,
		Message:                             DefaultWelcomeMessage,
		WordFilterLevel:                     WordFilterLow,
		WordFilterAction:                    ActionWarn,
		WordFilterActionDurationType:        DurationMinutes,
		InviteLinkRemoverAction:             ActionWarn,
		InviteLinkRemoverActionDurationType: DurationMinutes,
		WarnActionDurationType:              DurationMinutes,
		MuteActionDurationType:              DurationMinutes,
		KickActionDurationType:              DurationMinutes,
		SoftbanActionDurationType:           DurationMinutes,
	}
}

// Copy returns a shallow copy, all fields are values so this is enough to not share state
func (s *GuildSettings) Copy() *GuildSettings {
	cop := *s
	return &cop
}

// ValidPrefix reports whether p can be used as a prefix: non empty and no whitespace
func ValidPrefix(p string) bool {
	return p != "" && !strings.ContainsAny(p, " \t\r\n")
}

// Threshold is the escalation rule configured for one kind of action
type Threshold struct {
	Threshold    int
	Action       Action
	Duration     int
	DurationType DurationType
}

// ActionDuration is the duration of the automatic action, only ban and mute use it
func (t Threshold) ActionDuration() time.Duration {
	if t.Duration <= 0 {
		return 0
	}
	return time.Duration(t.Duration) * t.DurationType.Unit()
}

func (s *GuildSettings) WarnThresholdRule() Threshold {
	return Threshold{s.WarnThreshold, s.WarnAction, s.WarnActionDuration, s.WarnActionDurationType}
}

func (s *GuildSettings) MuteThresholdRule() Threshold {
	return Threshold{s.MuteThreshold, s.MuteAction, s.MuteActionDuration, s.MuteActionDurationType}
}

func (s *GuildSettings) KickThresholdRule() Threshold {
	return Threshold{s.KickThreshold, s.KickAction, s.KickActionDuration, s.KickActionDurationType}
}

func (s *GuildSettings) SoftbanThresholdRule() Threshold {
	return Threshold{s.SoftbanThreshold, s.SoftbanAction, s.SoftbanActionDuration, s.SoftbanActionDurationType}
}

// WordFilterRule is the word filter action expressed as a threshold rule, so it can run through the same path
func (s *GuildSettings) WordFilterRule() Threshold {
	return Threshold{1, s.WordFilterAction, s.WordFilterActionDuration, s.WordFilterActionDurationType}
}

// InviteLinkRemoverRule is the invite link remover action expressed as a threshold rule
func (s *GuildSettings) InviteLinkRemoverRule() Threshold {
	return Threshold{1, s.InviteLinkRemoverAction, s.InviteLinkRemoverActionDuration, s.InviteLinkRemoverActionDurationType}
}
