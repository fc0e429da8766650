package store

import (
	"github.com/volatiletech/null/v8"
)

// DefaultReason is used for any action created without a reason
const DefaultReason = "No reason specified"

// InfractionKind is the kind of a moderation action that has no expiry
type InfractionKind string

const (
	InfractionKick    InfractionKind = "kick"
	InfractionWarn    InfractionKind = "warn"
	InfractionSoftban InfractionKind = "softban"
	InfractionHardban InfractionKind = "hardban"
)

// ModAction holds the fields shared by every moderator initiated record
type ModAction struct {
	ID              int64  `db:"id"`
	GuildID         int64  `db:"guild_id"`
	UserID          int64  `db:"user_id"`
	ModeratorUserID int64  `db:"moderator_user_id"`
	CreatedAt       int64  `db:"created_at"`
	Reason          string `db:"reason"`
	// pardoned actions don't count towards escalation thresholds
	Pardoned bool `db:"pardoned"`
}

type Ban struct {
	ModAction

	// Null means the ban never expires
	ExpiresAt null.Int64 `db:"expires_at"`
	Unbanned  bool       `db:"unbanned"`
}

type Mute struct {
	ModAction

	ExpiresAt null.Int64 `db:"expires_at"`
	Unmuted   bool       `db:"unmuted"`
}

// Infraction is a kick, warn, softban or hardban record
type Infraction struct {
	ModAction

	Kind InfractionKind `db:"kind"`
}

// Join is a holding room entry, the member gets the holding room role at AllowAt
type Join struct {
	ID       int64 `db:"id"`
	GuildID  int64 `db:"guild_id"`
	UserID   int64 `db:"user_id"`
	JoinedAt int64 `db:"joined_at"`
	AllowAt  int64 `db:"allow_at"`
	Allowed  bool  `db:"allowed"`
}

type Reminder struct {
	ID        int64  `db:"id"`
	GuildID   int64  `db:"guild_id"`
	ChannelID int64  `db:"channel_id"`
	UserID    int64  `db:"user_id"`
	CreatedAt int64  `db:"created_at"`
	RemindAt  int64  `db:"remind_at"`
	Message   string `db:"message"`
	Reminded  bool   `db:"reminded"`
}

// ReasonOrDefault returns the trimmed reason, or DefaultReason if it's empty
func ReasonOrDefault(reason string) string {
	if reason == "" {
		return DefaultReason
	}
	return reason
}
