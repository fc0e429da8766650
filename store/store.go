// Package store persists moderation action records and guild settings.
//
// Every record kind with a lifetime (bans, mutes, holding room joins and reminders)
// has a Due query and an identity scoped Resolve, resolving is a one way transition
// and resolving an already resolved record reports false instead of failing.
package store

import (
	"context"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
	"github.com/safetyjim/safetyjim/common"
)

var ErrNotFound = errors.NewPlain("not found")

type BanStore interface {
	// CreateBan resolves any unresolved ban for the same guild and user and inserts b, as one unit.
	// b.ID is set on success.
	CreateBan(ctx context.Context, b *Ban) error
	GetBan(ctx context.Context, id int64) (*Ban, error)
	// DueBans returns unresolved bans that expire at or before now
	DueBans(ctx context.Context, now int64) ([]*Ban, error)
	ResolveBan(ctx context.Context, id int64) (bool, error)
	// ResolveUserBans resolves every unresolved ban of the user, returning how many were resolved
	ResolveUserBans(ctx context.Context, guildID, userID int64) (int, error)
}

type MuteStore interface {
	CreateMute(ctx context.Context, m *Mute) error
	GetMute(ctx context.Context, id int64) (*Mute, error)
	DueMutes(ctx context.Context, now int64) ([]*Mute, error)
	ResolveMute(ctx context.Context, id int64) (bool, error)
	ResolveUserMutes(ctx context.Context, guildID, userID int64) (int, error)
	// ActiveUserMute returns the unresolved mute of the user, or ErrNotFound
	ActiveUserMute(ctx context.Context, guildID, userID int64) (*Mute, error)
	CountActionableMutes(ctx context.Context, guildID, userID int64) (int, error)
}

type InfractionStore interface {
	CreateInfraction(ctx context.Context, inf *Infraction) error
	CountActionableInfractions(ctx context.Context, kind InfractionKind, guildID, userID int64) (int, error)
}

type JoinStore interface {
	CreateJoin(ctx context.Context, j *Join) error
	// DueJoins returns joins not yet allowed whose allow time is at or before now
	DueJoins(ctx context.Context, now int64) ([]*Join, error)
	ResolveJoin(ctx context.Context, id int64) (bool, error)
	DeleteUserJoins(ctx context.Context, guildID, userID int64) error
	DeleteGuildJoins(ctx context.Context, guildID int64) error
}

type ReminderStore interface {
	CreateReminder(ctx context.Context, r *Reminder) error
	DueReminders(ctx context.Context, now int64) ([]*Reminder, error)
	ResolveReminder(ctx context.Context, id int64) (bool, error)
}

type SettingsStore interface {
	// GetSettings returns ErrNotFound if the guild has no settings row
	GetSettings(ctx context.Context, guildID int64) (*GuildSettings, error)
	// CreateSettings inserts s unless the guild already has settings, in which case the existing row is returned
	CreateSettings(ctx context.Context, s *GuildSettings) (*GuildSettings, error)
	UpdateSettings(ctx context.Context, s *GuildSettings) error
	DeleteSettings(ctx context.Context, guildID int64) error
}

// ActionStore is everything the bot persists
type ActionStore interface {
	BanStore
	MuteStore
	InfractionStore
	JoinStore
	ReminderStore
	SettingsStore
}

// New returns a PQStore when db is set, after making sure the schema exists.
// Without a database everything is kept in a MemoryStore.
func New(db *sqlx.DB) (ActionStore, error) {
	if db == nil {
		return NewMemoryStore(), nil
	}

	if err := common.InitSchemas(db, "store", DBSchemas...); err != nil {
		return nil, err
	}

	return NewPQStore(db), nil
}
