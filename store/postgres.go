package store

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

// PQStore is the postgres backed ActionStore
type PQStore struct {
	db *sqlx.DB
}

var _ ActionStore = (*PQStore)(nil)

func NewPQStore(db *sqlx.DB) *PQStore {
	return &PQStore{db: db}
}

func (p *PQStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WithStackIf(err)
	}

	err = fn(tx)
	if err != nil {
		tx.Rollback()
		return err
	}

	return errors.WithStackIf(tx.Commit())
}

// lockSubject serializes supersede-on-create for one (table, guild, user) across connections and processes
func lockSubject(ctx context.Context, tx *sqlx.Tx, table string, guildID, userID int64) error {
	h := fnv.New64a()
	h.Write([]byte(table + ":" + strconv.FormatInt(guildID, 10) + ":" + strconv.FormatInt(userID, 10)))

	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(h.Sum64()))
	return errors.WithStackIf(err)
}

func rowsAffected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, errors.WithStackIf(err)
	}

	n, err := res.RowsAffected()
	return int(n), errors.WithStackIf(err)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return errors.WithStackIf(err)
}

func (p *PQStore) CreateBan(ctx context.Context, b *Ban) error {
	return p.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubject(ctx, tx, "bans", b.GuildID, b.UserID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "UPDATE bans SET unbanned = TRUE WHERE guild_id = $1 AND user_id = $2 AND unbanned = FALSE", b.GuildID, b.UserID)
		if err != nil {
			return errors.WithStackIf(err)
		}

		const q = `INSERT INTO bans (guild_id, user_id, moderator_user_id, created_at, expires_at, reason, pardoned, unbanned)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
		err = tx.QueryRowxContext(ctx, q, b.GuildID, b.UserID, b.ModeratorUserID, b.CreatedAt, b.ExpiresAt, b.Reason, b.Pardoned, b.Unbanned).Scan(&b.ID)
		return errors.WithStackIf(err)
	})
}

func (p *PQStore) GetBan(ctx context.Context, id int64) (*Ban, error) {
	var b Ban
	err := p.db.GetContext(ctx, &b, "SELECT * FROM bans WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (p *PQStore) DueBans(ctx context.Context, now int64) ([]*Ban, error) {
	var result []*Ban
	err := p.db.SelectContext(ctx, &result, "SELECT * FROM bans WHERE unbanned = FALSE AND expires_at IS NOT NULL AND expires_at <= $1 ORDER BY id", now)
	return result, errors.WithStackIf(err)
}

func (p *PQStore) ResolveBan(ctx context.Context, id int64) (bool, error) {
	n, err := rowsAffected(p.db.ExecContext(ctx, "UPDATE bans SET unbanned = TRUE WHERE id = $1 AND unbanned = FALSE", id))
	return n > 0, err
}

func (p *PQStore) ResolveUserBans(ctx context.Context, guildID, userID int64) (int, error) {
	return rowsAffected(p.db.ExecContext(ctx, "UPDATE bans SET unbanned = TRUE WHERE guild_id = $1 AND user_id = $2 AND unbanned = FALSE", guildID, userID))
}

func (p *PQStore) CreateMute(ctx context.Context, m *Mute) error {
	return p.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubject(ctx, tx, "mutes", m.GuildID, m.UserID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "UPDATE mutes SET unmuted = TRUE WHERE guild_id = $1 AND user_id = $2 AND unmuted = FALSE", m.GuildID, m.UserID)
		if err != nil {
			return errors.WithStackIf(err)
		}

		const q = `INSERT INTO mutes (guild_id, user_id, moderator_user_id, created_at, expires_at, reason, pardoned, unmuted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
		err = tx.QueryRowxContext(ctx, q, m.GuildID, m.UserID, m.ModeratorUserID, m.CreatedAt, m.ExpiresAt, m.Reason, m.Pardoned, m.Unmuted).Scan(&m.ID)
		return errors.WithStackIf(err)
	})
}

func (p *PQStore) GetMute(ctx context.Context, id int64) (*Mute, error) {
	var m Mute
	err := p.db.GetContext(ctx, &m, "SELECT * FROM mutes WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (p *PQStore) DueMutes(ctx context.Context, now int64) ([]*Mute, error) {
	var result []*Mute
	err := p.db.SelectContext(ctx, &result, "SELECT * FROM mutes WHERE unmuted = FALSE AND expires_at IS NOT NULL AND expires_at <= $1 ORDER BY id", now)
	return result, errors.WithStackIf(err)
}

func (p *PQStore) ResolveMute(ctx context.Context, id int64) (bool, error) {
	n, err := rowsAffected(p.db.ExecContext(ctx, "UPDATE mutes SET unmuted = TRUE WHERE id = $1 AND unmuted = FALSE", id))
	return n > 0, err
}

func (p *PQStore) ResolveUserMutes(ctx context.Context, guildID, userID int64) (int, error) {
	return rowsAffected(p.db.ExecContext(ctx, "UPDATE mutes SET unmuted = TRUE WHERE guild_id = $1 AND user_id = $2 AND unmuted = FALSE", guildID, userID))
}

func (p *PQStore) ActiveUserMute(ctx context.Context, guildID, userID int64) (*Mute, error) {
	var m Mute
	err := p.db.GetContext(ctx, &m, "SELECT * FROM mutes WHERE guild_id = $1 AND user_id = $2 AND unmuted = FALSE LIMIT 1", guildID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (p *PQStore) CountActionableMutes(ctx context.Context, guildID, userID int64) (int, error) {
	var n int
	err := p.db.GetContext(ctx, &n, "SELECT count(*) FROM mutes WHERE guild_id = $1 AND user_id = $2 AND pardoned = FALSE", guildID, userID)
	return n, errors.WithStackIf(err)
}

func (p *PQStore) CreateInfraction(ctx context.Context, inf *Infraction) error {
	const q = `INSERT INTO infractions (kind, guild_id, user_id, moderator_user_id, created_at, reason, pardoned)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := p.db.QueryRowxContext(ctx, q, inf.Kind, inf.GuildID, inf.UserID, inf.ModeratorUserID, inf.CreatedAt, inf.Reason, inf.Pardoned).Scan(&inf.ID)
	return errors.WithStackIf(err)
}

func (p *PQStore) CountActionableInfractions(ctx context.Context, kind InfractionKind, guildID, userID int64) (int, error) {
	var n int
	err := p.db.GetContext(ctx, &n, "SELECT count(*) FROM infractions WHERE kind = $1 AND guild_id = $2 AND user_id = $3 AND pardoned = FALSE", kind, guildID, userID)
	return n, errors.WithStackIf(err)
}

func (p *PQStore) CreateJoin(ctx context.Context, j *Join) error {
	const q = `INSERT INTO joins (guild_id, user_id, joined_at, allow_at, allowed) VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := p.db.QueryRowxContext(ctx, q, j.GuildID, j.UserID, j.JoinedAt, j.AllowAt, j.Allowed).Scan(&j.ID)
	return errors.WithStackIf(err)
}

func (p *PQStore) DueJoins(ctx context.Context, now int64) ([]*Join, error) {
	var result []*Join
	err := p.db.SelectContext(ctx, &result, "SELECT * FROM joins WHERE allowed = FALSE AND allow_at <= $1 ORDER BY id", now)
	return result, errors.WithStackIf(err)
}

func (p *PQStore) ResolveJoin(ctx context.Context, id int64) (bool, error) {
	n, err := rowsAffected(p.db.ExecContext(ctx, "UPDATE joins SET allowed = TRUE WHERE id = $1 AND allowed = FALSE", id))
	return n > 0, err
}

func (p *PQStore) DeleteUserJoins(ctx context.Context, guildID, userID int64) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM joins WHERE guild_id = $1 AND user_id = $2", guildID, userID)
	return errors.WithStackIf(err)
}

func (p *PQStore) DeleteGuildJoins(ctx context.Context, guildID int64) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM joins WHERE guild_id = $1", guildID)
	return errors.WithStackIf(err)
}

func (p *PQStore) CreateReminder(ctx context.Context, r *Reminder) error {
	const q = `INSERT INTO reminders (guild_id, channel_id, user_id, created_at, remind_at, message, reminded)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := p.db.QueryRowxContext(ctx, q, r.GuildID, r.ChannelID, r.UserID, r.CreatedAt, r.RemindAt, r.Message, r.Reminded).Scan(&r.ID)
	return errors.WithStackIf(err)
}

func (p *PQStore) DueReminders(ctx context.Context, now int64) ([]*Reminder, error) {
	var result []*Reminder
	err := p.db.SelectContext(ctx, &result, "SELECT * FROM reminders WHERE reminded = FALSE AND remind_at <= $1 ORDER BY id", now)
	return result, errors.WithStackIf(err)
}

func (p *PQStore) ResolveReminder(ctx context.Context, id int64) (bool, error) {
	n, err := rowsAffected(p.db.ExecContext(ctx, "UPDATE reminders SET reminded = TRUE WHERE id = $1 AND reminded = FALSE", id))
	return n > 0, err
}

var settingsColumns = []string{
	"guild_id",
	"prefix", "no_space_prefix", "silent_commands", "mod_action_confirmation_message",
	"mod_log", "mod_log_channel_id",
	"holding_room", "holding_room_role_id", "holding_room_minutes",
	"welcome_message", "welcome_message_channel_id", "message",
	"word_filter", "word_filter_blocklist", "word_filter_level", "word_filter_action", "word_filter_action_duration", "word_filter_action_duration_type",
	"invite_link_remover", "invite_link_remover_action", "invite_link_remover_action_duration", "invite_link_remover_action_duration_type",
	"warn_threshold", "warn_action", "warn_action_duration", "warn_action_duration_type",
	"mute_threshold", "mute_action", "mute_action_duration", "mute_action_duration_type",
	"kick_threshold", "kick_action", "kick_action_duration", "kick_action_duration_type",
	"softban_threshold", "softban_action", "softban_action_duration", "softban_action_duration_type",
}

var (
	insertSettingsQuery string
	updateSettingsQuery string
)

func init() {
	named := make([]string, len(settingsColumns))
	sets := make([]string, 0, len(settingsColumns)-1)
	for i, c := range settingsColumns {
		named[i] = ":" + c
		if c != "guild_id" {
			sets = append(sets, c+" = :"+c)
		}
	}

	insertSettingsQuery = "INSERT INTO guild_settings (" + strings.Join(settingsColumns, ", ") + ") VALUES (" +
		strings.Join(named, ", ") + ") ON CONFLICT (guild_id) DO NOTHING"
	updateSettingsQuery = "UPDATE guild_settings SET " + strings.Join(sets, ", ") + " WHERE guild_id = :guild_id"
}

func (p *PQStore) GetSettings(ctx context.Context, guildID int64) (*GuildSettings, error) {
	var s GuildSettings
	err := p.db.GetContext(ctx, &s, "SELECT * FROM guild_settings WHERE guild_id = $1", guildID)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (p *PQStore) CreateSettings(ctx context.Context, s *GuildSettings) (*GuildSettings, error) {
	_, err := p.db.NamedExecContext(ctx, insertSettingsQuery, s)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	// someone else may have won the insert, return whatever is stored
	return p.GetSettings(ctx, s.GuildID)
}

func (p *PQStore) UpdateSettings(ctx context.Context, s *GuildSettings) error {
	n, err := rowsAffected(p.db.NamedExecContext(ctx, updateSettingsQuery, s))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PQStore) DeleteSettings(ctx context.Context, guildID int64) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM guild_settings WHERE guild_id = $1", guildID)
	return errors.WithStackIf(err)
}
