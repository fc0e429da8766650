package store

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS bans (
	id BIGSERIAL PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	moderator_user_id BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT,
	reason TEXT NOT NULL,
	pardoned BOOLEAN NOT NULL DEFAULT FALSE,
	unbanned BOOLEAN NOT NULL DEFAULT FALSE
);
`, `
CREATE INDEX IF NOT EXISTS bans_due_idx ON bans(expires_at) WHERE unbanned = FALSE AND expires_at IS NOT NULL;
`, `
CREATE UNIQUE INDEX IF NOT EXISTS bans_one_active_idx ON bans(guild_id, user_id) WHERE unbanned = FALSE;
`, `
CREATE TABLE IF NOT EXISTS mutes (
	id BIGSERIAL PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	moderator_user_id BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT,
	reason TEXT NOT NULL,
	pardoned BOOLEAN NOT NULL DEFAULT FALSE,
	unmuted BOOLEAN NOT NULL DEFAULT FALSE
);
`, `
CREATE INDEX IF NOT EXISTS mutes_due_idx ON mutes(expires_at) WHERE unmuted = FALSE AND expires_at IS NOT NULL;
`, `
CREATE UNIQUE INDEX IF NOT EXISTS mutes_one_active_idx ON mutes(guild_id, user_id) WHERE unmuted = FALSE;
`, `
CREATE TABLE IF NOT EXISTS infractions (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL,
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	moderator_user_id BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	reason TEXT NOT NULL,
	pardoned BOOLEAN NOT NULL DEFAULT FALSE
);
`, `
CREATE INDEX IF NOT EXISTS infractions_user_idx ON infractions(guild_id, user_id, kind);
`, `
CREATE TABLE IF NOT EXISTS joins (
	id BIGSERIAL PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	joined_at BIGINT NOT NULL,
	allow_at BIGINT NOT NULL,
	allowed BOOLEAN NOT NULL DEFAULT FALSE
);
`, `
CREATE INDEX IF NOT EXISTS joins_due_idx ON joins(allow_at) WHERE allowed = FALSE;
`, `
CREATE TABLE IF NOT EXISTS reminders (
	id BIGSERIAL PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	channel_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	remind_at BIGINT NOT NULL,
	message TEXT NOT NULL,
	reminded BOOLEAN NOT NULL DEFAULT FALSE
);
`, `
CREATE INDEX IF NOT EXISTS reminders_due_idx ON reminders(remind_at) WHERE reminded = FALSE;
`, `
CREATE TABLE IF NOT EXISTS guild_settings (
	guild_id BIGINT PRIMARY KEY,

	prefix TEXT NOT NULL,
	no_space_prefix BOOLEAN NOT NULL,
	silent_commands BOOLEAN NOT NULL,
	mod_action_confirmation_message BOOLEAN NOT NULL,

	mod_log BOOLEAN NOT NULL,
	mod_log_channel_id BIGINT NOT NULL,

	holding_room BOOLEAN NOT NULL,
	holding_room_role_id BIGINT,
	holding_room_minutes INT NOT NULL,

	welcome_message BOOLEAN NOT NULL,
	welcome_message_channel_id BIGINT NOT NULL,
	message TEXT NOT NULL,

	word_filter BOOLEAN NOT NULL,
	word_filter_blocklist TEXT,
	word_filter_level INT NOT NULL,
	word_filter_action INT NOT NULL,
	word_filter_action_duration INT NOT NULL,
	word_filter_action_duration_type INT NOT NULL,

	warn_threshold INT NOT NULL,
	warn_action INT NOT NULL,
	warn_action_duration INT NOT NULL,
	warn_action_duration_type INT NOT NULL,

	mute_threshold INT NOT NULL,
	mute_action INT NOT NULL,
	mute_action_duration INT NOT NULL,
	mute_action_duration_type INT NOT NULL,

	kick_threshold INT NOT NULL,
	kick_action INT NOT NULL,
	kick_action_duration INT NOT NULL,
	kick_action_duration_type INT NOT NULL,

	softban_threshold INT NOT NULL,
	softban_action INT NOT NULL,
	softban_action_duration INT NOT NULL,
	softban_action_duration_type INT NOT NULL
);
`, `
ALTER TABLE guild_settings ADD COLUMN IF NOT EXISTS invite_link_remover BOOLEAN NOT NULL DEFAULT FALSE;
`, `
ALTER TABLE guild_settings ADD COLUMN IF NOT EXISTS invite_link_remover_action INT NOT NULL DEFAULT 1;
`, `
ALTER TABLE guild_settings ADD COLUMN IF NOT EXISTS invite_link_remover_action_duration INT NOT NULL DEFAULT 0;
`, `
ALTER TABLE guild_settings ADD COLUMN IF NOT EXISTS invite_link_remover_action_duration_type INT NOT NULL DEFAULT 1;
`}

var DBTables = []string{"bans", "mutes", "infractions", "joins", "reminders", "guild_settings"}
