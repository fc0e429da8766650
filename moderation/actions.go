package moderation

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/store"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null/v8"
)

// automatic actions can trigger further automatic actions, this many levels deep at most
const maxEscalationDepth = 3

const (
	deleteDaysSoftban = 1
	deleteDaysHardban = 7
)

// ActionContext is who is taking an action where
type ActionContext struct {
	Ctx     context.Context
	GW      bot.Gateway
	GuildID int64
	// ChannelID is the channel the action was taken from, 0 if there is none
	ChannelID int64
	Moderator *bot.User
	Settings  *store.GuildSettings

	depth int
}

func (ac *ActionContext) context() context.Context {
	if ac.Ctx == nil {
		return context.Background()
	}
	return ac.Ctx
}

func (ac *ActionContext) deeper() *ActionContext {
	cop := *ac
	cop.depth++
	return &cop
}

func (ac *ActionContext) logger(target *bot.User) *logrus.Entry {
	return logger.WithField("guild", ac.GuildID).WithField("user", target.ID).WithField("moderator", ac.Moderator.ID)
}

func (m *Moderation) withLock(ac *ActionContext, userID int64, f func() error) error {
	return m.WithMemberLock(ac.context(), ac.GuildID, userID, f)
}

// WithMemberLock runs f while holding the same per member lock the actions take,
// anything reversing an action outside of this package has to use it
func (m *Moderation) WithMemberLock(ctx context.Context, guildID, userID int64, f func() error) error {
	return m.locks.Do(ctx, subject{GuildID: guildID, UserID: userID}, actionLockTTL, f)
}

func (m *Moderation) modAction(ac *ActionContext, target *bot.User, reason string) store.ModAction {
	return store.ModAction{
		GuildID:         ac.GuildID,
		UserID:          target.ID,
		ModeratorUserID: ac.Moderator.ID,
		CreatedAt:       m.now().Unix(),
		Reason:          reason,
	}
}

func nullUnix(t *time.Time) null.Int64 {
	if t == nil {
		return null.Int64{}
	}
	return null.Int64From(t.Unix())
}

// recordFailed is called when discord did what we asked but we couldn't write it down,
// the action stays in place and there's just no record of it
func recordFailed(ac *ActionContext, target *bot.User, action ModLogAction, err error) {
	ac.logger(target).WithError(err).WithField("action", action.Name).Error("Action was taken but recording it failed")
}

// Ban bans target, replacing any earlier unexpired ban record. A nil expires bans indefinitely.
func (m *Moderation) Ban(ac *ActionContext, target *bot.User, reason string, expires *time.Time) (int64, error) {
	reason = store.ReasonOrDefault(reason)

	var id int64
	err := m.withLock(ac, target.ID, func() error {
		m.notifyTarget(ac, target, MABan, reason, expires)

		err := ac.GW.Ban(ac.GuildID, target.ID, auditLogReason(ac, MABan, reason), 0)
		if err != nil {
			return errors.WithMessage(err, "ban")
		}

		b := &store.Ban{
			ModAction: m.modAction(ac, target, reason),
			ExpiresAt: nullUnix(expires),
		}

		if err := m.Store.CreateBan(ac.context(), b); err != nil {
			recordFailed(ac, target, MABan, err)
			return nil
		}

		id = b.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// not recorded, there's no case number for the mod log and nothing to count
		return 0, nil
	}

	m.createModLogEntry(ac, target, reason, MABan, id, expires)
	return id, nil
}

// Mute gives target the Muted role, replacing any earlier unexpired mute record
func (m *Moderation) Mute(ac *ActionContext, target *bot.User, reason string, expires *time.Time) (int64, error) {
	reason = store.ReasonOrDefault(reason)

	role, err := SetupMutedRole(ac.GW, ac.GuildID)
	if err != nil {
		return 0, errors.WithMessage(err, "muted role")
	}

	var id int64
	err = m.withLock(ac, target.ID, func() error {
		m.notifyTarget(ac, target, MAMute, reason, expires)

		if err := ac.GW.AddMemberRole(ac.GuildID, target.ID, role.ID); err != nil {
			return errors.WithMessage(err, "add muted role")
		}

		mute := &store.Mute{
			ModAction: m.modAction(ac, target, reason),
			ExpiresAt: nullUnix(expires),
		}

		if err := m.Store.CreateMute(ac.context(), mute); err != nil {
			recordFailed(ac, target, MAMute, err)
			return nil
		}

		id = mute.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// not recorded, there's no case number for the mod log and nothing to count
		return 0, nil
	}

	m.createModLogEntry(ac, target, reason, MAMute, id, expires)
	m.escalate(ac, target, ac.Settings.MuteThresholdRule(), "Mute threshold exceeded.", func() (int, error) {
		return m.Store.CountActionableMutes(ac.context(), ac.GuildID, target.ID)
	})
	return id, nil
}

// Kick removes target from the guild
func (m *Moderation) Kick(ac *ActionContext, target *bot.User, reason string) (int64, error) {
	return m.infraction(ac, target, reason, MAKick, func() error {
		return ac.GW.Kick(ac.GuildID, target.ID, auditLogReason(ac, MAKick, reason))
	})
}

// Warn only tells the target and records it
func (m *Moderation) Warn(ac *ActionContext, target *bot.User, reason string) (int64, error) {
	return m.infraction(ac, target, reason, MAWarn, nil)
}

// Softban bans and immediately unbans target, deleting their last day of messages
func (m *Moderation) Softban(ac *ActionContext, target *bot.User, reason string) (int64, error) {
	return m.infraction(ac, target, reason, MASoftban, func() error {
		err := ac.GW.Ban(ac.GuildID, target.ID, auditLogReason(ac, MASoftban, reason), deleteDaysSoftban)
		if err != nil {
			return err
		}
		return ac.GW.Unban(ac.GuildID, target.ID)
	})
}

// Hardban bans target for good, deleting a week of their messages. Earlier temporary bans
// are resolved so their expiry can't lift this one.
func (m *Moderation) Hardban(ac *ActionContext, target *bot.User, reason string) (int64, error) {
	return m.infraction(ac, target, reason, MAHardban, func() error {
		err := ac.GW.Ban(ac.GuildID, target.ID, auditLogReason(ac, MAHardban, reason), deleteDaysHardban)
		if err != nil {
			return err
		}

		if _, err := m.Store.ResolveUserBans(ac.context(), ac.GuildID, target.ID); err != nil {
			ac.logger(target).WithError(err).Error("Failed resolving earlier bans of hardbanned user")
		}
		return nil
	})
}

// infraction runs the shared steps of the actions that have no expiry
func (m *Moderation) infraction(ac *ActionContext, target *bot.User, reason string, action ModLogAction, sideEffect func() error) (int64, error) {
	reason = store.ReasonOrDefault(reason)

	var id int64
	err := m.withLock(ac, target.ID, func() error {
		m.notifyTarget(ac, target, action, reason, nil)

		if sideEffect != nil {
			if err := sideEffect(); err != nil {
				return errors.WithMessage(err, action.Name)
			}
		}

		inf := &store.Infraction{
			ModAction: m.modAction(ac, target, reason),
			Kind:      action.Kind,
		}

		if err := m.Store.CreateInfraction(ac.context(), inf); err != nil {
			recordFailed(ac, target, action, err)
			return nil
		}

		id = inf.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// not recorded, there's no case number for the mod log and nothing to count
		return 0, nil
	}

	m.createModLogEntry(ac, target, reason, action, id, nil)

	var rule store.Threshold
	switch action.Kind {
	case store.InfractionWarn:
		rule = ac.Settings.WarnThresholdRule()
	case store.InfractionKick:
		rule = ac.Settings.KickThresholdRule()
	case store.InfractionSoftban:
		rule = ac.Settings.SoftbanThresholdRule()
	default:
		return id, nil
	}

	m.escalate(ac, target, rule, action.ThresholdReason, func() (int, error) {
		return m.Store.CountActionableInfractions(ac.context(), action.Kind, ac.GuildID, target.ID)
	})
	return id, nil
}

// escalate runs the rule's action if the member's count reached the threshold
func (m *Moderation) escalate(ac *ActionContext, target *bot.User, rule store.Threshold, reason string, count func() (int, error)) {
	if rule.Threshold <= 0 || rule.Action == store.ActionNothing {
		return
	}

	if ac.depth >= maxEscalationDepth {
		ac.logger(target).Warn("Not escalating further, too many automatic actions in a row")
		return
	}

	n, err := count()
	if err != nil {
		ac.logger(target).WithError(err).Error("Failed counting actions for escalation")
		return
	}

	if n < rule.Threshold {
		return
	}

	if err := m.RunRule(ac.deeper(), target, rule, reason); err != nil {
		ac.logger(target).WithError(err).WithField("action", rule.Action.String()).Error("Automatic action failed")
	}
}

// RunRule runs the action of an automatic rule (escalation threshold or word filter) against target
func (m *Moderation) RunRule(ac *ActionContext, target *bot.User, rule store.Threshold, reason string) error {
	var expires *time.Time
	if d := rule.ActionDuration(); d > 0 {
		t := m.now().Add(d)
		expires = &t
	}

	var err error
	switch rule.Action {
	case store.ActionWarn:
		_, err = m.Warn(ac, target, reason)
	case store.ActionMute:
		_, err = m.Mute(ac, target, reason, expires)
	case store.ActionKick:
		_, err = m.Kick(ac, target, reason)
	case store.ActionBan:
		_, err = m.Ban(ac, target, reason, expires)
	case store.ActionSoftban:
		_, err = m.Softban(ac, target, reason)
	case store.ActionHardban:
		_, err = m.Hardban(ac, target, reason)
	}

	return err
}

// Unban lifts the ban on discord and resolves the user's ban records
func (m *Moderation) Unban(ac *ActionContext, target *bot.User) error {
	return m.withLock(ac, target.ID, func() error {
		if err := ac.GW.Unban(ac.GuildID, target.ID); err != nil {
			return errors.WithMessage(err, "unban")
		}

		if _, err := m.Store.ResolveUserBans(ac.context(), ac.GuildID, target.ID); err != nil {
			recordFailed(ac, target, MABan, err)
		}
		return nil
	})
}

// Unmute removes the Muted role and resolves the user's mute records
func (m *Moderation) Unmute(ac *ActionContext, target *bot.User, role *bot.Role) error {
	return m.withLock(ac, target.ID, func() error {
		if err := ac.GW.RemoveMemberRole(ac.GuildID, target.ID, role.ID); err != nil {
			return errors.WithMessage(err, "remove muted role")
		}

		if _, err := m.Store.ResolveUserMutes(ac.context(), ac.GuildID, target.ID); err != nil {
			recordFailed(ac, target, MAMute, err)
		}
		return nil
	})
}
