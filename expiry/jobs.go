package expiry

import (
	"context"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/moderation"
	"github.com/safetyjim/safetyjim/store"
)

func (r *Reconciler) tickBans(ctx context.Context, now time.Time) error {
	bans, err := r.Store.DueBans(ctx, now.Unix())
	if err != nil {
		return errors.WithMessage(err, "due bans")
	}

	for _, b := range bans {
		b := b
		rec := record{job: "bans", id: b.ID, guildID: b.GuildID, userID: b.UserID}
		r.processRecord(ctx, rec, func(gw bot.Gateway) error {
			return r.liftBan(ctx, gw, b)
		}, r.Store.ResolveBan)
	}

	return nil
}

func (r *Reconciler) liftBan(ctx context.Context, gw bot.Gateway, b *store.Ban) error {
	return r.Locks.WithMemberLock(ctx, b.GuildID, b.UserID, func() error {
		// a new ban since the fetch supersedes this one and must stay
		current, err := r.Store.GetBan(ctx, b.ID)
		if err != nil {
			return errors.WithMessage(err, "get ban")
		}
		if current.Unbanned {
			return errAlreadyResolved
		}

		err = gw.Unban(b.GuildID, b.UserID)
		if err == bot.ErrNotFound {
			// unbanned by hand
			return nil
		}
		return errors.WithMessage(err, "unban")
	})
}

func (r *Reconciler) tickMutes(ctx context.Context, now time.Time) error {
	mutes, err := r.Store.DueMutes(ctx, now.Unix())
	if err != nil {
		return errors.WithMessage(err, "due mutes")
	}

	for _, m := range mutes {
		m := m
		rec := record{job: "mutes", id: m.ID, guildID: m.GuildID, userID: m.UserID}
		r.processRecord(ctx, rec, func(gw bot.Gateway) error {
			return r.liftMute(ctx, gw, m)
		}, r.Store.ResolveMute)
	}

	return nil
}

func (r *Reconciler) liftMute(ctx context.Context, gw bot.Gateway, m *store.Mute) error {
	return r.Locks.WithMemberLock(ctx, m.GuildID, m.UserID, func() error {
		current, err := r.Store.GetMute(ctx, m.ID)
		if err != nil {
			return errors.WithMessage(err, "get mute")
		}
		if current.Unmuted {
			return errAlreadyResolved
		}

		member, err := gw.Member(m.GuildID, m.UserID)
		if err != nil {
			if err == bot.ErrNotFound {
				// gone, the role is given back on rejoin only while the mute is active
				return nil
			}
			return errors.WithMessage(err, "member")
		}

		role, err := moderation.FindMutedRole(gw, m.GuildID)
		if err != nil {
			if err == bot.ErrNotFound {
				return nil
			}
			return common.ErrWithCaller(err)
		}

		if !member.HasRole(role.ID) {
			return nil
		}

		return errors.WithMessage(gw.RemoveMemberRole(m.GuildID, m.UserID, role.ID), "remove muted role")
	})
}

func (r *Reconciler) tickJoins(ctx context.Context, now time.Time) error {
	joins, err := r.Store.DueJoins(ctx, now.Unix())
	if err != nil {
		return errors.WithMessage(err, "due joins")
	}

	for _, j := range joins {
		j := j
		rec := record{job: "joins", id: j.ID, guildID: j.GuildID, userID: j.UserID}
		r.processRecord(ctx, rec, func(gw bot.Gateway) error {
			return r.allowJoin(ctx, gw, j)
		}, r.Store.ResolveJoin)
	}

	return nil
}

func (r *Reconciler) allowJoin(ctx context.Context, gw bot.Gateway, j *store.Join) error {
	settings, err := r.Settings.Get(ctx, j.GuildID)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	if !settings.HoldingRoom {
		return nil
	}

	var role *bot.Role
	if settings.HoldingRoomRoleID.Valid {
		roles, err := gw.Roles(j.GuildID)
		if err != nil {
			return errors.WithMessage(err, "roles")
		}

		for _, v := range roles {
			if v.ID == settings.HoldingRoomRoleID.Int64 {
				role = v
				break
			}
		}
	}

	if role == nil {
		// nobody can be let in without the role, so the holding room is turned off
		settings.HoldingRoom = false
		if err := r.Settings.Update(ctx, settings); err != nil {
			return errors.WithMessage(err, "disable holding room")
		}

		logger.WithField("guild", j.GuildID).Info("Holding room role is gone, disabled the holding room")
		return nil
	}

	err = gw.AddMemberRole(j.GuildID, j.UserID, role.ID)
	if err == bot.ErrNotFound {
		// left before being let in
		return nil
	}
	return errors.WithMessage(err, "add holding room role")
}

func (r *Reconciler) tickReminders(ctx context.Context, now time.Time) error {
	reminders, err := r.Store.DueReminders(ctx, now.Unix())
	if err != nil {
		return errors.WithMessage(err, "due reminders")
	}

	for _, rem := range reminders {
		rem := rem
		rec := record{job: "reminders", id: rem.ID, guildID: rem.GuildID, userID: rem.UserID}
		r.processRecord(ctx, rec, func(gw bot.Gateway) error {
			return deliverReminder(gw, rem)
		}, r.Store.ResolveReminder)
	}

	return nil
}

func reminderText(rem *store.Reminder) string {
	return "**Reminder - #" + strconv.FormatInt(rem.ID, 10) + "**\n" + common.EscapeSpecialMentions(rem.Message)
}

// deliverReminder posts the reminder where it was set, mentioning the user.
// If the channel or the member is gone or sending fails the user gets a DM instead.
func deliverReminder(gw bot.Gateway, rem *store.Reminder) error {
	if channelExists(gw, rem.GuildID, rem.ChannelID) {
		if _, err := gw.Member(rem.GuildID, rem.UserID); err == nil {
			_, err := gw.SendMessage(rem.ChannelID, common.UserMention(rem.UserID)+" "+reminderText(rem))
			if err == nil {
				return nil
			}

			logger.WithError(err).WithField("id", rem.ID).Debug("Failed sending reminder in channel, sending a DM instead")
		}
	}

	return errors.WithMessage(gw.SendDM(rem.UserID, reminderText(rem)), "dm")
}

func channelExists(gw bot.Gateway, guildID, channelID int64) bool {
	channels, err := gw.Channels(guildID)
	if err != nil {
		return false
	}

	for _, c := range channels {
		if c.ID == channelID {
			return true
		}
	}
	return false
}
