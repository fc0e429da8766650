// Package reminders has the remind command, reminders are delivered by the expiry reminders job
package reminders

import (
	"time"

	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/store"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Reminders",
		SysName:  "reminders",
		Category: common.PluginCategoryMisc,
	}
}

const (
	DefaultReminderOffset = time.Hour * 24

	MaxReminderOffset            = time.Hour * 24 * 366
	MaxReminderOffsetExceededMsg = "Can be max 1 year from now..."
)

type Reminders struct {
	Store store.ReminderStore

	// set in tests
	now func() time.Time
}

func New(st store.ReminderStore) *Reminders {
	return &Reminders{
		Store: st,
		now:   time.Now,
	}
}

func (r *Reminders) Register(registry *commands.Registry) {
	registry.Add(&commands.Command{
		Name: "remind",
		Usages: []string{
			"remind message - sets a timer to remind you a message in a day",
			"remind message | time - sets a timer to remind you a message in specified time period",
		},
		RunFunc: r.cmdRemind,
		Plugin:  &Plugin{},
	})
}

func (r *Reminders) cmdRemind(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
	now := r.now()

	text, when, err := common.ParseTextAndTime(args, now)
	if err != nil {
		if err == common.ErrTimeInPast {
			data.FailMessage("Your time argument was set for the past. Try again.\nIf you're specifying a date, e.g. `30 December`, make sure you also write the year.")
		} else {
			data.FailMessage("Invalid time argument. Please try again.")
		}
		return commands.Handled, nil
	}

	if text == "" {
		return commands.MalformedUsage, nil
	}

	remindAt := now.Add(DefaultReminderOffset)
	if when != nil {
		remindAt = *when
	}

	if remindAt.Sub(now) > MaxReminderOffset {
		data.FailMessage(MaxReminderOffsetExceededMsg)
		return commands.Handled, nil
	}

	reminder := &store.Reminder{
		GuildID:   data.GuildID(),
		ChannelID: data.ChannelID(),
		UserID:    data.Author().ID,
		CreatedAt: now.Unix(),
		RemindAt:  remindAt.Unix(),
		Message:   text,
	}

	if err := r.Store.CreateReminder(data.Context(), reminder); err != nil {
		return commands.Handled, err
	}

	logger.WithField("guild", reminder.GuildID).WithField("user", reminder.UserID).WithField("id", reminder.ID).Info("Created reminder")

	data.ReactSuccess()
	return commands.Handled, nil
}
