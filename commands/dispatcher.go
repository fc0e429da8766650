package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/settings"
	"github.com/safetyjim/safetyjim/store"
)

// Dispatcher turns guild messages into command runs
type Dispatcher struct {
	Settings *settings.Cache
	Registry *Registry

	processors []*processor
}

func NewDispatcher(cache *settings.Cache, registry *Registry) *Dispatcher {
	return &Dispatcher{
		Settings: cache,
		Registry: registry,
	}
}

// AddProcessor adds a message processor, they run in the order they were added
func (d *Dispatcher) AddProcessor(p common.Plugin, f MessageProcessor) {
	d.processors = append(d.processors, &processor{plugin: p, f: f})
}

func (d *Dispatcher) AddHandlers(router *bot.EventRouter) {
	router.AddHandler(&Plugin{}, d.HandleMessageCreate, bot.EventMessageCreate)
}

func (d *Dispatcher) HandleMessageCreate(evt *bot.EventData) error {
	msg := evt.MessageCreate().Message
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == 0 {
		return nil
	}

	data := &Data{
		ctx:        evt.Context(),
		Shard:      evt.Shard,
		GW:         evt.Shard.Gateway,
		Msg:        msg,
		Dispatcher: d,
	}

	return d.Dispatch(data)
}

type parseStatus int

const (
	notCommand parseStatus = iota
	prefixOnly
	parsedCommand
)

// parseCommand splits content into a command name and its arguments using the guild's prefix settings
func parseCommand(content string, s *store.GuildSettings) (name string, args string, status parseStatus) {
	prefix := strings.ToLower(s.Prefix)
	first, rest := NextArg(content)
	firstLower := strings.ToLower(first)

	if s.NoSpacePrefix {
		if !strings.HasPrefix(firstLower, prefix) {
			return "", "", notCommand
		}

		if len(firstLower) == len(prefix) {
			return "", "", prefixOnly
		}

		return firstLower[len(prefix):], rest, parsedCommand
	}

	if firstLower != prefix {
		return "", "", notCommand
	}

	name, args = NextArg(rest)
	if name == "" {
		return "", "", prefixOnly
	}

	return strings.ToLower(name), args, parsedCommand
}

// Dispatch runs the message through the processors and then the command it invokes, if any
func (d *Dispatcher) Dispatch(data *Data) error {
	s, err := d.Settings.Get(data.Context(), data.GuildID())
	if err != nil {
		return errors.WithMessage(err, "settings")
	}

	if botMentioned(data.Msg, data.GW.BotUser().ID) && strings.Contains(data.Msg.Content, "prefix") {
		data.ReactSuccess()
		data.ReplyIgnoreError("This guild's prefix is: " + s.Prefix)
		return nil
	}

	for _, p := range d.processors {
		if d.runProcessor(p, data, s) {
			return nil
		}
	}

	name, args, status := parseCommand(data.Msg.Content, s)
	switch status {
	case notCommand:
		return nil
	case prefixOnly:
		data.ReactFail()
		return nil
	}

	cmd := d.Registry.Lookup(name)
	if cmd == nil {
		data.ReactFail()
		return nil
	}

	d.runCommand(data, cmd, name, s, args)
	return nil
}

func (d *Dispatcher) runProcessor(p *processor, data *Data, s *store.GuildSettings) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			data.Logger().WithField("plugin", p.plugin.PluginInfo().SysName).
				Error("Recovered from panic in message processor: ", r, "\n", string(debug.Stack()))
			handled = false
		}
	}()

	handled, err := p.f(data, s)
	if err != nil {
		data.Logger().WithError(err).WithField("plugin", p.plugin.PluginInfo().SysName).Error("Message processor failed")
	}
	return handled
}

func (d *Dispatcher) runCommand(data *Data, cmd *Command, name string, s *store.GuildSettings, args string) {
	ctx, cancel := context.WithTimeout(data.Context(), CommandExecTimeout)
	defer cancel()

	data = data.WithContext(ctx)
	data.Cmd = cmd
	data.Name = name

	data.Logger().Info("Handling command: " + data.Msg.Content)

	outcome, err := runRecover(data, cmd, s, args)
	if err != nil {
		metricsCommands.With(prometheus.Labels{"cmd": cmd.Name, "outcome": "error"}).Inc()
		ReportCommandError(data, args, err)
		return
	}

	metricsCommands.With(prometheus.Labels{"cmd": cmd.Name, "outcome": outcome.String()}).Inc()

	if outcome == MalformedUsage {
		data.ReactFail()
		data.ReplyIgnoreError(cmd.UsageText(s))
		return
	}

	if s.SilentCommands && !data.Failed() {
		if err := data.GW.DeleteMessage(data.ChannelID(), data.Msg.ID); err != nil {
			data.Logger().WithError(err).Debug("Failed deleting command message")
		}
	}
}

// runRecover runs the command, turning a panic into an error
func runRecover(data *Data, cmd *Command, s *store.GuildSettings, args string) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			err = errors.NewPlain(fmt.Sprintf("panic: %v\n%s", r, stack))
		}
	}()

	return cmd.Run(data, s, args)
}

// ReportCommandError is the one place command faults end up: the fault is logged with
// everything needed to find it and the user gets a generic failure
func ReportCommandError(data *Data, args string, err error) {
	l := data.Logger().WithField("args", args)
	if errors.Is(err, context.DeadlineExceeded) {
		l.WithError(err).Warn("Command timed out")
	} else {
		l.Errorf("Command failed: %+v", err)
	}

	data.ReactFail()
	data.ReplyIgnoreError(GenericErrorMessage)
}
