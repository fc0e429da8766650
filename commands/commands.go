// Package commands parses guild messages into command invocations and runs them.
//
// A command is looked up by name in a registry built at startup, it gets the guild's
// settings and the raw argument text and decides on its own what to do with them.
package commands

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/store"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Commands",
		SysName:  "commands",
		Category: common.PluginCategoryCore,
	}
}

// CommandExecTimeout is how long a single command may run, including a target confirmation
var CommandExecTimeout = time.Minute

// GenericErrorMessage is shown when a command fails in a way the user can't do anything about
const GenericErrorMessage = "There was an error running your command, this incident has been logged."

// Outcome is what a command reports back to the dispatcher
type Outcome int

const (
	// Handled means the command took care of responding, whether it did what was asked or not
	Handled Outcome = iota
	// MalformedUsage makes the dispatcher reply with the command's usage
	MalformedUsage
)

func (o Outcome) String() string {
	if o == MalformedUsage {
		return "malformed_usage"
	}
	return "handled"
}

type RunFunc func(data *Data, settings *store.GuildSettings, args string) (Outcome, error)

type Command struct {
	Name    string   // Name of command, what its called from
	Aliases []string // Aliases which it can also be called from

	// Usages are shown when the command returns MalformedUsage, in the form "cmd args - description"
	Usages []string

	// The invoking member needs all of these, checked before RunFunc is called
	RequiredPerms int64
	// Human readable name of RequiredPerms, shown when the member is missing them
	RequiredPermsName string

	RunFunc RunFunc

	Plugin common.Plugin
}

// Run checks the command's permission requirements and then runs it
func (c *Command) Run(data *Data, settings *store.GuildSettings, args string) (Outcome, error) {
	if c.RequiredPerms != 0 {
		ok, err := data.AuthorHasPermissions(c.RequiredPerms)
		if err != nil {
			return Handled, errors.WithMessage(err, "permissions")
		}

		if !ok {
			msg := "You don't have enough permissions to execute this command!"
			if c.RequiredPermsName != "" {
				msg += " Required permission: " + c.RequiredPermsName
			}
			data.FailMessage(msg)
			return Handled, nil
		}
	}

	return c.RunFunc(data, settings, args)
}

// UsageText formats the usages the way they are typed in the guild
func (c *Command) UsageText(settings *store.GuildSettings) string {
	sep := " "
	if settings.NoSpacePrefix {
		sep = ""
	}

	var b strings.Builder
	b.WriteString("**Safety Jim - \"" + c.Name + "\" Syntax**")
	for _, usage := range c.Usages {
		syntax, desc := usage, ""
		if i := strings.Index(usage, " - "); i != -1 {
			syntax, desc = usage[:i], usage[i+3:]
		}

		b.WriteString("\n`" + settings.Prefix + sep + syntax + "`")
		if desc != "" {
			b.WriteString(" - " + desc)
		}
	}

	return b.String()
}

var metricsCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jim_commands_total",
	Help: "Commands the bot ran, by outcome",
}, []string{"cmd", "outcome"})

// MessageProcessor looks at every guild message before it's checked for commands.
// Returning true means the processor took care of the message (e.g. deleted it) and nothing
// else should run for it.
type MessageProcessor func(data *Data, settings *store.GuildSettings) (bool, error)

type processor struct {
	plugin common.Plugin
	f      MessageProcessor
}

// Registry maps lower case command names and aliases to commands
type Registry struct {
	commands map[string]*Command
	// for listing, in the order they were added
	list []*Command
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Add registers the commands, names are case insensitive. Panics on duplicate names
// since that can only be a programming error.
func (r *Registry) Add(cmds ...*Command) {
	for _, cmd := range cmds {
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			name = strings.ToLower(name)
			if _, ok := r.commands[name]; ok {
				panic("commands: duplicate command name " + name)
			}
			r.commands[name] = cmd
		}

		r.list = append(r.list, cmd)
	}
}

// Lookup finds a command by name or alias, ignoring case
func (r *Registry) Lookup(name string) *Command {
	return r.commands[strings.ToLower(name)]
}

func (r *Registry) Commands() []*Command {
	return r.list
}

// NextArg splits off the first whitespace separated argument
func NextArg(args string) (arg string, rest string) {
	args = strings.TrimSpace(args)
	i := strings.IndexFunc(args, isSpace)
	if i == -1 {
		return args, ""
	}

	return args[:i], strings.TrimSpace(args[i:])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// botMentioned reports whether the message mentions the bot user
func botMentioned(msg *bot.Message, botID int64) bool {
	for _, u := range msg.Mentions {
		if u != nil && u.ID == botID {
			return true
		}
	}
	return false
}
