package commands_test

import (
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/commands/commandstest"
	"github.com/safetyjim/safetyjim/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID int64 = 700000000000000001

// echoCommand records what it was called with
type echoCommand struct {
	calls   int
	args    string
	outcome commands.Outcome
	err     error
	panic   bool
}

func (e *echoCommand) command(name string) *commands.Command {
	return &commands.Command{
		Name:    name,
		Aliases: []string{name + "alias"},
		Usages:  []string{name + " <text> - echoes the text"},
		RunFunc: func(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
			e.calls++
			e.args = args
			if e.panic {
				panic("broken")
			}
			if e.err == nil && e.outcome == commands.Handled {
				data.ReactSuccess()
			}
			return e.outcome, e.err
		},
	}
}

func TestDispatchPrefix(t *testing.T) {
	cases := []struct {
		name      string
		noSpace   bool
		content   string
		wantCall  bool
		wantArgs  string
		wantReact string
	}{
		{"spaced", false, "-mod echo hello world", true, "hello world", bot.EmojiSuccess},
		{"case insensitive", false, "-MOD EcHo hi", true, "hi", bot.EmojiSuccess},
		{"alias", false, "-mod echoalias hi", true, "hi", bot.EmojiSuccess},
		{"multiline args", false, "-mod echo line one\nline two", true, "line one\nline two", bot.EmojiSuccess},
		{"no prefix", false, "echo hello", false, "", ""},
		{"prefix only", false, "-mod", false, "", bot.EmojiFail},
		{"unknown command", false, "-mod nope", false, "", bot.EmojiFail},
		{"attached prefix in spaced mode", false, "-modecho hi", false, "", ""},
		{"attached", true, "-modecho hi there", true, "hi there", bot.EmojiSuccess},
		{"attached prefix only", true, "-mod", false, "", bot.EmojiFail},
		{"attached unknown", true, "-modnope", false, "", bot.EmojiFail},
		{"spaced in attached mode", true, "-mod echo", false, "", bot.EmojiFail},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := commandstest.NewEnv(t)
			env.Member(userID, "user", "")
			echo := &echoCommand{}
			env.Registry.Add(echo.command("echo"))
			env.UpdateSettings(func(s *store.GuildSettings) { s.NoSpacePrefix = c.noSpace })

			msg := env.Run(userID, c.content)

			assert.Equal(t, c.wantCall, echo.calls == 1)
			assert.Equal(t, c.wantArgs, echo.args)
			if c.wantReact == "" {
				assert.Empty(t, env.Reactions(msg))
			} else {
				assert.Equal(t, []string{c.wantReact}, env.Reactions(msg))
			}
		})
	}
}

func TestDispatchIgnoresBots(t *testing.T) {
	env := commandstest.NewEnv(t)
	echo := &echoCommand{}
	env.Registry.Add(echo.command("echo"))

	env.GW.AddMember(commandstest.GuildID, &bot.User{ID: userID, Username: "otherbot", Bot: true}, "", 0)
	env.Run(userID, "-mod echo hi")
	assert.Equal(t, 0, echo.calls)
}

func TestMalformedUsage(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(userID, "user", "")
	echo := &echoCommand{outcome: commands.MalformedUsage}
	env.Registry.Add(echo.command("echo"))

	msg := env.Run(userID, "-mod echo")
	assert.Equal(t, []string{bot.EmojiFail}, env.Reactions(msg))
	assert.Equal(t, "**Safety Jim - \"echo\" Syntax**\n`-mod echo <text>` - echoes the text", env.LastMessage())
}

func TestCommandErrors(t *testing.T) {
	for _, panics := range []bool{false, true} {
		env := commandstest.NewEnv(t)
		env.Member(userID, "user", "")
		echo := &echoCommand{panic: panics, err: errors.New("db on fire")}
		env.Registry.Add(echo.command("echo"))

		msg := env.Run(userID, "-mod echo hi")
		assert.Equal(t, []string{bot.EmojiFail}, env.Reactions(msg), "panic: %v", panics)
		assert.Equal(t, commands.GenericErrorMessage, env.LastMessage(), "panic: %v", panics)
	}
}

func TestRequiredPermissions(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(userID, "user", "")
	echo := &echoCommand{}
	cmd := echo.command("echo")
	cmd.RequiredPerms = bot.PermissionBanMembers
	cmd.RequiredPermsName = "Ban Members"
	env.Registry.Add(cmd)

	msg := env.Run(userID, "-mod echo hi")
	assert.Equal(t, 0, echo.calls)
	assert.Equal(t, []string{bot.EmojiFail}, env.Reactions(msg))
	assert.Equal(t, "You don't have enough permissions to execute this command! Required permission: Ban Members", env.LastMessage())

	env.Run(commandstest.ModID, "-mod echo hi")
	assert.Equal(t, 1, echo.calls)
}

func TestSilentCommands(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(userID, "user", "")
	echo := &echoCommand{}
	env.Registry.Add(echo.command("echo"))
	env.UpdateSettings(func(s *store.GuildSettings) { s.SilentCommands = true })

	msg := env.Run(userID, "-mod echo hi")
	deletes := env.GW.CallsTo("DeleteMessage")
	require.Len(t, deletes, 1)
	assert.Equal(t, msg.ID, deletes[0].Args[1])

	// failed commands are left alone
	echo.outcome = commands.MalformedUsage
	env.Run(userID, "-mod echo")
	assert.Len(t, env.GW.CallsTo("DeleteMessage"), 1)
}

func TestPrefixDiscovery(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(userID, "user", "")
	env.UpdateSettings(func(s *store.GuildSettings) { s.Prefix = "!jim" })

	msg := env.Run(userID, "<@100000000000000001> what's your prefix?")
	assert.Equal(t, []string{bot.EmojiSuccess}, env.Reactions(msg))
	assert.Equal(t, "This guild's prefix is: !jim", env.LastMessage())
}

func TestProcessorsRunFirst(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(userID, "user", "")
	echo := &echoCommand{}
	env.Registry.Add(echo.command("echo"))

	var seen []string
	env.Dispatcher.AddProcessor(&commands.Plugin{}, func(data *commands.Data, settings *store.GuildSettings) (bool, error) {
		seen = append(seen, "panics")
		panic("processor bug")
	})
	env.Dispatcher.AddProcessor(&commands.Plugin{}, func(data *commands.Data, settings *store.GuildSettings) (bool, error) {
		seen = append(seen, data.Msg.Content)
		return data.Msg.Content == "-mod echo blocked", nil
	})

	env.Run(userID, "-mod echo fine")
	assert.Equal(t, 1, echo.calls)

	env.Run(userID, "-mod echo blocked")
	assert.Equal(t, 1, echo.calls)
	assert.Equal(t, []string{"panics", "-mod echo fine", "panics", "-mod echo blocked"}, seen)
}

func TestCommandTimeout(t *testing.T) {
	prev := commands.CommandExecTimeout
	commands.CommandExecTimeout = time.Millisecond * 50
	defer func() { commands.CommandExecTimeout = prev }()

	env := commandstest.NewEnv(t)
	env.Member(userID, "user", "")
	env.Registry.Add(&commands.Command{
		Name: "slow",
		RunFunc: func(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
			<-data.Context().Done()
			return commands.Handled, data.Context().Err()
		},
	})

	msg := env.Run(userID, "-mod slow")
	assert.Equal(t, []string{bot.EmojiFail}, env.Reactions(msg))
	assert.Equal(t, commands.GenericErrorMessage, env.LastMessage())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := commands.NewRegistry()
	r.Add(&commands.Command{Name: "ban"})
	assert.Panics(t, func() { r.Add(&commands.Command{Name: "BAN"}) })
	assert.NotNil(t, r.Lookup("Ban"))
}

func TestNextArg(t *testing.T) {
	arg, rest := commands.NextArg("  @user   spamming a lot | 1h ")
	assert.Equal(t, "@user", arg)
	assert.Equal(t, "spamming a lot | 1h", rest)

	arg, rest = commands.NextArg("single")
	assert.Equal(t, "single", arg)
	assert.Equal(t, "", rest)
}
