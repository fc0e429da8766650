package commands_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/commands/commandstest"
	"github.com/safetyjim/safetyjim/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fraudID int64 = 700000000000000010
	fritzID int64 = 700000000000000020
	// not a member of the guild
	outsiderID int64 = 700000000000000030
)

type targetResult struct {
	target *commands.Target
	err    error
}

// addTargetCommand adds a "target" command that resolves its first argument in scope
func addTargetCommand(env *commandstest.Env, scope commands.TargetScope) <-chan targetResult {
	results := make(chan targetResult, 10)
	env.Registry.Add(&commands.Command{
		Name: "target",
		RunFunc: func(data *commands.Data, settings *store.GuildSettings, args string) (commands.Outcome, error) {
			token, _ := commands.NextArg(args)
			t, err := data.ResolveTarget(token, scope)
			results <- targetResult{t, err}
			return commands.Handled, nil
		},
	})
	return results
}

func id(i int64) string {
	return strconv.FormatInt(i, 10)
}

func TestExactTargets(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(fraudID, "fraud", "")
	env.GW.Users[outsiderID] = &bot.User{ID: outsiderID, Username: "outsider"}
	results := addTargetCommand(env, commands.ScopeMembers)

	for _, token := range []string{"<@" + id(fraudID) + ">", "<@!" + id(fraudID) + ">", id(fraudID)} {
		env.Run(commandstest.ModID, "-mod target "+token)
		r := <-results
		require.NoError(t, r.err, token)
		assert.Equal(t, commands.MatchExact, r.target.Match)
		assert.Equal(t, fraudID, r.target.User.ID)
		assert.NotNil(t, r.target.Member)
	}

	env.Run(commandstest.ModID, "-mod target <@"+id(outsiderID)+">")
	r := <-results
	assert.Equal(t, commands.ErrTargetNotFound, r.err)

	// exact matches never ask
	assert.Equal(t, 0, env.Shard.Confirmations.Len())
	assert.NotContains(t, env.SentContents(), "Confirm?")
}

func TestExactTargetOutsideGuild(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.GW.Users[outsiderID] = &bot.User{ID: outsiderID, Username: "outsider"}
	results := addTargetCommand(env, commands.ScopeUsers)

	env.Run(commandstest.ModID, "-mod target <@"+id(outsiderID)+">")
	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, outsiderID, r.target.User.ID)
	assert.Nil(t, r.target.Member)
	assert.Equal(t, commands.MatchExact, r.target.Match)

	env.Run(commandstest.ModID, "-mod target 700000000000000099")
	r = <-results
	assert.Equal(t, commands.ErrTargetNotFound, r.err)
}

func TestGuessedTargetConfirmed(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(fraudID, "fraud", "")
	env.Member(fritzID, "fritz", "")
	results := addTargetCommand(env, commands.ScopeMembers)

	// "frank" scores 81 against fraud and 60 against fritz
	msg, done := env.RunAsync(commandstest.ModID, "-mod target frank")
	env.WaitConfirmation()
	assert.Equal(t, "You selected user fraud#0001 ("+id(fraudID)+"). Confirm? (type yes/no)", env.LastMessage())

	// someone else answering doesn't count
	assert.False(t, env.Reply(fritzID, "yes"))
	assert.True(t, env.Reply(commandstest.ModID, "Yes"))
	<-done

	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, fraudID, r.target.User.ID)
	assert.Equal(t, commands.MatchGuessed, r.target.Match)
	assert.Equal(t, 81, r.target.Score)
	assert.Empty(t, env.Reactions(msg))

	// the prompt is cleaned up
	assert.Len(t, env.GW.CallsTo("DeleteMessage"), 1)
}

func TestGuessedTargetDeclined(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(fraudID, "fraud", "")
	env.Member(fritzID, "fritz", "")
	results := addTargetCommand(env, commands.ScopeMembers)

	msg, done := env.RunAsync(commandstest.ModID, "-mod target frank")
	env.WaitConfirmation()
	assert.True(t, env.Reply(commandstest.ModID, "no"))
	<-done

	r := <-results
	assert.Equal(t, commands.ErrNotConfirmed, r.err)
	assert.Equal(t, []string{bot.EmojiFail}, env.Reactions(msg))
	assert.Equal(t, 0, env.Shard.Confirmations.Len())
}

func TestGuessedTargetTimesOut(t *testing.T) {
	prev := commands.CommandExecTimeout
	commands.CommandExecTimeout = time.Millisecond * 100
	defer func() { commands.CommandExecTimeout = prev }()

	env := commandstest.NewEnv(t)
	env.Member(fraudID, "fraud", "")
	results := addTargetCommand(env, commands.ScopeMembers)

	msg := env.Run(commandstest.ModID, "-mod target frank")
	r := <-results
	assert.Equal(t, commands.ErrNotConfirmed, r.err)
	assert.Equal(t, []string{bot.EmojiFail}, env.Reactions(msg))
	assert.Equal(t, 0, env.Shard.Confirmations.Len())
}

func TestGuessBelowThreshold(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(fritzID, "fritz", "")
	results := addTargetCommand(env, commands.ScopeMembers)

	env.Run(commandstest.ModID, "-mod target frank")
	r := <-results
	assert.Equal(t, commands.ErrTargetNotFound, r.err)
	assert.Equal(t, 0, env.Shard.Confirmations.Len())
	assert.NotContains(t, env.LastMessage(), "Confirm?")
}

func TestGuessMatchesNicknames(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.Member(fritzID, "fritz", "fraud")
	results := addTargetCommand(env, commands.ScopeMembers)

	_, done := env.RunAsync(commandstest.ModID, "-mod target frank")
	env.WaitConfirmation()
	env.Reply(commandstest.ModID, "y")
	<-done

	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, fritzID, r.target.User.ID)
}

func TestBannedTargets(t *testing.T) {
	env := commandstest.NewEnv(t)
	env.GW.Users[fraudID] = &bot.User{ID: fraudID, Username: "fraud", Discriminator: "0001"}
	results := addTargetCommand(env, commands.ScopeBanned)

	env.Run(commandstest.ModID, "-mod target "+id(fraudID))
	r := <-results
	assert.Equal(t, commands.ErrTargetNotFound, r.err, "empty ban list")

	env.GW.BanList[commandstest.GuildID] = map[int64]bool{fraudID: true}

	env.Run(commandstest.ModID, "-mod target <@"+id(fraudID)+">")
	r = <-results
	require.NoError(t, r.err)
	assert.Equal(t, commands.MatchExact, r.target.Match)

	_, done := env.RunAsync(commandstest.ModID, "-mod target frank")
	env.WaitConfirmation()
	env.Reply(commandstest.ModID, "yes")
	<-done
	r = <-results
	require.NoError(t, r.err)
	assert.Equal(t, fraudID, r.target.User.ID)
	assert.Equal(t, commands.MatchGuessed, r.target.Match)
}
