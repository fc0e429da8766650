package commands

import (
	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/common/fuzzy"
)

var (
	ErrTargetNotFound = errors.NewPlain("target not found")
	// ErrNotConfirmed is returned when a guessed target was declined or never confirmed,
	// the fail reaction has already been added by then
	ErrNotConfirmed = errors.NewPlain("target not confirmed")
)

// TargetScope is where a target is searched for
type TargetScope int

const (
	// ScopeMembers only finds current members of the guild
	ScopeMembers TargetScope = iota
	// ScopeUsers also finds users outside the guild by id, for commands that can ban
	ScopeUsers
	// ScopeBanned finds users in the guild's ban list
	ScopeBanned
)

type MatchKind int

const (
	MatchExact MatchKind = iota
	// MatchGuessed targets came from a fuzzy name search and need confirming
	MatchGuessed
)

type Target struct {
	User *bot.User
	// Member is nil when the user isn't in the guild
	Member *bot.Member

	Match MatchKind
	Score int
}

// FindTarget resolves token to a user. Mentions and ids are exact matches, anything else is
// matched against member display names and usernames and is at best a guess.
func (d *Data) FindTarget(token string, scope TargetScope) (*Target, error) {
	if token == "" {
		return nil, ErrTargetNotFound
	}

	if scope == ScopeBanned {
		return d.findBannedTarget(token)
	}

	if id, ok := common.ParseUserMention(token); ok {
		// a mention can't be anything else, so no name search if it's not found
		return d.exactTarget(id, scope)
	}

	if id, err := common.ParseSnowflake(token); err == nil {
		t, err := d.exactTarget(id, scope)
		if err == nil || err != ErrTargetNotFound {
			return t, err
		}
	}

	members, err := d.GW.Members(d.GuildID())
	if err != nil {
		return nil, errors.WithMessage(err, "members")
	}

	if len(members) == 0 {
		return nil, ErrTargetNotFound
	}

	// display names first then usernames, so on a tie the nickname wins
	candidates := make([]string, 0, len(members)*2)
	for _, m := range members {
		candidates = append(candidates, m.DisplayName())
	}
	for _, m := range members {
		candidates = append(candidates, m.User.Username)
	}

	i, score, ok := fuzzy.Best(token, candidates, common.ConfFuzzyThreshold.GetInt())
	if !ok {
		return nil, ErrTargetNotFound
	}

	m := members[i%len(members)]
	return &Target{User: m.User, Member: m, Match: MatchGuessed, Score: score}, nil
}

func (d *Data) exactTarget(userID int64, scope TargetScope) (*Target, error) {
	m, err := d.GW.Member(d.GuildID(), userID)
	if err == nil {
		return &Target{User: m.User, Member: m, Match: MatchExact, Score: 100}, nil
	}

	if err != bot.ErrNotFound {
		return nil, errors.WithMessage(err, "member")
	}

	if scope != ScopeUsers {
		return nil, ErrTargetNotFound
	}

	u, err := d.GW.User(userID)
	if err != nil {
		if err == bot.ErrNotFound {
			return nil, ErrTargetNotFound
		}
		return nil, errors.WithMessage(err, "user")
	}

	return &Target{User: u, Match: MatchExact, Score: 100}, nil
}

func (d *Data) findBannedTarget(token string) (*Target, error) {
	banned, err := d.GW.Bans(d.GuildID())
	if err != nil {
		return nil, errors.WithMessage(err, "bans")
	}

	if len(banned) == 0 {
		return nil, ErrTargetNotFound
	}

	id, isMention := common.ParseUserMention(token)
	if !isMention {
		id, _ = common.ParseSnowflake(token)
	}

	if id != 0 {
		for _, u := range banned {
			if u.ID == id {
				return &Target{User: u, Match: MatchExact, Score: 100}, nil
			}
		}

		if isMention {
			return nil, ErrTargetNotFound
		}
	}

	names := make([]string, len(banned))
	for i, u := range banned {
		names[i] = u.Username
	}

	i, score, ok := fuzzy.Best(token, names, common.ConfFuzzyThreshold.GetInt())
	if !ok {
		return nil, ErrTargetNotFound
	}

	return &Target{User: banned[i], Match: MatchGuessed, Score: score}, nil
}

// ConfirmTarget asks the author to confirm a guessed target and waits for the answer.
// Exact targets are confirmed right away. Returns false on a no or when nobody answered,
// the message has been fail reacted in that case.
func (d *Data) ConfirmTarget(t *Target) bool {
	if t.Match == MatchExact {
		return true
	}

	// registered before the question is asked so a fast reply can't be missed
	pending := d.Shard.Confirmations.Submit(d.ChannelID(), d.Author().ID)

	prompt, err := d.Reply("You selected user " + t.User.TagAndID() + ". Confirm? (type yes/no)")
	if err != nil {
		d.Logger().WithError(err).Warn("Failed sending confirmation prompt")
	}

	confirmed := pending.Confirmed(d.Context())

	if prompt != nil {
		if err := d.GW.DeleteMessage(prompt.ChannelID, prompt.ID); err != nil {
			d.Logger().WithError(err).Debug("Failed deleting confirmation prompt")
		}
	}

	if !confirmed {
		d.ReactFail()
	}

	return confirmed
}

// ResolveTarget is FindTarget followed by ConfirmTarget, returning ErrTargetNotFound
// or ErrNotConfirmed if there's nothing to act on
func (d *Data) ResolveTarget(token string, scope TargetScope) (*Target, error) {
	t, err := d.FindTarget(token, scope)
	if err != nil {
		return nil, err
	}

	if !d.ConfirmTarget(t) {
		return nil, ErrNotConfirmed
	}

	return t, nil
}
