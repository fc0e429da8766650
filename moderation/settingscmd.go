package moderation

import (
	"sort"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/settings"
	"github.com/safetyjim/safetyjim/store"
	"github.com/volatiletech/null/v8"
)

// errBadSettingValue makes the command reply with its usage
var errBadSettingValue = errors.NewPlain("bad setting value")

// settingProblem is shown to the user as is
type settingProblem string

func (p settingProblem) Error() string {
	return string(p)
}

type settingSetter func(gw bot.Gateway, s *store.GuildSettings, value string) error

type settingKey struct {
	name string
	help string
	set  settingSetter
}

func boolSetting(field func(s *store.GuildSettings) *bool) settingSetter {
	return func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		switch strings.ToLower(value) {
		case "enabled":
			*field(s) = true
		case "disabled":
			*field(s) = false
		default:
			return errBadSettingValue
		}
		return nil
	}
}

func channelSetting(field func(s *store.GuildSettings) *int64) settingSetter {
	return func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		first, _ := commands.NextArg(value)
		id, ok := common.ParseChannelMention(first)
		if !ok {
			return errBadSettingValue
		}

		if !isTextChannel(gw, s.GuildID, id) {
			return settingProblem("That channel isn't a text channel in this server!")
		}

		*field(s) = id
		return nil
	}
}

func actionSetting(field func(s *store.GuildSettings) *store.Action) settingSetter {
	return func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		a, ok := store.ParseAction(strings.ToLower(value))
		if !ok {
			return errBadSettingValue
		}
		*field(s) = a
		return nil
	}
}

var settingKeys = []*settingKey{
	{name: "prefix", help: "`Prefix <text>` - Default: -mod", set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		first, _ := commands.NextArg(value)
		s.Prefix = first
		return nil
	}},
	{name: "nospaceprefix", help: "`NoSpacePrefix <enabled/disabled>` - Default: disabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.NoSpacePrefix })},
	{name: "silentcommands", help: "`SilentCommands <enabled/disabled>` - Default: disabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.SilentCommands })},
	{name: "modactionconfirmation", help: "`ModActionConfirmation <enabled/disabled>` - Default: enabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.ModActionConfirmationMessage })},

	{name: "modlog", help: "`ModLog <enabled/disabled>` - Default: disabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.ModLog })},
	{name: "modlogchannel", help: "`ModLogChannel <#channel>` - Default: %s", set: channelSetting(func(s *store.GuildSettings) *int64 { return &s.ModLogChannelID })},

	{name: "holdingroom", help: "`HoldingRoom <enabled/disabled>` - Default: disabled", set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		if err := boolSetting(func(s *store.GuildSettings) *bool { return &s.HoldingRoom })(gw, s, value); err != nil {
			return err
		}
		if s.HoldingRoom && !s.HoldingRoomRoleID.Valid {
			return settingProblem("You can't enable holding room before setting a role for it first.")
		}
		return nil
	}},
	{name: "holdingroomrole", help: "`HoldingRoomRole <text>` - Default: None", set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		roles, err := gw.Roles(s.GuildID)
		if err != nil {
			return errors.WithMessage(err, "roles")
		}

		for _, r := range roles {
			if strings.EqualFold(r.Name, value) {
				s.HoldingRoomRoleID = null.Int64From(r.ID)
				return nil
			}
		}
		return settingProblem("Could not find a role called " + common.EscapeSpecialMentions(value) + "!")
	}},
	{name: "holdingroomminutes", help: "`HoldingRoomMinutes <number>` - Default: " + strconv.Itoa(store.DefaultHoldingRoomMinutes), set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		first, _ := commands.NextArg(value)
		minutes, err := strconv.Atoi(first)
		if err != nil || minutes < 0 {
			return errBadSettingValue
		}
		s.HoldingRoomMinutes = minutes
		return nil
	}},

	{name: "welcomemessage", help: "`WelcomeMessage <enabled/disabled>` - Default: disabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.WelcomeMessage })},
	{name: "welcomemessagechannel", help: "`WelcomeMessageChannel <#channel>` - Default: %s", set: channelSetting(func(s *store.GuildSettings) *int64 { return &s.WelcomeMessageChannelID })},
	{name: "message", help: "`Message <text>` - Default: " + store.DefaultWelcomeMessage, set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		s.Message = value
		return nil
	}},

	{name: "invitelinkremover", help: "`InviteLinkRemover <enabled/disabled>` - Default: disabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.InviteLinkRemover })},
	{name: "invitelinkremoveraction", help: "`InviteLinkRemoverAction <nothing/warn/mute/kick/ban/softban/hardban>` - Default: warn", set: actionSetting(func(s *store.GuildSettings) *store.Action { return &s.InviteLinkRemoverAction })},

	{name: "wordfilter", help: "`WordFilter <enabled/disabled>` - Default: disabled", set: boolSetting(func(s *store.GuildSettings) *bool { return &s.WordFilter })},
	{name: "wordfilterlevel", help: "`WordFilterLevel <low/high>` - Default: low", set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		switch strings.ToLower(value) {
		case "low":
			s.WordFilterLevel = store.WordFilterLow
		case "high":
			s.WordFilterLevel = store.WordFilterHigh
		default:
			return errBadSettingValue
		}
		return nil
	}},
	{name: "wordfilterblacklist", help: "`WordFilterBlacklist <word1, word2, ...>` - Default: None", set: func(gw bot.Gateway, s *store.GuildSettings, value string) error {
		if settings.CompileBlocklist(value, s.WordFilterLevel) == nil {
			return settingProblem("The blacklist needs at least one word!")
		}
		s.WordFilterBlocklist = null.StringFrom(value)
		return nil
	}},
	{name: "wordfilteraction", help: "`WordFilterAction <nothing/warn/mute/kick/ban/softban/hardban>` - Default: warn", set: actionSetting(func(s *store.GuildSettings) *store.Action { return &s.WordFilterAction })},
}

func findSettingKey(name string) *settingKey {
	name = strings.ToLower(name)
	if name == "wordfilterblocklist" {
		name = "wordfilterblacklist"
	}

	for _, k := range settingKeys {
		if k.name == name {
			return k
		}
	}
	return nil
}

func (m *Moderation) settingsCommand() *commands.Command {
	return &commands.Command{
		Name: "settings",
		Usages: []string{
			"settings display - shows current state of settings",
			"settings list - lists the keys you can use to customize the bot",
			"settings reset - resets every setting to their default value",
			"settings set <key> <value> - changes given key's value",
		},
		RunFunc: m.cmdSettings,
		Plugin:  &Plugin{},
	}
}

func (m *Moderation) cmdSettings(data *commands.Data, gs *store.GuildSettings, args string) (commands.Outcome, error) {
	sub, rest := commands.NextArg(args)

	switch strings.ToLower(sub) {
	case "display":
		data.ReactSuccess()
		data.ReplyIgnoreError(settingsDisplay(data.GW, gs))
		return commands.Handled, nil
	case "list":
		data.ReactSuccess()
		data.ReplyIgnoreError(settingsList(data.GW, data.GuildID()))
		return commands.Handled, nil
	case "reset", "set":
	default:
		return commands.MalformedUsage, nil
	}

	ok, err := data.AuthorHasPermissions(bot.PermissionAdministrator)
	if err != nil {
		return commands.Handled, err
	}
	if !ok {
		data.FailMessage("You don't have enough permissions to modify guild settings! Required permission: Administrator")
		return commands.Handled, nil
	}

	if strings.EqualFold(sub, "reset") {
		if err := m.Settings.Delete(data.Context(), data.GuildID()); err != nil {
			return commands.Handled, err
		}
		if _, err := m.Settings.Get(data.Context(), data.GuildID()); err != nil {
			return commands.Handled, err
		}

		data.ReactSuccess()
		return commands.Handled, nil
	}

	name, value := commands.NextArg(rest)
	if name == "" || value == "" {
		return commands.MalformedUsage, nil
	}

	key := findSettingKey(name)
	if key == nil {
		data.FailMessage("Please enter a valid setting key!")
		return commands.Handled, nil
	}

	updated := gs.Copy()
	err = key.set(data.GW, updated, value)
	if err == errBadSettingValue {
		return commands.MalformedUsage, nil
	}

	var problem settingProblem
	if errors.As(err, &problem) {
		data.FailMessage(string(problem))
		return commands.Handled, nil
	}
	if err != nil {
		return commands.Handled, err
	}

	if err := m.Settings.Update(data.Context(), updated); err != nil {
		if err == settings.ErrInvalidPrefix {
			data.FailMessage("Invalid prefix!")
			return commands.Handled, nil
		}
		return commands.Handled, err
	}

	data.ReactSuccess()
	return commands.Handled, nil
}

func enabledText(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

func channelText(gw bot.Gateway, guildID, channelID int64) string {
	if !isTextChannel(gw, guildID, channelID) {
		return "None"
	}
	return common.ChannelMention(channelID)
}

func roleText(gw bot.Gateway, guildID int64, roleID null.Int64) string {
	if !roleID.Valid {
		return "None"
	}

	roles, err := gw.Roles(guildID)
	if err != nil {
		return "None"
	}

	for _, r := range roles {
		if r.ID == roleID.Int64 {
			return r.Name
		}
	}
	return "None"
}

func settingsDisplay(gw bot.Gateway, s *store.GuildSettings) string {
	lines := []string{"**Guild Settings**", "**Prefix:** " + s.Prefix}

	lines = append(lines, "**Mod Log:** "+enabledText(s.ModLog))
	if s.ModLog {
		lines = append(lines, "\t**Mod Log Channel:** "+channelText(gw, s.GuildID, s.ModLogChannelID))
	}

	lines = append(lines, "**Welcome Messages:** "+enabledText(s.WelcomeMessage))
	if s.WelcomeMessage {
		lines = append(lines, "\t**Welcome Message Channel:** "+channelText(gw, s.GuildID, s.WelcomeMessageChannelID))
	}

	lines = append(lines, "**Holding Room:** "+enabledText(s.HoldingRoom))
	if s.HoldingRoom {
		lines = append(lines,
			"\t**Holding Room Role:** "+roleText(gw, s.GuildID, s.HoldingRoomRoleID),
			"\t**Holding Room Delay:** "+strconv.Itoa(s.HoldingRoomMinutes)+" minute(s)")
	}

	lines = append(lines, "**Invite Link Remover:** "+enabledText(s.InviteLinkRemover))
	if s.InviteLinkRemover {
		lines = append(lines, "\t**Action:** "+s.InviteLinkRemoverAction.String())
	}

	lines = append(lines, "**Word Filter:** "+enabledText(s.WordFilter))
	if s.WordFilter {
		level := "low"
		if s.WordFilterLevel == store.WordFilterHigh {
			level = "high"
		}
		lines = append(lines, "\t**Level:** "+level, "\t**Action:** "+s.WordFilterAction.String())
	}

	lines = append(lines,
		"**Silent Commands:** "+enabledText(s.SilentCommands),
		"**No Space Prefix:** "+enabledText(s.NoSpacePrefix),
		"**Mod Action Confirmation:** "+enabledText(s.ModActionConfirmationMessage))

	return strings.Join(lines, "\n")
}

func settingsList(gw bot.Gateway, guildID int64) string {
	defaultChannel := "None"
	if id := bot.DefaultChannel(gw, guildID); id != 0 {
		defaultChannel = common.ChannelMention(id)
	}

	helps := make([]string, 0, len(settingKeys))
	for _, k := range settingKeys {
		helps = append(helps, strings.ReplaceAll(k.help, "%s", defaultChannel))
	}
	sort.Strings(helps)

	return "**List of settings**\n" + strings.Join(helps, "\n")
}
