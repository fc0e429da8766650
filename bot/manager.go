package bot

import (
	"context"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildBans |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// ShardManager owns every shard of the process, there's always exactly ShardCount of them
type ShardManager struct {
	ShardCount int
	Shards     []*Shard
	Router     *EventRouter

	sessions []*discordgo.Session
	wg       sync.WaitGroup
}

func NewShardManager(shardCount int, router *EventRouter) *ShardManager {
	if shardCount < 1 {
		shardCount = 1
	}

	return &ShardManager{
		ShardCount: shardCount,
		Router:     router,
	}
}

// AddShard adds the next shard using gw, used directly by tests and by OpenDiscord
func (m *ShardManager) AddShard(gw Gateway) *Shard {
	s := NewShard(len(m.Shards), gw, m.Router)
	m.Shards = append(m.Shards, s)
	return s
}

// ForGuild returns the shard that owns the guild
func (m *ShardManager) ForGuild(guildID int64) *Shard {
	return m.Shards[GuildShardID(guildID, m.ShardCount)]
}

// GatewayForGuild returns the connection that owns the guild
func (m *ShardManager) GatewayForGuild(guildID int64) Gateway {
	return m.ForGuild(guildID).Gateway
}

// Start runs every shard's queue, Stop must be called to wait for them
func (m *ShardManager) Start(ctx context.Context) {
	for _, s := range m.Shards {
		m.wg.Add(1)
		go func(s *Shard) {
			defer m.wg.Done()
			s.Run(ctx)
		}(s)
	}
}

// Stop closes the discord sessions and waits for the shards to finish what they're doing
func (m *ShardManager) Stop() {
	for i, session := range m.sessions {
		if err := session.Close(); err != nil {
			logger.WithError(err).WithField("shard", i).Error("Failed closing session")
		}
	}

	for _, s := range m.Shards {
		s.Stop()
	}
	m.wg.Wait()
}

// OpenDiscord creates a discord session for every shard and connects them,
// retrying each with an exponential backoff until ctx is done
func (m *ShardManager) OpenDiscord(ctx context.Context, token string) error {
	if len(m.Shards) != 0 {
		return errors.NewPlain("shards already added")
	}

	for i := 0; i < m.ShardCount; i++ {
		session, err := discordgo.New("Bot " + token)
		if err != nil {
			return errors.WithStackIf(err)
		}

		session.ShardID = i
		session.ShardCount = m.ShardCount
		session.Identify.Intents = intents
		session.StateEnabled = true

		shard := m.AddShard(&DiscordGateway{Session: session})
		addSessionHandlers(session, shard)
		m.sessions = append(m.sessions, session)
	}

	for i, session := range m.sessions {
		if err := openSession(ctx, i, session); err != nil {
			return err
		}
	}

	return nil
}

func openSession(ctx context.Context, shardID int, session *discordgo.Session) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Minute

	err := backoff.RetryNotify(func() error {
		return session.Open()
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.WithError(err).WithField("shard", shardID).Warnf("Failed connecting shard, retrying in %s", next)
	})

	if err != nil {
		return errors.WithMessagef(err, "shard %d", shardID)
	}

	logger.WithField("shard", shardID).Info("Connected shard")
	return nil
}

// addSessionHandlers converts the discordgo events we care about and pushes them to the shard
func addSessionHandlers(session *discordgo.Session, shard *Shard) {
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		metricsShardsOpen.Inc()
	})

	session.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		metricsShardsOpen.Dec()
	})

	session.AddHandler(func(_ *discordgo.Session, mc *discordgo.MessageCreate) {
		// dm's are ignored
		if mc.GuildID == "" || mc.Author == nil {
			return
		}

		msg := convertMessage(mc.Message)
		shard.Push(EventMessageCreate, msg.GuildID, &MessageCreate{Message: msg})
	})

	session.AddHandler(func(_ *discordgo.Session, ma *discordgo.GuildMemberAdd) {
		guildID := parseID(ma.GuildID)
		shard.Push(EventGuildMemberAdd, guildID, &GuildMemberAdd{Member: convertMember(guildID, ma.Member)})
	})

	session.AddHandler(func(_ *discordgo.Session, mr *discordgo.GuildMemberRemove) {
		guildID := parseID(mr.GuildID)
		shard.Push(EventGuildMemberRemove, guildID, &GuildMemberRemove{GuildID: guildID, User: convertUser(mr.User)})
	})

	session.AddHandler(func(_ *discordgo.Session, gc *discordgo.GuildCreate) {
		if gc.Unavailable {
			return
		}

		guildID := parseID(gc.ID)
		shard.Push(EventGuildCreate, guildID, &GuildCreate{Guild: &Guild{
			ID:      guildID,
			Name:    gc.Name,
			OwnerID: parseID(gc.OwnerID),
		}})
	})

	session.AddHandler(func(_ *discordgo.Session, gd *discordgo.GuildDelete) {
		// outages aren't the bot leaving
		if gd.Unavailable {
			return
		}

		guildID := parseID(gd.ID)
		shard.Push(EventGuildDelete, guildID, &GuildDelete{GuildID: guildID})
	})
}
