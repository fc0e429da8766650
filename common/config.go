package common

import (
	"github.com/safetyjim/safetyjim/common/config"
)

var (
	ConfBotToken      = config.RegisterOption("jim.token", "Discord bot token", "")
	ConfShardCount    = config.RegisterOption("jim.shard_count", "Total number of shards, every process runs all of them", 1)
	ConfDefaultPrefix = config.RegisterOption("jim.default_prefix", "Command prefix used for new guilds", "-mod")

	ConfPQDSN      = config.RegisterOption("jim.pq_dsn", "Postgres connection string, leave empty to keep records in memory", "")
	ConfPQMaxConns = config.RegisterOption("jim.pq_max_conns", "Max open postgres connections", 10)

	ConfRedis         = config.RegisterOption("jim.redis", "Redis address, used for locking reconciler ticks between processes", "")
	ConfRedisPoolSize = config.RegisterOption("jim.redis_pool_size", "Redis pool size", 10)

	ConfShardQueueSize             = config.RegisterOption("jim.shard_queue_size", "Max buffered events per shard before new ones are dropped", 256)
	ConfConfirmationTimeoutSeconds = config.RegisterOption("jim.confirmation_timeout_seconds", "How long a guessed target confirmation waits for a reply", 30)
	ConfFuzzyThreshold             = config.RegisterOption("jim.fuzzy_threshold", "Minimum score (0-100) for a fuzzy target match to be accepted", 75)
)
