package bot

// GuildShardID returns the shard that owns the guild, (guildID >> 22) % shardCount.
// Everything that needs to find a guild's connection has to go through this.
func GuildShardID(guildID int64, shardCount int) int {
	if shardCount < 1 {
		panic("bot: shard count must be at least 1")
	}

	return int((uint64(guildID) >> 22) % uint64(shardCount))
}
