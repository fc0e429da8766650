package bot

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuildShardID(t *testing.T) {
	cases := []struct {
		guildID    int64
		shardCount int
		want       int
	}{
		{0, 1, 0},
		{105487308693757952, 1, 0},
		// 105487308693757952 >> 22 = 25150134252
		{105487308693757952, 2, 0},
		{105487308693757952, 7, int(25150134252 % 7)},
		{1 << 22, 2, 1},
		{3 << 22, 4, 3},
		{(3 << 22) + 12345, 4, 3},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, GuildShardID(c.guildID, c.shardCount), "guild %d shards %d", c.guildID, c.shardCount)
	}
}

func TestGuildShardIDBounds(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		g := r.Int63()
		if i%10 == 0 {
			g = -g
		}
		n := r.Intn(64) + 1

		got := GuildShardID(g, n)
		assert.True(t, got >= 0 && got < n, "guild %d shards %d got %d", g, n, got)
		assert.Equal(t, got, GuildShardID(g, n))
	}

	assert.Equal(t, 0, GuildShardID(math.MaxInt64, 1))
}

func TestGuildShardIDPanicsOnZeroShards(t *testing.T) {
	assert.Panics(t, func() { GuildShardID(1, 0) })
}
