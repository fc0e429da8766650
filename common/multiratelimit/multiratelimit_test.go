package multiratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowIsPerKey(t *testing.T) {
	m := NewMultiRatelimiter[int64](0.001, 2)

	assert.True(t, m.Allow(1))
	assert.True(t, m.Allow(1))
	assert.False(t, m.Allow(1))

	assert.True(t, m.Allow(2), "other keys have their own bucket")
}

func TestWaitRespectsContext(t *testing.T) {
	m := NewMultiRatelimiter[string](0.001, 1)

	require.NoError(t, m.Wait(context.Background(), "guild"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
	defer cancel()

	assert.Error(t, m.Wait(ctx, "guild"))
}
