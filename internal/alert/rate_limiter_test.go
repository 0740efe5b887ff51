package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	target := "http://alerts.example"

	assert.True(t, rl.Allow(target))
	assert.True(t, rl.Allow(target))
	assert.True(t, rl.Allow(target))
	assert.False(t, rl.Allow(target))
}

func TestRateLimiterRetryDelay(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	target := "http://alerts.example"

	assert.Equal(t, time.Duration(0), rl.GetRetryDelay(target))

	assert.True(t, rl.Allow(target))
	assert.False(t, rl.Allow(target))
	assert.Greater(t, rl.GetRetryDelay(target), time.Duration(0))
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	target := "http://alerts.example"

	assert.True(t, rl.Allow(target))
	assert.False(t, rl.Allow(target))

	rl.Reset(target)
	assert.True(t, rl.Allow(target))
}

func TestRateLimiterIsPerTarget(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("http://a"))
	assert.False(t, rl.Allow("http://a"))
	assert.True(t, rl.Allow("http://b"))
}
