package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	start := time.Now()

	assert.True(t, rl.Allow(start))
	assert.True(t, rl.Allow(start.Add(100*time.Millisecond)))
	assert.True(t, rl.Allow(start.Add(200*time.Millisecond)))
	assert.False(t, rl.Allow(start.Add(300*time.Millisecond)), "expected fourth event in window to be refused")

	assert.True(t, rl.Allow(start.Add(1100*time.Millisecond)), "expected window to slide")
	assert.True(t, rl.Allow(start.Add(1150*time.Millisecond)))
	assert.False(t, rl.Allow(start.Add(1160*time.Millisecond)), "expected events inside the window to still count")
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, rateLimitEvents, rl.limit)
	assert.Equal(t, rateLimitWindow, rl.window)
}
