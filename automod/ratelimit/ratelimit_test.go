package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLimiter(cfg Config) (*Limiter, *time.Time) {
	l := NewLimiter(cfg, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	return l, &now
}

func TestAdmitExhaustsBucket(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLimiter(Config{MaxTokens: 3, RefillPerSecond: 1, MaxInactive: time.Hour, SweepInterval: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(l.Admit("alice"), "admit %d", i)
	}
	assert.False(l.Admit("alice"))

	// other actors are unaffected
	assert.True(l.Admit("bob"))
}

func TestRefillWholePeriods(t *testing.T) {
	assert := assert.New(t)
	l, now := testLimiter(Config{MaxTokens: 5, RefillPerSecond: 1, MaxInactive: time.Hour, SweepInterval: time.Minute})

	for i := 0; i < 5; i++ {
		assert.True(l.Admit("alice"))
	}
	assert.False(l.Admit("alice"))

	// three idle periods restore three tokens, capped at capacity
	*now = now.Add(3 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(l.Admit("alice"), "refilled admit %d", i)
	}
	assert.False(l.Admit("alice"))
}

func TestRefillCappedAtCapacity(t *testing.T) {
	assert := assert.New(t)
	l, now := testLimiter(Config{MaxTokens: 2, RefillPerSecond: 1, MaxInactive: time.Hour, SweepInterval: time.Minute})

	assert.True(l.Admit("alice"))
	assert.True(l.Admit("alice"))

	*now = now.Add(time.Minute)
	assert.True(l.Admit("alice"))
	assert.True(l.Admit("alice"))
	assert.False(l.Admit("alice"))
}

func TestDenialResetsRefillClock(t *testing.T) {
	assert := assert.New(t)
	l, now := testLimiter(Config{MaxTokens: 1, RefillPerSecond: 0.5, MaxInactive: time.Hour, SweepInterval: time.Minute})

	assert.True(l.Admit("alice"))

	// keep hammering just under the refill period; the denial at each step
	// resets the clock, so no tokens ever accrue
	for i := 0; i < 5; i++ {
		*now = now.Add(1900 * time.Millisecond)
		assert.False(l.Admit("alice"), "denied attempt %d", i)
	}

	// a full quiet period after the last denial earns one token back
	*now = now.Add(2 * time.Second)
	assert.True(l.Admit("alice"))
}

func TestFractionalProgressPreserved(t *testing.T) {
	assert := assert.New(t)
	l, now := testLimiter(Config{MaxTokens: 2, RefillPerSecond: 0.5, MaxInactive: time.Hour, SweepInterval: time.Minute})

	assert.True(l.Admit("alice"))
	assert.True(l.Admit("alice"))

	// 3s elapsed = one whole 2s period plus 1s of progress; lastRefill must
	// advance by exactly one period so the next token lands 1s later
	*now = now.Add(3 * time.Second)
	assert.True(l.Admit("alice"))
	assert.False(l.Admit("alice")) // denial here resets the clock

	*now = now.Add(2 * time.Second)
	assert.True(l.Admit("alice"))
}

func TestSweepEvictsInactive(t *testing.T) {
	assert := assert.New(t)
	l, now := testLimiter(Config{MaxTokens: 5, RefillPerSecond: 1, MaxInactive: 30 * time.Minute, SweepInterval: time.Minute})

	l.Admit("alice")
	l.Admit("bob")
	assert.Equal(2, l.Len())

	*now = now.Add(10 * time.Minute)
	l.Admit("bob")

	*now = now.Add(25 * time.Minute)
	evicted := l.Sweep()
	assert.Equal(1, evicted)
	assert.Equal(1, l.Len())
}
