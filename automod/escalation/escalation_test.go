package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testCalculator() (*Calculator, *time.Time) {
	c := NewCalculator(DefaultConfig(), nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })
	return c, &now
}

func TestFirstOffenseAtThreshold(t *testing.T) {
	assert := assert.New(t)
	c, _ := testCalculator()

	// zero severity, no history: exactly the base timeout
	p := c.Penalty("alice", map[string]float64{"hate": 0.7})
	assert.Equal(30*time.Second, p)
}

func TestSeverityMultiplier(t *testing.T) {
	assert := assert.New(t)
	c, _ := testCalculator()

	// perfect score: severity 1, base x5
	p := c.Penalty("alice", map[string]float64{"hate": 1.0})
	assert.Equal(150*time.Second, p)

	// highest category drives severity
	p = c.Penalty("alice", map[string]float64{"hate": 0.7, "violence": 1.0})
	assert.Equal(150*time.Second, p)
}

func TestFloorAtBase(t *testing.T) {
	assert := assert.New(t)
	c, _ := testCalculator()

	// scores below threshold can't dip under the base timeout
	p := c.Penalty("alice", map[string]float64{"hate": 0.2})
	assert.Equal(30*time.Second, p)

	p = c.Penalty("alice", nil)
	assert.Equal(30*time.Second, p)
}

func TestMonotonicStreak(t *testing.T) {
	assert := assert.New(t)
	c, now := testCalculator()
	scores := map[string]float64{"hate": 0.85}

	var prev time.Duration
	for i := 0; i < 6; i++ {
		p := c.Penalty("alice", scores)
		assert.GreaterOrEqual(p, prev, "offense %d must not shrink the penalty", i)
		assert.Greater(p, prev, "offense %d at equal severity must strictly escalate", i)
		c.Record("alice", scores, p)
		prev = p
		*now = now.Add(time.Minute)
	}
}

func TestRepeatOffenseExceedsRecomputedFirst(t *testing.T) {
	assert := assert.New(t)
	c, now := testCalculator()
	scores := map[string]float64{"hate": 0.8}

	first := c.Penalty("alice", scores)
	c.Record("alice", scores, first)

	*now = now.Add(5 * time.Minute)
	second := c.Penalty("alice", scores)
	assert.Greater(second, first)
}

func TestWindowExpiryResetsEscalation(t *testing.T) {
	assert := assert.New(t)
	c, now := testCalculator()
	scores := map[string]float64{"hate": 0.8}

	first := c.Penalty("alice", scores)
	c.Record("alice", scores, first)

	// outside the calculation window the incident no longer escalates
	*now = now.Add(31 * time.Minute)
	again := c.Penalty("alice", scores)
	assert.Equal(first, again)
}

func TestWorseningBonus(t *testing.T) {
	assert := assert.New(t)
	c, now := testCalculator()

	// two prior incidents averaging 0.8 (> threshold+0.05)
	c.Record("alice", map[string]float64{"hate": 0.8}, 40*time.Second)
	*now = now.Add(time.Minute)
	c.Record("alice", map[string]float64{"hate": 0.8}, 80*time.Second)
	*now = now.Add(time.Minute)

	rising := c.Penalty("alice", map[string]float64{"hate": 0.9})
	steady := c.Penalty("bob", map[string]float64{"hate": 0.9})
	// same inputs minus history: bob only gets the severity multiplier
	assert.Greater(rising, steady)
}

func TestClampToMax(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()
	cfg.MaxTimeout = 5 * time.Minute
	c := NewCalculator(cfg, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	scores := map[string]float64{"hate": 1.0}
	for i := 0; i < 10; i++ {
		p := c.Penalty("alice", scores)
		assert.LessOrEqual(p, 5*time.Minute)
		c.Record("alice", scores, p)
		now = now.Add(time.Minute)
	}
	assert.Equal(5*time.Minute, c.Penalty("alice", scores))
}

func TestRetentionPruneAndSweep(t *testing.T) {
	assert := assert.New(t)
	c, now := testCalculator()

	c.Record("alice", map[string]float64{"hate": 0.8}, 30*time.Second)
	assert.Equal(1, c.HistoryLen("alice"))

	*now = now.Add(25 * time.Hour)
	c.Record("bob", map[string]float64{"hate": 0.8}, 30*time.Second)

	assert.Equal(1, c.Sweep())
	assert.Equal(0, c.HistoryLen("alice"))
	assert.Equal(1, c.HistoryLen("bob"))
}
