// Automod component for escalating penalties.
//
// Converts a flagged verdict plus the actor's recent incident history into
// a concrete timeout duration. Penalties grow with score severity and with
// repeat offenses inside a sliding window, and never decrease across a
// rapid reoffense streak.
package escalation

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type Config struct {
	// penalty for a first offense at exactly the flagging threshold
	BaseTimeout time.Duration
	// hard ceiling imposed by the chat platform
	MaxTimeout time.Duration
	// aggregate flagging threshold; scores at or below it carry no severity
	FlagThreshold float64
	// incidents inside this window drive escalation
	CalculationWindow time.Duration
	// incidents older than this are pruned entirely
	HistoryRetention time.Duration
	// how often the janitor sweeps empty or fully-expired histories
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseTimeout:       30 * time.Second,
		MaxTimeout:        28 * 24 * time.Hour,
		FlagThreshold:     0.7,
		CalculationWindow: 30 * time.Minute,
		HistoryRetention:  24 * time.Hour,
		SweepInterval:     10 * time.Minute,
	}
}

// Incident is one recorded enforcement event.
type Incident struct {
	At      time.Time
	Scores  map[string]float64
	Applied time.Duration
}

type history struct {
	mu        sync.Mutex
	incidents []Incident
}

type Calculator struct {
	cfg       Config
	histories *xsync.MapOf[string, *history]
	logger    *slog.Logger

	now func() time.Time
}

func NewCalculator(cfg Config, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		cfg:       cfg,
		histories: xsync.NewMapOf[string, *history](),
		logger:    logger.With("system", "escalation"),
		now:       time.Now,
	}
}

func maxScore(scores map[string]float64) float64 {
	out := 0.0
	for _, s := range scores {
		out = math.Max(out, s)
	}
	return out
}

// Penalty computes the timeout for a fresh flag against this actor. Pure
// with respect to history: recording the incident is a separate call, so a
// caller can decide not to act without polluting the history.
func (c *Calculator) Penalty(actorID string, scores map[string]float64) time.Duration {
	now := c.now()

	var recent []Incident
	if h, ok := c.histories.Load(actorID); ok {
		h.mu.Lock()
		for _, inc := range h.incidents {
			if now.Sub(inc.At) < c.cfg.CalculationWindow {
				recent = append(recent, inc)
			}
		}
		h.mu.Unlock()
	}

	timeout := float64(c.cfg.BaseTimeout)

	// severity 0 at the threshold, 1 at a perfect score
	current := maxScore(scores)
	severity := math.Max(0, (current-c.cfg.FlagThreshold)/(1-c.cfg.FlagThreshold))
	severityMultiplier := 1 + severity*4
	timeout *= severityMultiplier

	// exponential repeat-offender escalation
	timeout *= math.Pow(1.75, float64(len(recent)))

	if len(recent) > 0 {
		// floor against the most recent incident so a rapid streak is
		// strictly non-decreasing
		last := recent[len(recent)-1]
		if last.Applied > c.cfg.BaseTimeout {
			floor := float64(last.Applied) + float64(c.cfg.BaseTimeout)*severityMultiplier*0.5
			timeout = math.Max(timeout, floor)
		}

		if len(recent) > 1 {
			sum := 0.0
			for _, inc := range recent {
				sum += maxScore(inc.Scores)
			}
			avg := sum / float64(len(recent))
			// getting worse: scores trending above an already-bad average
			if current > avg && avg > c.cfg.FlagThreshold+0.05 {
				timeout *= 1.3
			}
		}
	}

	clamped := math.Min(math.Max(timeout, float64(c.cfg.BaseTimeout)), float64(c.cfg.MaxTimeout))
	return time.Duration(clamped)
}

// Record appends an incident to the actor's history and prunes anything
// past the retention horizon.
func (c *Calculator) Record(actorID string, scores map[string]float64, applied time.Duration) {
	now := c.now()
	h, _ := c.histories.LoadOrCompute(actorID, func() *history {
		return &history{}
	})

	copied := make(map[string]float64, len(scores))
	for k, v := range scores {
		copied[k] = v
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.incidents = append(h.incidents, Incident{At: now, Scores: copied, Applied: applied})
	h.incidents = pruneBefore(h.incidents, now.Add(-c.cfg.HistoryRetention))
}

func pruneBefore(incidents []Incident, horizon time.Time) []Incident {
	kept := incidents[:0]
	for _, inc := range incidents {
		if inc.At.After(horizon) {
			kept = append(kept, inc)
		}
	}
	return kept
}

// Sweep prunes expired incidents everywhere and evicts actors whose history
// is empty. Returns the number of actors evicted.
func (c *Calculator) Sweep() int {
	now := c.now()
	evicted := 0
	c.histories.Range(func(actorID string, h *history) bool {
		h.mu.Lock()
		h.incidents = pruneBefore(h.incidents, now.Add(-c.cfg.HistoryRetention))
		empty := len(h.incidents) == 0
		h.mu.Unlock()
		if empty {
			c.histories.Delete(actorID)
			evicted++
		}
		return true
	})
	return evicted
}

func (c *Calculator) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("evicted expired flag histories", "count", n)
			}
		}
	}
}

// HistoryLen reports how many incidents are currently retained for an
// actor. Test helper.
func (c *Calculator) HistoryLen(actorID string) int {
	h, ok := c.histories.Load(actorID)
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.incidents)
}

// SetClock replaces the calculator's time source. Test helper.
func (c *Calculator) SetClock(now func() time.Time) {
	c.now = now
}
