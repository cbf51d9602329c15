package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type Config struct {
	// bucket capacity, in tokens
	MaxTokens float64
	// steady-state refill rate; one token is added per 1/RefillPerSecond seconds
	RefillPerSecond float64
	// buckets untouched for longer than this are evicted by the janitor
	MaxInactive time.Duration
	// how often the janitor sweeps
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:       5,
		RefillPerSecond: 0.5,
		MaxInactive:     30 * time.Minute,
		SweepInterval:   5 * time.Minute,
	}
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Limiter hands out admission decisions per actor. Safe for concurrent use;
// distinct actors never contend on the same lock.
type Limiter struct {
	cfg     Config
	period  time.Duration
	buckets *xsync.MapOf[string, *bucket]
	logger  *slog.Logger

	// swappable for tests
	now func() time.Time
}

func NewLimiter(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:     cfg,
		period:  time.Duration(float64(time.Second) / cfg.RefillPerSecond),
		buckets: xsync.NewMapOf[string, *bucket](),
		logger:  logger.With("system", "ratelimit"),
		now:     time.Now,
	}
}

// Admit consumes one token from the actor's bucket if available.
//
// Refill advances lastRefill by whole periods only, so fractional progress
// toward the next token is never lost. A denial resets lastRefill to now,
// which prevents an actor from accumulating a burst while being denied.
func (l *Limiter) Admit(actorID string) bool {
	now := l.now()
	b, _ := l.buckets.LoadOrCompute(actorID, func() *bucket {
		return &bucket{tokens: l.cfg.MaxTokens, lastRefill: now}
	})

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tokens < l.cfg.MaxTokens {
		elapsed := now.Sub(b.lastRefill)
		if elapsed >= l.period {
			periods := int64(elapsed / l.period)
			b.tokens = min(l.cfg.MaxTokens, b.tokens+float64(periods))
			b.lastRefill = b.lastRefill.Add(time.Duration(periods) * l.period)
		}
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	b.lastRefill = now
	return false
}

// Sweep evicts buckets which have not refilled or been denied within
// MaxInactive. Returns the number of buckets evicted.
func (l *Limiter) Sweep() int {
	now := l.now()
	evicted := 0
	l.buckets.Range(func(actorID string, b *bucket) bool {
		b.mu.Lock()
		stale := now.Sub(b.lastRefill) > l.cfg.MaxInactive
		b.mu.Unlock()
		if stale {
			l.buckets.Delete(actorID)
			evicted++
		}
		return true
	})
	return evicted
}

// RunJanitor sweeps on a timer until ctx is cancelled. Intended to run in
// its own goroutine, decoupled from the admission path.
func (l *Limiter) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("evicted inactive rate buckets", "count", n)
			}
		}
	}
}

func (l *Limiter) Len() int {
	return l.buckets.Size()
}

// SetClock replaces the limiter's time source. Test helper.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}
