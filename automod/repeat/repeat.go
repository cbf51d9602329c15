// Automod component for short-term duplicate suppression.
//
// Tracks the last N raw texts per actor and flags a new text as a repeat
// when its normalized form matches any of them. Per-actor state is evicted
// by a periodic janitor sweep once the actor has gone quiet.
package repeat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type Config struct {
	// number of recent texts remembered per actor
	Window int
	// actors untouched for longer than this are evicted by the janitor
	MaxInactive time.Duration
	// how often the janitor sweeps
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window:        3,
		MaxInactive:   time.Hour,
		SweepInterval: 10 * time.Minute,
	}
}

type recent struct {
	mu         sync.Mutex
	texts      []string
	lastActive time.Time
}

type Tracker struct {
	cfg    Config
	actors *xsync.MapOf[string, *recent]
	logger *slog.Logger

	now func() time.Time
}

func NewTracker(cfg Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:    cfg,
		actors: xsync.NewMapOf[string, *recent](),
		logger: logger.With("system", "repeat"),
		now:    time.Now,
	}
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// IsRepeat reports whether the actor has recently sent this text (compared
// after trimming and case-folding). On a miss the raw text is recorded at
// the front of the actor's ring, oldest entry dropped silently. Empty
// normalized text is never a repeat and is never recorded.
func (t *Tracker) IsRepeat(actorID, text string) bool {
	norm := normalize(text)
	if norm == "" {
		return false
	}

	r, _ := t.actors.LoadOrCompute(actorID, func() *recent {
		return &recent{}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = t.now()

	for _, prev := range r.texts {
		if normalize(prev) == norm {
			return true
		}
	}

	r.texts = append([]string{text}, r.texts...)
	if len(r.texts) > t.cfg.Window {
		r.texts = r.texts[:t.cfg.Window]
	}
	return false
}

func (t *Tracker) Sweep() int {
	now := t.now()
	evicted := 0
	t.actors.Range(func(actorID string, r *recent) bool {
		r.mu.Lock()
		stale := now.Sub(r.lastActive) > t.cfg.MaxInactive
		r.mu.Unlock()
		if stale {
			t.actors.Delete(actorID)
			evicted++
		}
		return true
	})
	return evicted
}

func (t *Tracker) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				t.logger.Debug("evicted inactive repeat state", "count", n)
			}
		}
	}
}

func (t *Tracker) Len() int {
	return t.actors.Size()
}

// SetClock replaces the tracker's time source. Test helper.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}
