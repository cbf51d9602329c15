package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/watchtower-eng/watchtower/automod/allowlist"
	"github.com/watchtower-eng/watchtower/automod/blocklist"
	"github.com/watchtower-eng/watchtower/automod/classify"
	"github.com/watchtower-eng/watchtower/automod/escalation"
	"github.com/watchtower-eng/watchtower/automod/ratelimit"
	"github.com/watchtower-eng/watchtower/automod/repeat"
	"github.com/watchtower-eng/watchtower/automod/verdictcache"
)

// StubModerationProvider returns a fixed response and counts invocations.
type StubModerationProvider struct {
	mu       sync.Mutex
	Response classify.ModerationResponse
	Calls    int
}

func (p *StubModerationProvider) Moderate(ctx context.Context, inputs []classify.Input) classify.ModerationResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	return p.Response
}

func (p *StubModerationProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// StubAttributeProvider returns a fixed result and counts invocations.
type StubAttributeProvider struct {
	mu     sync.Mutex
	Result classify.AttributeResult
	Calls  int
}

func (p *StubAttributeProvider) Analyze(ctx context.Context, text string) classify.AttributeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	return p.Result
}

func (p *StubAttributeProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// CapturedAction is one enforcement call recorded by CapturingActuator.
type CapturedAction struct {
	Kind     string
	GuildID  string
	TargetID string
	Duration time.Duration
	Reason   string
	Text     string
}

// CapturingActuator records every enforcement call for assertion.
type CapturingActuator struct {
	mu      sync.Mutex
	Actions []CapturedAction
}

var _ Actuator = (*CapturingActuator)(nil)

func (a *CapturingActuator) record(act CapturedAction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Actions = append(a.Actions, act)
}

func (a *CapturingActuator) DeleteMessage(ctx context.Context, ref MessageRef) error {
	a.record(CapturedAction{Kind: "delete", GuildID: ref.GuildID, TargetID: ref.MessageID})
	return nil
}

func (a *CapturingActuator) DeleteThread(ctx context.Context, guildID, threadID, reason string) error {
	a.record(CapturedAction{Kind: "delete-thread", GuildID: guildID, TargetID: threadID, Reason: reason})
	return nil
}

func (a *CapturingActuator) TimeoutActor(ctx context.Context, guildID, actorID string, duration time.Duration, reason string) error {
	a.record(CapturedAction{Kind: "timeout", GuildID: guildID, TargetID: actorID, Duration: duration, Reason: reason})
	return nil
}

func (a *CapturingActuator) Notify(ctx context.Context, guildID, channelID, text string, autoDeleteAfter time.Duration) error {
	a.record(CapturedAction{Kind: "notify", GuildID: guildID, TargetID: channelID, Text: text, Duration: autoDeleteAfter})
	return nil
}

func (a *CapturingActuator) SetNickname(ctx context.Context, guildID, actorID, nickname, reason string) error {
	a.record(CapturedAction{Kind: "set-nickname", GuildID: guildID, TargetID: actorID, Text: nickname, Reason: reason})
	return nil
}

// Captured returns a snapshot of recorded actions.
func (a *CapturingActuator) Captured() []CapturedAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CapturedAction, len(a.Actions))
	copy(out, a.Actions)
	return out
}

// ByKind filters recorded actions by kind.
func (a *CapturingActuator) ByKind(kind string) []CapturedAction {
	var out []CapturedAction
	for _, act := range a.Captured() {
		if act.Kind == kind {
			out = append(out, act)
		}
	}
	return out
}

type staticAllowStore struct {
	entries map[string][]allowlist.Entry
}

func (s staticAllowStore) ListEntries(ctx context.Context, guildID string) ([]allowlist.Entry, error) {
	return s.entries[guildID], nil
}

// TestFixture bundles an engine built entirely on in-memory state with stub
// providers and a capturing actuator.
type TestFixture struct {
	Engine     *Engine
	Moderation *StubModerationProvider
	Attributes *StubAttributeProvider
	Actuator   *CapturingActuator
}

// NewTestFixture assembles an engine with default config over in-memory
// components. Allow-list entries are keyed by guild ID.
func NewTestFixture(allowEntries map[string][]allowlist.Entry) *TestFixture {
	logger := slog.Default()
	mod := &StubModerationProvider{}
	attrs := &StubAttributeProvider{}
	act := &CapturingActuator{}

	eng := &Engine{
		Logger:     logger,
		Config:     DefaultConfig(),
		AllowList:  allowlist.NewCache(staticAllowStore{entries: allowEntries}, 100, 10*time.Minute, logger),
		Blocklist:  blocklist.DefaultRegistry(),
		Repeats:    repeat.NewTracker(repeat.DefaultConfig(), logger),
		Limiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig(), logger),
		Cache:      verdictcache.NewMemCacheStore(1000, 10*time.Minute),
		Moderation: mod,
		Attributes: attrs,
		Escalation: escalation.NewCalculator(escalation.DefaultConfig(), logger),
		Actuator:   act,
	}
	return &TestFixture{Engine: eng, Moderation: mod, Attributes: attrs, Actuator: act}
}
