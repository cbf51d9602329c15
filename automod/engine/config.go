package engine

import "time"

// Config is the static, process-wide tuning surface of the pipeline. All
// thresholds and durations are fixed at construction; there is no runtime
// reconfiguration beyond the blocklist registry.
type Config struct {
	// aggregate flagging threshold, shared with the escalation calculator
	FlagThreshold float64
	// per-call deadline for each external classification request
	ProviderTimeout time.Duration
	// penalty applied on a rate limit violation
	RateLimitTimeout time.Duration
	// penalty applied on a structural spam hit
	SpamTimeout time.Duration
	// penalty applied alongside a nickname rewrite
	NicknameTimeout time.Duration
	// delay before moderation notices are removed again
	ReplyAutoDelete time.Duration
	// score above which a self-harm intent signal switches the response to
	// a supportive notice instead of a penalty
	SelfHarmThreshold float64
	// forum starter messages younger than this get the whole thread removed
	ForumStarterWindow time.Duration
	// actor IDs which bypass the pipeline unconditionally (the engine's own
	// identity, known-noisy integrations)
	DefaultAllowedActors []string
}

func DefaultConfig() Config {
	return Config{
		FlagThreshold:      0.7,
		ProviderTimeout:    8 * time.Second,
		RateLimitTimeout:   10 * time.Second,
		SpamTimeout:        15 * time.Second,
		NicknameTimeout:    5 * time.Second,
		ReplyAutoDelete:    5 * time.Second,
		SelfHarmThreshold:  0.88,
		ForumStarterWindow: 5 * time.Second,
	}
}
