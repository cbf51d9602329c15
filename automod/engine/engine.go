// Package engine sequences the moderation pipeline: the cheap local checks
// first (allow-list, structural spam, repeat content, rate limit), then the
// cached-or-fresh external classification, then escalating enforcement.
// Each stage can terminate processing for the event; the first matching
// stage wins.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/watchtower-eng/watchtower/automod/allowlist"
	"github.com/watchtower-eng/watchtower/automod/blocklist"
	"github.com/watchtower-eng/watchtower/automod/classify"
	"github.com/watchtower-eng/watchtower/automod/escalation"
	"github.com/watchtower-eng/watchtower/automod/ratelimit"
	"github.com/watchtower-eng/watchtower/automod/repeat"
	"github.com/watchtower-eng/watchtower/automod/verdictcache"
)

// ModerationProvider is the multi-input classification capability.
type ModerationProvider interface {
	Moderate(ctx context.Context, inputs []classify.Input) classify.ModerationResponse
}

// AttributeProvider is the single-text attribute scoring capability.
type AttributeProvider interface {
	Analyze(ctx context.Context, text string) classify.AttributeResult
}

// runtime for executing the decision pipeline, managing per-actor state,
// and invoking enforcement.
type Engine struct {
	Logger     *slog.Logger
	Config     Config
	AllowList  *allowlist.Cache
	Blocklist  *blocklist.Registry
	Repeats    *repeat.Tracker
	Limiter    *ratelimit.Limiter
	Cache      verdictcache.CacheStore
	Moderation ModerationProvider
	Attributes AttributeProvider
	Escalation *escalation.Calculator
	Actuator   Actuator

	defaultAllowed map[string]bool
}

func (eng *Engine) defaultAllowedSet() map[string]bool {
	if eng.defaultAllowed == nil {
		eng.defaultAllowed = make(map[string]bool, len(eng.Config.DefaultAllowedActors))
		for _, id := range eng.Config.DefaultAllowedActors {
			eng.defaultAllowed[id] = true
		}
	}
	return eng.defaultAllowed
}

// ProcessMessage runs one content event through the pipeline. Never returns
// an error to the caller: provider and store faults degrade per stage, and
// an unexpected internal fault aborts this event only.
func (eng *Engine) ProcessMessage(ctx context.Context, evt *ContentEvent) {
	if evt == nil {
		return
	}
	logger := eng.Logger.With("actor", evt.ActorID, "guild", evt.Ref.GuildID, "channel", evt.Ref.ChannelID)

	// similar to an HTTP server, we want to recover any panics from stage execution
	defer func() {
		if r := recover(); r != nil {
			eventErrorCount.WithLabelValues("message").Inc()
			logger.Error("moderation event execution exception", "err", r)
		}
	}()

	start := time.Now()
	outcome := "allow"
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
		eventProcessCount.WithLabelValues("message", outcome).Inc()
		logger.Info("event processed", "outcome", outcome, "duration", time.Since(start))
	}()

	if eng.defaultAllowedSet()[evt.ActorID] {
		outcome = "default-allowed"
		return
	}
	if evt.IsBot && !evt.IsWebhook {
		outcome = "bot"
		return
	}
	if evt.ActorIsAdmin {
		outcome = "admin"
		return
	}
	if eng.AllowList != nil && eng.AllowList.IsAllowed(ctx, evt.Ref.GuildID, evt.ActorID, evt.Ref.ChannelID, evt.RoleIDs) {
		outcome = "allow-listed"
		return
	}

	text := evt.ExtractText()

	if eng.Blocklist.IsSpam(text) {
		outcome = "spam"
		eng.handleSpamMessage(ctx, evt, logger)
		return
	}

	if eng.Repeats.IsRepeat(evt.ActorID, evt.Text) {
		outcome = "repeat"
		eng.actuate(ctx, logger, "delete", func() error {
			return eng.Actuator.DeleteMessage(ctx, evt.Ref)
		})
		eng.actuate(ctx, logger, "notify", func() error {
			return eng.Actuator.Notify(ctx, evt.Ref.GuildID, evt.Ref.ChannelID, repeatNotice(evt.ActorID), eng.Config.ReplyAutoDelete)
		})
		return
	}

	if !eng.Limiter.Admit(evt.ActorID) {
		outcome = "rate-limited"
		eng.actuate(ctx, logger, "delete", func() error {
			return eng.Actuator.DeleteMessage(ctx, evt.Ref)
		})
		eng.actuate(ctx, logger, "timeout", func() error {
			return eng.Actuator.TimeoutActor(ctx, evt.Ref.GuildID, evt.ActorID, eng.Config.RateLimitTimeout, "rate limit exceeded")
		})
		eng.actuate(ctx, logger, "notify", func() error {
			return eng.Actuator.Notify(ctx, evt.Ref.GuildID, evt.Ref.ChannelID, rateLimitNotice(evt.ActorID), eng.Config.ReplyAutoDelete)
		})
		return
	}

	imageURLs := evt.ExtractImageURLs()

	// not enough signal to be worth a provider round-trip
	if len(text) <= 2 && len(imageURLs) == 0 {
		outcome = "short"
		return
	}

	key := verdictcache.Key(text, imageURLs)
	if cached, err := eng.Cache.Get(ctx, key); err != nil {
		logger.Warn("verdict cache read failed", "err", err)
	} else if cached != nil {
		classifyCacheHits.WithLabelValues("hit").Inc()
		if cached.Flagged {
			outcome = "flagged-cached"
			eng.processFlagged(ctx, evt, cached.Scores, logger)
		}
		return
	}
	classifyCacheHits.WithLabelValues("miss").Inc()

	// both providers in parallel; a slow or failed one never blocks the other
	var modResp classify.ModerationResponse
	var attrRes classify.AttributeResult
	g := new(errgroup.Group)
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(ctx, eng.Config.ProviderTimeout)
		defer cancel()
		modResp = eng.Moderation.Moderate(callCtx, classify.BuildInputs(text, imageURLs))
		return nil
	})
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(ctx, eng.Config.ProviderTimeout)
		defer cancel()
		attrRes = eng.Attributes.Analyze(callCtx, text)
		return nil
	})
	_ = g.Wait()

	verdict := classify.Aggregate(modResp, attrRes, eng.Config.FlagThreshold)
	if err := eng.Cache.Set(ctx, key, verdict); err != nil {
		logger.Warn("verdict cache write failed", "err", err)
	}

	if !verdict.Flagged {
		return
	}

	if eng.selfHarmIntent(modResp) {
		outcome = "self-harm"
		eng.actuate(ctx, logger, "notify", func() error {
			return eng.Actuator.Notify(ctx, evt.Ref.GuildID, evt.Ref.ChannelID, selfHarmNotice, 0)
		})
		return
	}

	outcome = "flagged"
	eng.processFlagged(ctx, evt, verdict.Scores, logger)
}

// a fresh high-confidence self-harm intent signal switches the response
// from punishment to support
func (eng *Engine) selfHarmIntent(modResp classify.ModerationResponse) bool {
	if modResp.Err || len(modResp.Results) == 0 {
		return false
	}
	return modResp.Results[0].CategoryScores["self-harm/intent"] > eng.Config.SelfHarmThreshold
}

func (eng *Engine) processFlagged(ctx context.Context, evt *ContentEvent, scores map[string]float64, logger *slog.Logger) {
	reasons := FormatViolationReasons(scores)
	if reasons == "" {
		return
	}

	duration := eng.Escalation.Penalty(evt.ActorID, scores)
	eng.Escalation.Record(evt.ActorID, scores, duration)
	logger.Info("content flagged", "reasons", reasons, "timeout", duration)

	eng.actuate(ctx, logger, "delete", func() error {
		return eng.Actuator.DeleteMessage(ctx, evt.Ref)
	})
	eng.actuate(ctx, logger, "timeout", func() error {
		return eng.Actuator.TimeoutActor(ctx, evt.Ref.GuildID, evt.ActorID, duration, "flagged: "+reasons)
	})
	eng.actuate(ctx, logger, "notify", func() error {
		return eng.Actuator.Notify(ctx, evt.Ref.GuildID, evt.Ref.ChannelID, flaggedNotice(evt.ActorID, reasons), eng.Config.ReplyAutoDelete)
	})
}

func (eng *Engine) handleSpamMessage(ctx context.Context, evt *ContentEvent, logger *slog.Logger) {
	// a spam starter message on a fresh forum thread takes the thread with it
	if t := evt.Thread; t != nil && t.IsForumStarter && time.Duration(t.AgeAtMessageMS)*time.Millisecond < eng.Config.ForumStarterWindow {
		eng.actuate(ctx, logger, "delete-thread", func() error {
			return eng.Actuator.DeleteThread(ctx, evt.Ref.GuildID, t.ThreadID, "spam thread starter message")
		})
		eng.actuate(ctx, logger, "timeout", func() error {
			return eng.Actuator.TimeoutActor(ctx, evt.Ref.GuildID, evt.ActorID, eng.Config.SpamTimeout, "spam forum thread")
		})
		return
	}

	eng.actuate(ctx, logger, "delete", func() error {
		return eng.Actuator.DeleteMessage(ctx, evt.Ref)
	})
	eng.actuate(ctx, logger, "timeout", func() error {
		return eng.Actuator.TimeoutActor(ctx, evt.Ref.GuildID, evt.ActorID, eng.Config.SpamTimeout, "spam message detected")
	})
}

// ProcessNickname evaluates a member nickname change and rewrites spam
// nicknames to a neutral placeholder.
func (eng *Engine) ProcessNickname(ctx context.Context, evt *NicknameEvent) {
	if evt == nil || evt.Nickname == "" {
		return
	}
	logger := eng.Logger.With("actor", evt.ActorID, "guild", evt.GuildID)

	defer func() {
		if r := recover(); r != nil {
			eventErrorCount.WithLabelValues("nickname").Inc()
			logger.Error("moderation event execution exception", "err", r)
		}
	}()

	if evt.ActorIsAdmin || eng.defaultAllowedSet()[evt.ActorID] {
		return
	}
	if eng.AllowList != nil && eng.AllowList.IsAllowed(ctx, evt.GuildID, evt.ActorID, "", evt.RoleIDs) {
		return
	}
	if !eng.Blocklist.IsSpam(evt.Nickname) {
		return
	}

	eventProcessCount.WithLabelValues("nickname", "spam").Inc()
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	moderated := "moderated username " + hex.EncodeToString(suffix)

	eng.actuate(ctx, logger, "set-nickname", func() error {
		return eng.Actuator.SetNickname(ctx, evt.GuildID, evt.ActorID, moderated, "spam nickname detected")
	})
	eng.actuate(ctx, logger, "timeout", func() error {
		return eng.Actuator.TimeoutActor(ctx, evt.GuildID, evt.ActorID, eng.Config.NicknameTimeout, "spam nickname")
	})
}

// ProcessThreadTitle evaluates a newly created thread by its title.
func (eng *Engine) ProcessThreadTitle(ctx context.Context, evt *ThreadEvent) {
	if evt == nil {
		return
	}
	logger := eng.Logger.With("actor", evt.OwnerID, "guild", evt.GuildID, "thread", evt.ThreadID)

	defer func() {
		if r := recover(); r != nil {
			eventErrorCount.WithLabelValues("thread").Inc()
			logger.Error("moderation event execution exception", "err", r)
		}
	}()

	if !eng.Blocklist.IsSpam(evt.Title) {
		return
	}

	eventProcessCount.WithLabelValues("thread", "spam").Inc()
	eng.actuate(ctx, logger, "delete-thread", func() error {
		return eng.Actuator.DeleteThread(ctx, evt.GuildID, evt.ThreadID, "spam thread title detected")
	})
	if evt.OwnerID != "" {
		eng.actuate(ctx, logger, "timeout", func() error {
			return eng.Actuator.TimeoutActor(ctx, evt.GuildID, evt.OwnerID, eng.Config.SpamTimeout, "spam thread detected")
		})
	}
}

// actuate performs one fire-and-forget enforcement call. Failures (already
// deleted, missing permission) are counted and logged, never retried, never
// surfaced.
func (eng *Engine) actuate(ctx context.Context, logger *slog.Logger, action string, fn func() error) {
	if err := fn(); err != nil {
		actuatorErrorCount.WithLabelValues(action).Inc()
		logger.Warn("enforcement call failed", "action", action, "err", err)
	}
}
