package engine

import (
	"context"
	"log/slog"
	"time"
)

// Actuator is the enforcement capability boundary: the engine decides, the
// actuator acts on the chat platform. All calls are fire-and-forget from
// the engine's perspective; implementations report failures via the error
// return, the engine logs and moves on. Acting on a vanished target (a
// message deleted before the verdict resolved) must be attempted anyway and
// its failure swallowed.
type Actuator interface {
	DeleteMessage(ctx context.Context, ref MessageRef) error
	DeleteThread(ctx context.Context, guildID, threadID, reason string) error
	TimeoutActor(ctx context.Context, guildID, actorID string, duration time.Duration, reason string) error
	// Notify posts a moderation notice to a channel. A non-zero
	// autoDeleteAfter asks the implementation to remove the notice again
	// after that delay.
	Notify(ctx context.Context, guildID, channelID, text string, autoDeleteAfter time.Duration) error
	SetNickname(ctx context.Context, guildID, actorID, nickname, reason string) error
}

// LoggingActuator logs every enforcement action instead of performing it.
// Used for dry-run deployments and as the default when no platform client
// is wired up.
type LoggingActuator struct {
	Logger *slog.Logger
}

var _ Actuator = (*LoggingActuator)(nil)

func NewLoggingActuator(logger *slog.Logger) *LoggingActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingActuator{Logger: logger.With("system", "actuator", "mode", "dry-run")}
}

func (a *LoggingActuator) DeleteMessage(ctx context.Context, ref MessageRef) error {
	a.Logger.Info("would delete message", "guild", ref.GuildID, "channel", ref.ChannelID, "message", ref.MessageID)
	return nil
}

func (a *LoggingActuator) DeleteThread(ctx context.Context, guildID, threadID, reason string) error {
	a.Logger.Info("would delete thread", "guild", guildID, "thread", threadID, "reason", reason)
	return nil
}

func (a *LoggingActuator) TimeoutActor(ctx context.Context, guildID, actorID string, duration time.Duration, reason string) error {
	a.Logger.Info("would timeout actor", "guild", guildID, "actor", actorID, "duration", duration, "reason", reason)
	return nil
}

func (a *LoggingActuator) Notify(ctx context.Context, guildID, channelID, text string, autoDeleteAfter time.Duration) error {
	a.Logger.Info("would notify channel", "guild", guildID, "channel", channelID, "text", text, "autoDeleteAfter", autoDeleteAfter)
	return nil
}

func (a *LoggingActuator) SetNickname(ctx context.Context, guildID, actorID, nickname, reason string) error {
	a.Logger.Info("would set nickname", "guild", guildID, "actor", actorID, "nickname", nickname, "reason", reason)
	return nil
}
