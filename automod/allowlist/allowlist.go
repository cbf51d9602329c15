// Automod component for guild allow-lists.
//
// Allow-listed users, channels, and roles bypass the moderation pipeline.
// Entries live in a persistent store and are read through a per-guild TTL
// cache; a store fault fails open (nothing allow-listed) rather than
// blocking enforcement.
package allowlist

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	TypeUser    = "user"
	TypeChannel = "channel"
	TypeRole    = "role"
)

type Entry struct {
	Type      string
	Snowflake string
}

type Store interface {
	ListEntries(ctx context.Context, guildID string) ([]Entry, error)
}

// Cache is a read-through TTL cache over a Store, one entry set per guild.
type Cache struct {
	store  Store
	data   *expirable.LRU[string, []Entry]
	logger *slog.Logger
}

func NewCache(store Store, capacity int, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		data:   expirable.NewLRU[string, []Entry](capacity, nil, ttl),
		logger: logger.With("system", "allowlist"),
	}
}

func (c *Cache) entries(ctx context.Context, guildID string) []Entry {
	if cached, ok := c.data.Get(guildID); ok {
		return cached
	}
	entries, err := c.store.ListEntries(ctx, guildID)
	if err != nil {
		// fail open: treat as no allow-list, and don't poison the cache
		c.logger.Warn("allow-list fetch failed", "guild", guildID, "err", err)
		return nil
	}
	c.data.Add(guildID, entries)
	return entries
}

// IsAllowed reports whether the actor, the channel, or any of the actor's
// roles is allow-listed for the guild.
func (c *Cache) IsAllowed(ctx context.Context, guildID, actorID, channelID string, roleIDs []string) bool {
	for _, e := range c.entries(ctx, guildID) {
		switch e.Type {
		case TypeUser:
			if e.Snowflake == actorID {
				return true
			}
		case TypeChannel:
			if e.Snowflake == channelID {
				return true
			}
		case TypeRole:
			for _, role := range roleIDs {
				if e.Snowflake == role {
					return true
				}
			}
		}
	}
	return false
}

// Invalidate drops the cached entry set for a guild, forcing a re-read on
// the next check. Called after administrative mutations.
func (c *Cache) Invalidate(guildID string) {
	c.data.Remove(guildID)
}
