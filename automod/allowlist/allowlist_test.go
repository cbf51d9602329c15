package allowlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	entries map[string][]Entry
	err     error
	calls   int
}

func (s *fakeStore) ListEntries(ctx context.Context, guildID string) ([]Entry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[guildID], nil
}

func TestIsAllowedMatching(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := &fakeStore{entries: map[string][]Entry{
		"guild1": {
			{Type: TypeUser, Snowflake: "user1"},
			{Type: TypeChannel, Snowflake: "chan1"},
			{Type: TypeRole, Snowflake: "role1"},
		},
	}}
	c := NewCache(store, 64, time.Minute, nil)

	assert.True(c.IsAllowed(ctx, "guild1", "user1", "other", nil))
	assert.True(c.IsAllowed(ctx, "guild1", "other", "chan1", nil))
	assert.True(c.IsAllowed(ctx, "guild1", "other", "other", []string{"role9", "role1"}))
	assert.False(c.IsAllowed(ctx, "guild1", "other", "other", []string{"role9"}))

	// an allow-listed snowflake in a different guild carries nothing over
	assert.False(c.IsAllowed(ctx, "guild2", "user1", "chan1", []string{"role1"}))
}

func TestCacheReadThrough(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := &fakeStore{entries: map[string][]Entry{
		"guild1": {{Type: TypeUser, Snowflake: "user1"}},
	}}
	c := NewCache(store, 64, 30*time.Millisecond, nil)

	c.IsAllowed(ctx, "guild1", "user1", "", nil)
	c.IsAllowed(ctx, "guild1", "user1", "", nil)
	c.IsAllowed(ctx, "guild1", "user1", "", nil)
	assert.Equal(1, store.calls)

	time.Sleep(80 * time.Millisecond)
	c.IsAllowed(ctx, "guild1", "user1", "", nil)
	assert.Equal(2, store.calls)
}

func TestStoreFaultFailsOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := &fakeStore{err: errors.New("store down")}
	c := NewCache(store, 64, time.Minute, nil)

	assert.False(c.IsAllowed(ctx, "guild1", "user1", "", nil))

	// failures are not cached; recovery is picked up on the next check
	store.err = nil
	store.entries = map[string][]Entry{"guild1": {{Type: TypeUser, Snowflake: "user1"}}}
	assert.True(c.IsAllowed(ctx, "guild1", "user1", "", nil))
}

func TestInvalidate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := &fakeStore{entries: map[string][]Entry{}}
	c := NewCache(store, 64, time.Hour, nil)

	assert.False(c.IsAllowed(ctx, "guild1", "user1", "", nil))

	store.entries["guild1"] = []Entry{{Type: TypeUser, Snowflake: "user1"}}
	// still cached as empty
	assert.False(c.IsAllowed(ctx, "guild1", "user1", "", nil))

	c.Invalidate("guild1")
	assert.True(c.IsAllowed(ctx, "guild1", "user1", "", nil))
}
