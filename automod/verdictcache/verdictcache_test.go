package verdictcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchtower-eng/watchtower/automod/classify"
)

func TestKeyOrderIndependent(t *testing.T) {
	assert := assert.New(t)

	a := Key("hello", []string{"https://x/1.png", "https://x/2.png"})
	b := Key("hello", []string{"https://x/2.png", "https://x/1.png"})
	assert.Equal(a, b)

	assert.NotEqual(a, Key("hello", []string{"https://x/1.png"}))
	assert.NotEqual(a, Key("bye", []string{"https://x/1.png", "https://x/2.png"}))
}

func TestKeyTextVerbatim(t *testing.T) {
	assert := assert.New(t)

	// the fingerprint covers the text exactly as extracted: casing and
	// surrounding whitespace produce distinct keys
	assert.Equal(Key("hello", nil), Key("hello", nil))
	assert.NotEqual(Key("hello", nil), Key("Hello", nil))
	assert.NotEqual(Key("hello", nil), Key(" hello ", nil))
}

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s := NewMemCacheStore(100, time.Hour)

	v, err := s.Get(ctx, "missing")
	require.NoError(err)
	assert.Nil(v)

	in := classify.Verdict{Flagged: true, Scores: map[string]float64{"hate": 0.9}}
	require.NoError(s.Set(ctx, "k", in))

	v, err = s.Get(ctx, "k")
	require.NoError(err)
	require.NotNil(v)
	assert.True(v.Flagged)
	assert.InDelta(0.9, v.Scores["hate"], 1e-9)

	require.NoError(s.Purge(ctx, "k"))
	v, err = s.Get(ctx, "k")
	require.NoError(err)
	assert.Nil(v)
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s := NewMemCacheStore(100, 20*time.Millisecond)

	require.NoError(s.Set(ctx, "k", classify.Verdict{Flagged: false, Scores: map[string]float64{}}))
	v, err := s.Get(ctx, "k")
	require.NoError(err)
	assert.NotNil(v)

	time.Sleep(60 * time.Millisecond)
	v, err = s.Get(ctx, "k")
	require.NoError(err)
	assert.Nil(v)
}
