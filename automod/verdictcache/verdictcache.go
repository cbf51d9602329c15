// Automod component for memoizing classification verdicts with a fixed TTL.
//
// Identical content re-submitted within the TTL must not re-invoke the
// external providers, both for cost and so identical inputs get identical
// verdicts. Includes an interface and implementations using redis and
// in-process memory.
package verdictcache

import (
	"context"
	"sort"
	"strings"

	"github.com/watchtower-eng/watchtower/automod/classify"
	"github.com/watchtower-eng/watchtower/automod/helpers"
)

type CacheStore interface {
	// Get returns the cached verdict, or nil without error on a miss.
	Get(ctx context.Context, key string) (*classify.Verdict, error)
	Set(ctx context.Context, key string, v classify.Verdict) error
	Purge(ctx context.Context, key string) error
}

// Key fingerprints one piece of content: the extracted text plus the image
// URL set, order-independent.
func Key(text string, imageURLs []string) string {
	urls := make([]string, len(imageURLs))
	copy(urls, imageURLs)
	sort.Strings(urls)
	return helpers.HashOfString(text + "|" + strings.Join(urls, ","))
}
