package tagger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ppiankov/kgex/internal/cache"
)

// CachedTagger memoizes another tagger's output by (namespace, text)
type CachedTagger struct {
	next      Tagger
	cache     cache.Cache
	namespace string
	ttl       time.Duration
}

// NewCachedTagger wraps next. namespace should identify the model so that switching
// backends never serves stale labels.
func NewCachedTagger(next Tagger, c cache.Cache, namespace string, ttl time.Duration) *CachedTagger {
	return &CachedTagger{next: next, cache: c, namespace: namespace, ttl: ttl}
}

// Tag implements Tagger
func (c *CachedTagger) Tag(ctx context.Context, text string) ([]Token, error) {
	key := cache.Key("tag", c.namespace, text)

	if data, ok := c.cache.Get(key); ok {
		var tokens []Token
		if err := json.Unmarshal(data, &tokens); err == nil {
			return tokens, nil
		}
		_ = c.cache.Delete(key)
	}

	tokens, err := c.next.Tag(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tokens); err == nil {
		_ = c.cache.Set(key, data, c.ttl)
	}
	return tokens, nil
}
