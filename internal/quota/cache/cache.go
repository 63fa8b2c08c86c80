// Package cache holds the Redis read cache for letter usage summaries.
//
// The cache only serves the read endpoint. Availability checks always go to
// the database inside a locked transaction; a stale summary can never admit
// a placement.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"workpermit/internal/quota/models"
	id "workpermit/pkg/domain"
)

const summaryTTL = 5 * time.Minute

// SummaryCache caches letter usage summaries. A nil client disables caching
// and every lookup misses.
type SummaryCache struct {
	client *redis.Client
}

// NewSummaryCache constructs the cache. Pass a nil client to run without
// Redis.
func NewSummaryCache(client *redis.Client) *SummaryCache {
	return &SummaryCache{client: client}
}

func summaryKey(letterID id.LetterID) string {
	return "workpermit:letter-summary:" + letterID.String()
}

// Get returns the cached summary, or nil on a miss.
func (c *SummaryCache) Get(ctx context.Context, letterID id.LetterID) (*models.UsageSummary, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, summaryKey(letterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached summary: %w", err)
	}
	var summary models.UsageSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, nil
}

// Set stores the summary with a short TTL.
func (c *SummaryCache) Set(ctx context.Context, summary *models.UsageSummary) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(summary.LetterID), raw, summaryTTL).Err(); err != nil {
		return fmt.Errorf("cache summary: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary after a usage recompute.
func (c *SummaryCache) Invalidate(ctx context.Context, letterID id.LetterID) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, summaryKey(letterID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached summary: %w", err)
	}
	return nil
}
