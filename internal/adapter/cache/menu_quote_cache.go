package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

// MenuQuoteCache keeps recent menu quotes so a burst of orders for the same
// merchant does not hammer the menu service. Quotes are price snapshots, so a
// short TTL is correct rather than a workaround.
type MenuQuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMenuQuoteCache(rdb *redis.Client, ttl time.Duration) *MenuQuoteCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MenuQuoteCache{rdb: rdb, ttl: ttl}
}

func quoteKey(merchantID, itemID int64) string {
	return fmt.Sprintf("menu:quote:%d:%d", merchantID, itemID)
}

// Get returns the cached quotes found and the ids that missed.
func (c *MenuQuoteCache) Get(ctx context.Context, merchantID int64, itemIDs []int64) (map[int64]usecase.MenuItemQuote, []int64, error) {
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = quoteKey(merchantID, id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, itemIDs, err
	}

	hits := make(map[int64]usecase.MenuItemQuote, len(itemIDs))
	var misses []int64
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, itemIDs[i])
			continue
		}
		var q usecase.MenuItemQuote
		if err := json.Unmarshal([]byte(s), &q); err != nil {
			misses = append(misses, itemIDs[i])
			continue
		}
		hits[itemIDs[i]] = q
	}
	return hits, misses, nil
}

func (c *MenuQuoteCache) Set(ctx context.Context, merchantID int64, quotes map[int64]usecase.MenuItemQuote) error {
	pipe := c.rdb.Pipeline()
	for id, q := range quotes {
		body, err := json.Marshal(q)
		if err != nil {
			return err
		}
		pipe.Set(ctx, quoteKey(merchantID, id), body, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
