// Package menu calls the menu service for live price quotes, read-through a
// short-TTL Redis cache.
package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/adapter/cache"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type Client struct {
	http    *http.Client
	baseURL string
	cache   *cache.MenuQuoteCache
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, quotes *cache.MenuQuoteCache, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   quotes,
		log:     log,
	}
}

// QuoteItems returns quotes for all requested ids, from cache when fresh. A
// cache outage degrades to a direct call rather than failing the order.
func (c *Client) QuoteItems(ctx context.Context, merchantID int64, itemIDs []int64) (map[int64]usecase.MenuItemQuote, error) {
	out := make(map[int64]usecase.MenuItemQuote, len(itemIDs))
	missing := itemIDs

	if c.cache != nil {
		hits, misses, err := c.cache.Get(ctx, merchantID, itemIDs)
		if err != nil {
			c.log.Warn("quote cache read failed", "err", err)
		} else {
			for id, q := range hits {
				out[id] = q
			}
			missing = misses
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.fetch(ctx, merchantID, missing)
	if err != nil {
		return nil, err
	}
	for id, q := range fetched {
		out[id] = q
	}
	if c.cache != nil && len(fetched) > 0 {
		if err := c.cache.Set(ctx, merchantID, fetched); err != nil {
			c.log.Warn("quote cache write failed", "err", err)
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, merchantID int64, itemIDs []int64) (map[int64]usecase.MenuItemQuote, error) {
	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	u := fmt.Sprintf("%s/internal/merchants/%d/quotes?item_ids=%s",
		c.baseURL, merchantID, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("menu service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("menu service returned %d", resp.StatusCode)
	}
	var body struct {
		Items []usecase.MenuItemQuote `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("menu service: decode: %w", err)
	}
	out := make(map[int64]usecase.MenuItemQuote, len(body.Items))
	for _, q := range body.Items {
		out[q.MenuItemID] = q
	}
	return out, nil
}

var _ usecase.MenuClient = (*Client)(nil)
