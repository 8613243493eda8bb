package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
)

const (
	BaseURL     = "https://statsapi.mlb.com"
	SportMLB    = 1
	DefaultTTL  = 24 * time.Hour
	cachePrefix = "feed:live:"
)

// Cache is the subset of the Redis cache the client needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Client handles StatsAPI requests
type Client struct {
	http     *resty.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *log.Logger
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Retries  int
	Cache    Cache
	CacheTTL time.Duration
	Logger   *log.Logger
}

// New creates a new StatsAPI client
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second)
	httpClient.AddRetryCondition(retryCondition)

	return &Client{
		http:     httpClient,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
	}
}

// retryCondition retries network errors, throttling and server errors
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// FetchSchedule returns the gamePks scheduled on a date, in schedule order
func (c *Client) FetchSchedule(ctx context.Context, date time.Time) ([]int64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sportId", strconv.Itoa(SportMLB)).
		SetQueryParam("date", date.Format("2006-01-02")).
		Get("/api/v1/schedule")
	if err != nil {
		return nil, fmt.Errorf("fetch schedule %s: %w", date.Format("2006-01-02"), err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch schedule %s: status %d", date.Format("2006-01-02"), resp.StatusCode())
	}

	var pks []int64
	seen := make(map[int64]bool)
	gjson.GetBytes(resp.Body(), "dates.#.games.#.gamePk").ForEach(func(_, day gjson.Result) bool {
		day.ForEach(func(_, pk gjson.Result) bool {
			if id := pk.Int(); id != 0 && !seen[id] {
				seen[id] = true
				pks = append(pks, id)
			}
			return true
		})
		return true
	})

	c.logger.Printf("[feed] schedule %s: %d games", date.Format("2006-01-02"), len(pks))
	return pks, nil
}

// FetchLiveFeed fetches the full live feed for a game. Final games are
// served from the cache when present and stored after a fetch.
func (c *Client) FetchLiveFeed(ctx context.Context, gamePK int64) (*Record, error) {
	key := CacheKey(gamePK)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			if rec, perr := ParseRecord([]byte(cached)); perr == nil {
				return rec, nil
			}
			c.logger.Printf("[feed] discarding unreadable cache entry %s", key)
		case !errors.Is(err, redis.Nil):
			c.logger.Printf("[feed] cache get %s: %v", key, err)
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("gamePk", strconv.FormatInt(gamePK, 10)).
		Get("/api/v1.1/game/{gamePk}/feed/live")
	if err != nil {
		return nil, fmt.Errorf("fetch live feed %d: %w", gamePK, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch live feed %d: status %d", gamePK, resp.StatusCode())
	}

	rec, err := ParseRecord(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parse live feed %d: %w", gamePK, err)
	}

	if c.cache != nil && rec.IsFinal() {
		if err := c.cache.Set(ctx, key, string(rec.Raw()), c.cacheTTL); err != nil {
			c.logger.Printf("[feed] cache set %s: %v", key, err)
		}
	}

	return rec, nil
}

// CacheKey is the Redis key a game's live feed is cached under.
func CacheKey(gamePK int64) string {
	return cachePrefix + strconv.FormatInt(gamePK, 10)
}
