// Package cache stores upstream feeds on disk and revalidates them with conditional requests.
package cache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/rss-sift/app/fetch"
	"github.com/lysyi3m/rss-sift/app/metrics"
)

// Fetcher performs the upstream GET.
type Fetcher interface {
	Get(ctx context.Context, url string, validators fetch.Validators) (*fetch.Response, error)
}

var _ Fetcher = (*fetch.Fetcher)(nil)

type Cache struct {
	store   *Store
	fetcher Fetcher
	metrics *metrics.Metrics
	maxAge  time.Duration
	group   singleflight.Group
	now     func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(store *Store, fetcher Fetcher, m *metrics.Metrics, maxAge time.Duration, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		metrics: m,
		maxAge:  maxAge,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Store() *Store {
	return c.store
}

// GetOrFetch returns the feed at url, revalidating any cached copy with upstream.
// Concurrent calls for the same url share a single upstream request.
func (c *Cache) GetOrFetch(ctx context.Context, url string) (*Entry, error) {
	key := Key(url)

	// The shared fetch must not be cancelled just because the first caller went away.
	fetchCtx := context.WithoutCancel(ctx)

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.fetch(fetchCtx, url, key)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		slog.Debug("Shared in-flight fetch", "source", url)
	}
	return v.(*Entry), nil
}

func (c *Cache) fetch(ctx context.Context, url, key string) (*Entry, error) {
	cached, err := c.store.LoadMeta(key)
	if err != nil {
		slog.Warn("Discarding unreadable cache metadata", "source", url, "error", err)
		c.discard(url, key)
		cached = nil
	}

	var validators fetch.Validators
	expired := false
	if cached != nil {
		if c.now().Sub(cached.FetchedAt) > c.maxAge {
			expired = true
			slog.Debug("Cache expired", "source", url, "max_age", c.maxAge)
		}
		validators = fetch.Validators{ETag: cached.ETag, LastModified: cached.LastModified}
	}

	resp, err := c.fetcher.Get(ctx, url, validators)
	if err != nil {
		return nil, err
	}

	if resp.NotModified {
		if cached != nil && !expired {
			content, err := c.store.LoadContent(key)
			if err == nil {
				c.metrics.CacheHits.Inc()
				slog.Info("Cache hit", "source", url)
				cached.Content = content
				return cached, nil
			}
			slog.Warn("Cached content missing on revalidation", "source", url, "error", err)
		}

		// Nothing trustworthy to serve for this 304, ask again without validators.
		resp, err = c.fetcher.Get(ctx, url, fetch.Validators{})
		if err != nil {
			return nil, err
		}
		if resp.NotModified {
			return nil, &fetch.UpstreamError{Kind: fetch.KindHTTPStatus, Source: url, Status: http.StatusNotModified}
		}
	}

	c.metrics.CacheMisses.Inc()
	slog.Info("Cache miss", "source", url, "bytes", len(resp.Body))

	c.inspect(url, resp)

	entry := &Entry{
		Key:          key,
		Content:      resp.Body,
		FetchedAt:    c.now(),
		ETag:         resp.ETag,
		LastModified: resp.LastModified,
	}

	c.persist(url, entry)

	return entry, nil
}

func (c *Cache) discard(url, key string) {
	if err := c.store.Delete(key); err != nil {
		c.metrics.CacheWriteErrors.Inc()
		slog.Warn("Failed to delete cache entry", "source", url, "error", err)
	}
}

// inspect flags responses that do not look like feeds. It never rejects them.
func (c *Cache) inspect(url string, resp *fetch.Response) {
	if !fetch.IsFeedContentType(resp.ContentType) {
		c.metrics.SuspiciousContentType.Inc()
		slog.Warn("Suspicious content-type", "source", url, "content_type", resp.ContentType)
	}

	if gofeed.DetectFeedType(bytes.NewReader(resp.Body)) == gofeed.FeedTypeUnknown {
		slog.Warn("Response body is not a recognized feed format", "source", url)
	}
}

// persist failures only cost a future cache hit, so they are logged and swallowed.
func (c *Cache) persist(url string, entry *Entry) {
	if err := c.store.Save(entry); err != nil {
		c.metrics.CacheWriteErrors.Inc()
		slog.Warn("Failed to persist cache", "source", url, "error", err)
		return
	}

	if _, err := c.store.Evict(); err != nil {
		c.metrics.CacheWriteErrors.Inc()
		slog.Warn("Failed to run cache eviction", "source", url, "error", err)
	}
}
