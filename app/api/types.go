package api

import (
	"context"
	"net/http"

	"github.com/lysyi3m/rss-sift/app/cache"
	"github.com/lysyi3m/rss-sift/app/feed"
	"github.com/lysyi3m/rss-sift/app/metrics"
	"github.com/lysyi3m/rss-sift/app/service"
	"github.com/lysyi3m/rss-sift/app/tasks"
)

const requestIDHeader = "X-Request-ID"

// FilterService runs the filtering pipeline for a request.
type FilterService interface {
	Filter(ctx context.Context, req service.Request) ([]byte, feed.Result, error)
	FilterPreset(ctx context.Context, clientID, name string) ([]byte, feed.Result, error)
}

var _ FilterService = (*service.Service)(nil)

type Handler struct {
	service           FilterService
	presets           *feed.PresetCache
	feedCache         *cache.Cache
	metrics           *metrics.Metrics
	scheduler         tasks.TaskSchedulerInterface
	prometheusHandler http.Handler
	version           string
}

type metricsResponse struct {
	metrics.Snapshot
	CacheSizeMB float64 `json:"cache_size_mb"`
}
