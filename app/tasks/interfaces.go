package tasks

import (
	"context"

	"github.com/lysyi3m/rss-sift/app/cache"
	"github.com/lysyi3m/rss-sift/app/ratelimit"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to queue background work.
//
//	scheduler := NewScheduler(presets, feedCache, store, limiter, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewWarmCacheTask(preset, feedCache))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Warmer refreshes the cached copy of an upstream feed.
type Warmer interface {
	GetOrFetch(ctx context.Context, url string) (*cache.Entry, error)
}

type Evicter interface {
	Evict() (int, error)
}

type Pruner interface {
	Prune() int
}

var (
	_ Warmer  = (*cache.Cache)(nil)
	_ Evicter = (*cache.Store)(nil)
	_ Pruner  = (*ratelimit.Limiter)(nil)
)
