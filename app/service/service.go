// Package service runs the admission, fetch, filter and attribution pipeline behind every request.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-sift/app/cache"
	"github.com/lysyi3m/rss-sift/app/feed"
	"github.com/lysyi3m/rss-sift/app/fetch"
	"github.com/lysyi3m/rss-sift/app/metrics"
	"github.com/lysyi3m/rss-sift/app/ratelimit"
)

type Request struct {
	ClientID string
	Source   string
	Include  []string
	Exclude  []string
	Pattern  string
}

type Service struct {
	limiter    *ratelimit.Limiter
	cache      *cache.Cache
	fetcher    *fetch.Fetcher
	presets    *feed.PresetCache
	filterer   *feed.Filterer
	attributor *feed.Attributor
	metrics    *metrics.Metrics
}

// New wires the pipeline. A nil limiter admits everything, and a nil cache sends
// remote sources straight to the fetcher.
func New(limiter *ratelimit.Limiter, c *cache.Cache, fetcher *fetch.Fetcher, presets *feed.PresetCache,
	attributor *feed.Attributor, m *metrics.Metrics) *Service {
	return &Service{
		limiter:    limiter,
		cache:      c,
		fetcher:    fetcher,
		presets:    presets,
		filterer:   feed.NewFilterer(),
		attributor: attributor,
		metrics:    m,
	}
}

func (s *Service) Filter(ctx context.Context, req Request) ([]byte, feed.Result, error) {
	if err := s.admit(req.ClientID); err != nil {
		return nil, feed.Result{}, err
	}

	out, result, err := s.filter(ctx, req)
	s.record(err)
	return out, result, err
}

// FilterPreset runs the pipeline with the source and predicate stored under name.
func (s *Service) FilterPreset(ctx context.Context, clientID, name string) ([]byte, feed.Result, error) {
	if err := s.admit(clientID); err != nil {
		return nil, feed.Result{}, err
	}

	out, result, err := s.filterPreset(ctx, name)
	s.record(err)
	return out, result, err
}

func (s *Service) filter(ctx context.Context, req Request) ([]byte, feed.Result, error) {
	if req.Source == "" {
		return nil, feed.Result{}, ErrMissingSource
	}

	pred, err := feed.NewPredicate(req.Include, req.Exclude, req.Pattern)
	if err != nil {
		return nil, feed.Result{}, err
	}

	return s.run(ctx, req.Source, pred)
}

func (s *Service) filterPreset(ctx context.Context, name string) ([]byte, feed.Result, error) {
	preset, err := s.lookupPreset(name)
	if err != nil {
		return nil, feed.Result{}, err
	}

	pred, err := preset.Predicate()
	if err != nil {
		return nil, feed.Result{}, err
	}

	return s.run(ctx, preset.URL, pred)
}

func (s *Service) lookupPreset(name string) (*feed.Preset, error) {
	if s.presets == nil {
		return nil, fmt.Errorf("%w: %s", feed.ErrPresetNotFound, name)
	}

	preset, err := s.presets.GetPreset(name)
	if err != nil {
		return nil, err
	}
	if !preset.Settings.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", feed.ErrPresetNotFound, name)
	}
	return preset, nil
}

func (s *Service) admit(clientID string) error {
	s.metrics.RequestsTotal.Inc()

	if s.limiter != nil && !s.limiter.Allow(clientID) {
		s.metrics.RequestsRateLimited.Inc()
		slog.Warn("Rate limit exceeded", "client", clientID)
		return ErrAdmissionRejected
	}

	s.metrics.RequestsAccepted.Inc()
	return nil
}

func (s *Service) record(err error) {
	if err != nil {
		s.metrics.RequestsError.Inc()
		return
	}
	s.metrics.RequestsSuccess.Inc()
}

func (s *Service) run(ctx context.Context, source string, pred feed.Predicate) ([]byte, feed.Result, error) {
	startTime := time.Now()

	data, err := s.load(ctx, source)
	if err != nil {
		return nil, feed.Result{}, err
	}

	doc, err := feed.Parse(data)
	if err != nil {
		slog.Error("Failed to parse feed", "source", source, "error", err)
		return nil, feed.Result{}, err
	}

	result := s.filterer.Apply(doc, pred)
	s.metrics.FiltersApplied.Inc()
	s.metrics.ItemsRemoved.Add(int64(result.Removed))

	title := doc.ChannelTitle()
	s.attributor.Annotate(doc, source)

	slog.Info("Feed filtered",
		"source", source,
		"title", title,
		"remaining", result.Remaining,
		"removed", result.Removed,
		"duration", time.Since(startTime))

	return doc.Bytes(), result, nil
}

func (s *Service) load(ctx context.Context, source string) ([]byte, error) {
	if !fetch.IsRemote(source) {
		return s.fetcher.ReadLocal(source)
	}

	if s.cache != nil {
		entry, err := s.cache.GetOrFetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return entry.Content, nil
	}

	resp, err := s.fetcher.Get(ctx, source, fetch.Validators{})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
