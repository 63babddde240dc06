package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-sift/app/feed"
)

type WarmCacheTask struct {
	Task
	URL    string
	warmer Warmer
}

func NewWarmCacheTask(preset *feed.Preset, warmer Warmer) *WarmCacheTask {
	return &WarmCacheTask{
		Task:   NewTask(TaskTypeWarmCache, preset.Name),
		URL:    preset.URL,
		warmer: warmer,
	}
}

func (t *WarmCacheTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entry, err := t.warmer.GetOrFetch(ctx, t.URL)
	if err != nil {
		slog.Error("Task failed", "type", "WarmCache", "preset", t.PresetName, "error", err)
		return fmt.Errorf("failed to warm cache for %s: %w", t.URL, err)
	}

	slog.Info("Task completed",
		"type", "WarmCache",
		"preset", t.PresetName,
		"bytes", len(entry.Content),
		"duration", t.GetDuration())

	return nil
}
