package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// SweepCacheTask enforces the cache size bound and drops idle rate-limit windows.
type SweepCacheTask struct {
	Task
	evicter Evicter
	pruner  Pruner
}

func NewSweepCacheTask(evicter Evicter, pruner Pruner) *SweepCacheTask {
	return &SweepCacheTask{
		Task:    NewTask(TaskTypeSweepCache, ""),
		evicter: evicter,
		pruner:  pruner,
	}
}

func (t *SweepCacheTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	removed, err := t.evicter.Evict()
	if err != nil {
		slog.Error("Task failed", "type", "SweepCache", "error", err)
		return fmt.Errorf("failed to evict cache: %w", err)
	}

	pruned := 0
	if t.pruner != nil {
		pruned = t.pruner.Prune()
	}

	slog.Info("Task completed",
		"type", "SweepCache",
		"files_evicted", removed,
		"clients_pruned", pruned,
		"duration", t.GetDuration())

	return nil
}
