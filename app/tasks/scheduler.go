package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-sift/app/feed"
	"github.com/lysyi3m/rss-sift/app/fetch"
)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	presets     *feed.PresetCache
	warmer      Warmer
	evicter     Evicter
	pruner      Pruner
	interval    time.Duration
	workerCount int
	lastWarmed  map[string]time.Time
	mu          sync.Mutex
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(presets *feed.PresetCache, warmer Warmer, evicter Evicter, pruner Pruner,
	interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		presets:     presets,
		warmer:      warmer,
		evicter:     evicter,
		pruner:      pruner,
		interval:    interval,
		workerCount: workerCount,
		lastWarmed:  make(map[string]time.Time),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	// Start worker pool
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	// Start scheduler loop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run once immediately
		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels the workers and waits for them. The queue is left open, so a late
// EnqueueTask returns the context error instead of sending on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueWarmTasks()

	if err := s.EnqueueTask(NewSweepCacheTask(s.evicter, s.pruner)); err != nil {
		slog.Warn("Failed to enqueue SweepCacheTask", "error", err)
	}
}

func (s *Scheduler) enqueueWarmTasks() {
	presets := s.presets.GetEnabledPresets()
	if len(presets) == 0 {
		slog.Debug("No enabled presets found")
		return
	}

	now := s.now()
	for _, preset := range presets {
		// Only warm presets that opted in and point at a remote source
		if !preset.Settings.Warm {
			continue
		}
		if !fetch.IsRemote(preset.URL) {
			slog.Debug("Preset source is local, skipping WarmCacheTask", "preset", preset.Name)
			continue
		}
		if !s.isDue(preset, now) {
			slog.Debug("Preset not due for warming yet", "preset", preset.Name)
			continue
		}

		if err := s.EnqueueTask(NewWarmCacheTask(preset, s.warmer)); err != nil {
			slog.Warn("Failed to enqueue WarmCacheTask", "preset", preset.Name, "error", err)
			continue
		}
		s.markWarmed(preset.Name, now)
	}
}

func (s *Scheduler) isDue(preset *feed.Preset, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastWarmed[preset.Name]
	if !ok {
		return true
	}
	return now.Sub(last) >= time.Duration(preset.Settings.RefreshInterval)*time.Second
}

func (s *Scheduler) markWarmed(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWarmed[name] = at
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "preset", task.GetPresetName(), "error", err)
	}
}
