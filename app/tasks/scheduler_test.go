package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/rss-sift/app/cache"
	"github.com/lysyi3m/rss-sift/app/feed"
)

type fakeWarmer struct {
	mu   sync.Mutex
	urls []string
	err  error
	done chan string
}

func (f *fakeWarmer) GetOrFetch(ctx context.Context, url string) (*cache.Entry, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.done != nil {
		f.done <- url
	}
	if f.err != nil {
		return nil, f.err
	}
	return &cache.Entry{Content: []byte("<rss/>")}, nil
}

type fakeEvicter struct {
	calls atomic.Int32
	err   error
	done  chan struct{}
}

func (f *fakeEvicter) Evict() (int, error) {
	f.calls.Add(1)
	if f.done != nil {
		f.done <- struct{}{}
	}
	return 2, f.err
}

type fakePruner struct {
	calls atomic.Int32
}

func (f *fakePruner) Prune() int {
	f.calls.Add(1)
	return 1
}

func loadPresets(t *testing.T, files map[string]string) *feed.PresetCache {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	presets := feed.NewPresetCache(dir)
	if err := presets.Run(); err != nil {
		t.Fatal(err)
	}
	return presets
}

func drain(s *Scheduler) []TaskInterface {
	var queued []TaskInterface
	for {
		select {
		case task := <-s.taskQueue:
			queued = append(queued, task)
		default:
			return queued
		}
	}
}

func TestScheduler_EnqueueTasks_SelectsWarmPresets(t *testing.T) {
	presets := loadPresets(t, map[string]string{
		"warm":  "url: https://example.com/warm.xml\nsettings:\n  enabled: true\n  warm: true\n",
		"cold":  "url: https://example.com/cold.xml\nsettings:\n  enabled: true\n",
		"off":   "url: https://example.com/off.xml\nsettings:\n  enabled: false\n  warm: true\n",
		"local": "url: ./feed.xml\nsettings:\n  enabled: true\n  warm: true\n",
	})

	s := NewScheduler(presets, &fakeWarmer{}, &fakeEvicter{}, &fakePruner{}, time.Hour, 1)
	s.enqueueTasks()

	queued := drain(s)
	if len(queued) != 2 {
		t.Fatalf("Expected 2 queued tasks, got %d", len(queued))
	}

	warmTasks := 0
	sweepTasks := 0
	for _, task := range queued {
		switch task.GetType() {
		case TaskTypeWarmCache:
			warmTasks++
			if task.GetPresetName() != "warm" {
				t.Errorf("Expected warm task for 'warm', got '%s'", task.GetPresetName())
			}
		case TaskTypeSweepCache:
			sweepTasks++
		}
	}
	if warmTasks != 1 || sweepTasks != 1 {
		t.Errorf("Expected 1 warm and 1 sweep task, got %d and %d", warmTasks, sweepTasks)
	}
}

func TestScheduler_EnqueueTasks_RespectsRefreshInterval(t *testing.T) {
	presets := loadPresets(t, map[string]string{
		"news": "url: https://example.com/news.xml\nsettings:\n  enabled: true\n  warm: true\n  refresh_interval: 60\n",
	})

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(presets, &fakeWarmer{}, &fakeEvicter{}, &fakePruner{}, time.Hour, 1)
	s.now = func() time.Time { return now }

	countWarm := func() int {
		count := 0
		for _, task := range drain(s) {
			if task.GetType() == TaskTypeWarmCache {
				count++
			}
		}
		return count
	}

	s.enqueueTasks()
	if got := countWarm(); got != 1 {
		t.Fatalf("Expected first tick to warm, got %d warm tasks", got)
	}

	now = now.Add(30 * time.Second)
	s.enqueueTasks()
	if got := countWarm(); got != 0 {
		t.Errorf("Expected no warm task before refresh interval, got %d", got)
	}

	now = now.Add(30 * time.Second)
	s.enqueueTasks()
	if got := countWarm(); got != 1 {
		t.Errorf("Expected warm task once refresh interval elapsed, got %d", got)
	}
}

func TestScheduler_EnqueueTask_QueueFull(t *testing.T) {
	s := NewScheduler(feed.NewPresetCache(t.TempDir()), &fakeWarmer{}, &fakeEvicter{}, &fakePruner{}, time.Hour, 1)

	for i := 0; i < taskQueueSize; i++ {
		if err := s.EnqueueTask(NewSweepCacheTask(&fakeEvicter{}, nil)); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}

	if err := s.EnqueueTask(NewSweepCacheTask(&fakeEvicter{}, nil)); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	presets := loadPresets(t, map[string]string{
		"warm": "url: https://example.com/warm.xml\nsettings:\n  enabled: true\n  warm: true\n",
	})

	warmer := &fakeWarmer{done: make(chan string, 10)}
	evicter := &fakeEvicter{done: make(chan struct{}, 10)}
	pruner := &fakePruner{}

	s := NewScheduler(presets, warmer, evicter, pruner, time.Hour, 2)
	s.Start()

	select {
	case url := <-warmer.done:
		if url != "https://example.com/warm.xml" {
			t.Errorf("Expected warm.xml to be warmed, got %s", url)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for startup warm task")
	}

	select {
	case <-evicter.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for startup sweep task")
	}

	s.Stop()

	if pruner.calls.Load() != 1 {
		t.Errorf("Expected one prune, got %d", pruner.calls.Load())
	}
}

func TestScheduler_EnqueueAfterStop(t *testing.T) {
	presets := loadPresets(t, map[string]string{})

	s := NewScheduler(presets, &fakeWarmer{}, &fakeEvicter{done: make(chan struct{}, 10)}, &fakePruner{}, time.Hour, 1)
	s.Start()
	s.Stop()

	for i := 0; i < 100; i++ {
		err := s.EnqueueTask(NewSweepCacheTask(&fakeEvicter{}, &fakePruner{}))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled after Stop, got %v", err)
		}
	}
}

func TestWarmCacheTask_Execute(t *testing.T) {
	preset := &feed.Preset{Name: "news", URL: "https://example.com/news.xml"}

	warmer := &fakeWarmer{}
	task := NewWarmCacheTask(preset, warmer)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(warmer.urls) != 1 || warmer.urls[0] != preset.URL {
		t.Errorf("Expected a single fetch of %s, got %v", preset.URL, warmer.urls)
	}
	if task.GetID() == "" {
		t.Error("Expected task ID to be set")
	}
}

func TestWarmCacheTask_ExecuteError(t *testing.T) {
	upstreamErr := errors.New("upstream down")
	task := NewWarmCacheTask(&feed.Preset{Name: "news", URL: "https://example.com/news.xml"}, &fakeWarmer{err: upstreamErr})

	err := task.Execute(context.Background())
	if !errors.Is(err, upstreamErr) {
		t.Errorf("Expected wrapped upstream error, got %v", err)
	}
}

func TestWarmCacheTask_CancelledContext(t *testing.T) {
	warmer := &fakeWarmer{}
	task := NewWarmCacheTask(&feed.Preset{Name: "news", URL: "https://example.com/news.xml"}, warmer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(warmer.urls) != 0 {
		t.Error("Expected no fetch after cancellation")
	}
}

func TestSweepCacheTask_Execute(t *testing.T) {
	evicter := &fakeEvicter{}
	pruner := &fakePruner{}

	if err := NewSweepCacheTask(evicter, pruner).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if evicter.calls.Load() != 1 || pruner.calls.Load() != 1 {
		t.Errorf("Expected one eviction and one prune, got %d and %d", evicter.calls.Load(), pruner.calls.Load())
	}

	failing := &fakeEvicter{err: errors.New("disk gone")}
	if err := NewSweepCacheTask(failing, pruner).Execute(context.Background()); err == nil {
		t.Error("Expected eviction error to be returned")
	}
}
