package feed

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PresetWatcher keeps a PresetCache in step with edits to its directory.
type PresetWatcher struct {
	presets *PresetCache
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

func NewPresetWatcher(presets *PresetCache) (*PresetWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(presets.Dir()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", presets.Dir(), err)
	}

	return &PresetWatcher{
		presets: presets,
		watcher: watcher,
	}, nil
}

func (pw *PresetWatcher) Start() {
	pw.wg.Add(1)
	go pw.loop()
}

func (pw *PresetWatcher) Stop() {
	pw.watcher.Close()
	pw.wg.Wait()
}

func (pw *PresetWatcher) loop() {
	defer pw.wg.Done()

	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Preset watcher error", "error", err)
		}
	}
}

func (pw *PresetWatcher) handleEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if !strings.HasSuffix(fileName, ".yml") {
		return
	}
	name := strings.TrimSuffix(fileName, ".yml")

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if pw.presets.RemovePreset(name) {
			slog.Info("Preset removed", "preset", name)
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		preset, err := pw.presets.LoadPreset(name)
		if err != nil {
			// Editors write in several steps; the previous definition stays until a valid one lands.
			slog.Warn("Preset reload failed", "preset", name, "error", err)
			return
		}
		slog.Info("Preset reloaded", "preset", name, "enabled", preset.Settings.Enabled)
	}
}
