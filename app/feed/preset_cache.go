package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultRefreshInterval = 3600

// PresetCache holds the saved filter definitions found in a presets directory.
type PresetCache struct {
	presetsDir string
	cache      map[string]*Preset
	mu         sync.RWMutex
}

func NewPresetCache(presetsDir string) *PresetCache {
	return &PresetCache{
		presetsDir: presetsDir,
		cache:      make(map[string]*Preset),
	}
}

func (pc *PresetCache) Run() error {
	if _, err := os.Stat(pc.presetsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(pc.presetsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		name := fileName[:len(fileName)-len(".yml")]

		preset, err := pc.LoadPreset(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Preset loaded", "preset", name, "enabled", preset.Settings.Enabled, "warm", preset.Settings.Warm)
	}

	return nil
}

func (pc *PresetCache) LoadPreset(name string) (*Preset, error) {
	presetFile := pc.getPresetFilePath(name)
	preset, err := pc.parsePreset(presetFile)
	if err != nil {
		return nil, err
	}

	preset.Name = name

	if err := pc.validatePreset(preset); err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", presetFile, err)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.cache[preset.Name] = preset

	return preset, nil
}

// RemovePreset drops a preset whose file has gone away.
func (pc *PresetCache) RemovePreset(name string) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if _, ok := pc.cache[name]; !ok {
		return false
	}
	delete(pc.cache, name)
	return true
}

func (pc *PresetCache) GetPreset(name string) (*Preset, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	preset, ok := pc.cache[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return preset, nil
}

func (pc *PresetCache) GetPresets() map[string]*Preset {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	presetsCopy := make(map[string]*Preset, len(pc.cache))
	for k, v := range pc.cache {
		presetsCopy[k] = v
	}
	return presetsCopy
}

func (pc *PresetCache) GetEnabledPresets() map[string]*Preset {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	enabled := make(map[string]*Preset)
	for k, v := range pc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (pc *PresetCache) GetPresetNames() []string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	names := make([]string, 0, len(pc.cache))
	for name := range pc.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (pc *PresetCache) GetPresetCount() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.cache)
}

func (pc *PresetCache) parsePreset(presetFile string) (*Preset, error) {
	data, err := os.ReadFile(presetFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if preset.Settings.RefreshInterval == 0 {
		preset.Settings.RefreshInterval = defaultRefreshInterval
	}

	return &preset, nil
}

func (pc *PresetCache) validatePreset(preset *Preset) error {
	if preset == nil {
		return fmt.Errorf("preset is nil")
	}

	if preset.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if preset.URL == "" {
		return fmt.Errorf("preset URL is required")
	}

	if preset.Settings.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must be non-negative")
	}

	if preset.Regex != "" {
		if _, err := regexp.Compile(preset.Regex); err != nil {
			return &PatternError{Pattern: preset.Regex, Err: err}
		}
	}

	return nil
}

func (pc *PresetCache) Dir() string {
	return pc.presetsDir
}

func (pc *PresetCache) getPresetFilePath(name string) string {
	return filepath.Join(pc.presetsDir, name+".yml")
}

// Predicate builds the filter predicate described by the preset.
func (p *Preset) Predicate() (Predicate, error) {
	return NewPredicate(p.Include, p.Exclude, p.Regex)
}
