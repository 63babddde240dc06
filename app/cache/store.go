package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	contentExt = ".xml"
	metaExt    = ".json"
	tempPrefix = ".tmp-"
)

// Entry is a cached upstream feed. Content is nil when only the metadata was loaded.
type Entry struct {
	Key          string
	Content      []byte
	FetchedAt    time.Time
	ETag         string
	LastModified string
}

type sidecar struct {
	FetchedAt    float64 `json:"fetched_at"`
	ETag         string  `json:"etag,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
}

// Store keeps one content blob and one JSON sidecar per key in a flat directory.
type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// Key derives a filesystem-safe, fixed-length key from a source locator.
func Key(locator string) string {
	hash := sha256.Sum256([]byte(locator))
	return hex.EncodeToString(hash[:])
}

func (s *Store) Dir() string {
	return s.dir
}

// LoadMeta reads the sidecar for key. It returns nil, nil when no entry exists.
func (s *Store) LoadMeta(key string) (*Entry, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache metadata: %w", err)
	}

	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse cache metadata: %w", err)
	}

	return &Entry{
		Key:          key,
		FetchedAt:    fromUnixSeconds(meta.FetchedAt),
		ETag:         meta.ETag,
		LastModified: meta.LastModified,
	}, nil
}

func (s *Store) LoadContent(key string) ([]byte, error) {
	data, err := os.ReadFile(s.contentPath(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read cached content: %w", err)
	}
	return data, nil
}

// Save writes content first and the sidecar last, each via rename, so a readable
// sidecar always points at complete content.
func (s *Store) Save(entry *Entry) error {
	if err := s.writeAtomic(s.contentPath(entry.Key), entry.Content); err != nil {
		return fmt.Errorf("failed to write cached content: %w", err)
	}

	meta, err := json.Marshal(sidecar{
		FetchedAt:    toUnixSeconds(entry.FetchedAt),
		ETag:         entry.ETag,
		LastModified: entry.LastModified,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}

	if err := s.writeAtomic(s.metaPath(entry.Key), meta); err != nil {
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}

	return nil
}

func (s *Store) Delete(key string) error {
	var errs []error
	for _, path := range []string{s.metaPath(key), s.contentPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SizeBytes sums the sizes of all regular files in the cache directory.
func (s *Store) SizeBytes() (int64, error) {
	files, err := s.files()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	return total, nil
}

func (s *Store) SizeMB() float64 {
	size, err := s.SizeBytes()
	if err != nil {
		slog.Warn("Failed to compute cache size", "dir", s.dir, "error", err)
		return 0
	}
	return float64(size) / (1024 * 1024)
}

// Evict deletes the older half of the cache files, by modification time, when the
// directory exceeds its size bound. Freshness is not considered.
func (s *Store) Evict() (int, error) {
	files, err := s.files()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= s.maxSize {
		return 0, nil
	}

	slog.Info("Cache size exceeds limit, cleaning up old entries",
		"size_mb", fmt.Sprintf("%.1f", float64(total)/(1024*1024)),
		"limit_mb", fmt.Sprintf("%.1f", float64(s.maxSize)/(1024*1024)))

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	removed := 0
	for _, f := range files[:len(files)/2] {
		if err := os.Remove(f.path); err != nil {
			slog.Warn("Failed to remove cache entry", "path", f.path, "error", err)
			continue
		}
		slog.Debug("Removed cache entry", "path", f.path)
		removed++
	}

	return removed, nil
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (s *Store) files() ([]cacheFile, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	files := make([]cacheFile, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed concurrently
			continue
		}
		files = append(files, cacheFile{
			path:    filepath.Join(s.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return files, nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) contentPath(key string) string {
	return filepath.Join(s.dir, key+contentExt)
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.dir, key+metaExt)
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
