package cache

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	key1a := Key("https://example.com/feed.xml")
	key1b := Key("https://example.com/feed.xml")
	key2 := Key("https://different.com/feed.xml")

	if key1a != key1b {
		t.Errorf("Expected same key for same URL, got %s != %s", key1a, key1b)
	}
	if key1a == key2 {
		t.Errorf("Expected different keys for different URLs, but got same: %s", key1a)
	}
	if len(key1a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(key1a))
	}
	if strings.ContainsAny(key1a, "/:?") {
		t.Errorf("Key must be filesystem safe, got %s", key1a)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	fetchedAt := time.Date(2024, 3, 1, 10, 30, 0, 500_000_000, time.UTC)
	key := Key("https://example.com/feed.xml")
	err = store.Save(&Entry{
		Key:          key,
		Content:      []byte("<rss/>"),
		FetchedAt:    fetchedAt,
		ETag:         `"abc"`,
		LastModified: "Fri, 01 Mar 2024 10:00:00 GMT",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	meta, err := store.LoadMeta(key)
	if err != nil {
		t.Fatalf("LoadMeta failed: %v", err)
	}
	if meta == nil {
		t.Fatal("Expected entry metadata")
	}
	if meta.ETag != `"abc"` {
		t.Errorf("Expected ETag, got %q", meta.ETag)
	}
	if meta.LastModified != "Fri, 01 Mar 2024 10:00:00 GMT" {
		t.Errorf("Expected Last-Modified, got %q", meta.LastModified)
	}
	if d := meta.FetchedAt.Sub(fetchedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("Expected FetchedAt %v, got %v", fetchedAt, meta.FetchedAt)
	}
	if meta.Content != nil {
		t.Error("LoadMeta must not load content")
	}

	content, err := store.LoadContent(key)
	if err != nil {
		t.Fatalf("LoadContent failed: %v", err)
	}
	if string(content) != "<rss/>" {
		t.Errorf("Unexpected content %q", content)
	}
}

func TestStore_SidecarFormat(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	key := Key("https://example.com/feed.xml")
	if err := store.Save(&Entry{Key: key, Content: []byte("<rss/>"), FetchedAt: time.Unix(1700000000, 0)}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(store.metaPath(key))
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Sidecar is not valid JSON: %v", err)
	}
	if raw["fetched_at"] != float64(1700000000) {
		t.Errorf("Expected fetched_at 1700000000, got %v", raw["fetched_at"])
	}
	if _, ok := raw["etag"]; ok {
		t.Error("Expected etag to be omitted when absent")
	}
}

func TestStore_LoadMetaMissing(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := store.LoadMeta(Key("https://nowhere.example.com"))
	if err != nil {
		t.Fatalf("Expected no error for missing entry, got %v", err)
	}
	if meta != nil {
		t.Error("Expected nil entry for missing key")
	}
}

func TestStore_LoadMetaCorrupt(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	key := Key("https://example.com/feed.xml")
	if err := os.WriteFile(store.metaPath(key), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.LoadMeta(key); err == nil {
		t.Error("Expected error for corrupt sidecar")
	}
}

func TestStore_EvictBelowLimitKeepsEverything(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	for _, url := range []string{"https://a.example.com", "https://b.example.com"} {
		if err := store.Save(&Entry{Key: Key(url), Content: []byte("<rss/>"), FetchedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.Evict()
	if err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected nothing evicted, got %d", removed)
	}
	if countFiles(t, store.Dir()) != 4 {
		t.Errorf("Expected 4 files, got %d", countFiles(t, store.Dir()))
	}
}

func TestStore_EvictRemovesOldestHalf(t *testing.T) {
	store, err := NewStore(t.TempDir(), 200)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-time.Hour)
	keys := make([]string, 4)
	for i := range keys {
		keys[i] = Key("https://example.com/" + string(rune('a'+i)))
		saveWithModTime(t, store, keys[i], strings.Repeat("x", 100), base.Add(time.Duration(i)*time.Minute))
	}

	removed, err := store.Evict()
	if err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("Expected 4 files removed, got %d", removed)
	}

	for i, key := range keys {
		meta, _ := store.LoadMeta(key)
		if i < 2 && meta != nil {
			t.Errorf("Expected entry %d to be evicted", i)
		}
		if i >= 2 && meta == nil {
			t.Errorf("Expected entry %d to survive", i)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	key := Key("https://example.com/feed.xml")
	if err := store.Save(&Entry{Key: key, Content: []byte("<rss/>"), FetchedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if countFiles(t, store.Dir()) != 0 {
		t.Error("Expected cache directory to be empty")
	}

	// Deleting again is not an error
	if err := store.Delete(key); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestStore_SizeBytes(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(store.contentPath("k"), []byte(strings.Repeat("x", 1000)), 0644); err != nil {
		t.Fatal(err)
	}

	size, err := store.SizeBytes()
	if err != nil {
		t.Fatalf("SizeBytes failed: %v", err)
	}
	if size != 1000 {
		t.Errorf("Expected 1000 bytes, got %d", size)
	}
	if store.SizeMB() <= 0 {
		t.Error("Expected positive size in MB")
	}
}
