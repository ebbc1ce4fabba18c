package cache_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"maukemana-backend/internal/cache"
)

func TestLocalStorePutPosterWritesDataAndMetaSidecar(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewLocalStore(dir)

	key, err := store.PutPoster(context.Background(), "poster-1", []byte("image-bytes"), cache.Meta{
		JellyfinID:       "poster-1",
		OriginalPosterID: "poster-1",
	})
	if err != nil {
		t.Fatalf("PutPoster() error: %v", err)
	}
	if !strings.HasPrefix(key, "cache/posters/batch_poster-1_") {
		t.Errorf("key = %q, want prefix cache/posters/batch_poster-1_", key)
	}

	data, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil {
		t.Fatalf("expected data file at %s: %v", key, err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data = %q, want %q", data, "image-bytes")
	}

	metaBytes, err := os.ReadFile(filepath.Join(dir, key+".meta"))
	if err != nil {
		t.Fatalf("expected meta sidecar at %s.meta: %v", key, err)
	}
	var meta cache.Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if meta.JellyfinID != "poster-1" {
		t.Errorf("meta.JellyfinID = %q, want %q", meta.JellyfinID, "poster-1")
	}
	if meta.CachedAt.IsZero() {
		t.Error("expected CachedAt to be stamped")
	}
}

func TestLocalStorePutOutputThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewLocalStore(dir)

	key, err := store.PutOutput(context.Background(), []byte("composed-bytes"))
	if err != nil {
		t.Fatalf("PutOutput() error: %v", err)
	}
	if !strings.HasPrefix(key, "output/processed/") {
		t.Errorf("key = %q, want prefix output/processed/", key)
	}

	got, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "composed-bytes" {
		t.Errorf("Get() = %q, want %q", got, "composed-bytes")
	}
}

func TestLocalStoreGetMissingKeyErrors(t *testing.T) {
	store := cache.NewLocalStore(t.TempDir())
	if _, err := store.Get(context.Background(), "output/processed/does-not-exist.jpg"); err == nil {
		t.Error("Get() on a missing key = nil error, want non-nil")
	}
}

func TestLocalStorePutPosterGeneratesUniqueKeys(t *testing.T) {
	store := cache.NewLocalStore(t.TempDir())
	key1, err := store.PutPoster(context.Background(), "poster-1", []byte("a"), cache.Meta{})
	if err != nil {
		t.Fatalf("PutPoster() error: %v", err)
	}
	key2, err := store.PutPoster(context.Background(), "poster-1", []byte("b"), cache.Meta{})
	if err != nil {
		t.Fatalf("PutPoster() error: %v", err)
	}
	if key1 == key2 {
		t.Errorf("expected distinct keys for repeated downloads of the same poster, got %q twice", key1)
	}
}
