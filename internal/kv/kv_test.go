package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "state", "storage.json"))
	if err != nil {
		t.Fatalf("NewFileStore() = %v", err)
	}
	sqlite, err := NewSQLiteStore(ctx, filepath.Join(dir, "storage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() = %v", err)
	}
	backends := map[string]Store{
		BackendMemory: NewMemory(),
		BackendFile:   file,
		BackendSQLite: sqlite,
	}
	// TABCYCLE_TEST_REDIS_ADDR points the contract at a real server;
	// otherwise an in-process miniredis serves it.
	addr := os.Getenv("TABCYCLE_TEST_REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	rs, err := NewRedisStore(ctx, addr, 0, "tabcycle:test:"+filepath.Base(dir))
	if err != nil {
		t.Fatalf("NewRedisStore() = %v", err)
	}
	backends[BackendRedis] = rs
	for _, s := range backends {
		s := s
		t.Cleanup(func() { _ = s.Close() })
	}
	// Registered last so it runs before the clients close.
	t.Cleanup(func() { _ = rs.Remove(ctx, "clickedTabs", "clickedTabIndex", "missing") })
	return backends
}

func TestStoreContract(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := store.Get(ctx, "clickedTabs")
			if err != nil {
				t.Fatalf("Get() on empty store = %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("Get() on empty store = %v; want no keys", got)
			}

			err = store.Set(ctx, map[string]any{
				"clickedTabs":     []map[string]any{{"id": 1, "title": "a"}},
				"clickedTabIndex": 3,
			})
			if err != nil {
				t.Fatalf("Set() = %v", err)
			}

			got, err = store.Get(ctx, "clickedTabs", "clickedTabIndex", "missing")
			if err != nil {
				t.Fatalf("Get() = %v", err)
			}
			if _, ok := got["missing"]; ok {
				t.Fatalf("Get() returned absent key")
			}
			var idx int
			if err := json.Unmarshal(got["clickedTabIndex"], &idx); err != nil || idx != 3 {
				t.Fatalf("clickedTabIndex = %s (%v); want 3", got["clickedTabIndex"], err)
			}
			var tabs []map[string]any
			if err := json.Unmarshal(got["clickedTabs"], &tabs); err != nil || len(tabs) != 1 {
				t.Fatalf("clickedTabs = %s (%v); want one entry", got["clickedTabs"], err)
			}

			if err := store.Set(ctx, map[string]any{"clickedTabIndex": 1}); err != nil {
				t.Fatalf("Set() overwrite = %v", err)
			}
			got, _ = store.Get(ctx, "clickedTabIndex", "clickedTabs")
			if string(got["clickedTabIndex"]) != "1" {
				t.Fatalf("clickedTabIndex after overwrite = %s; want 1", got["clickedTabIndex"])
			}
			if _, ok := got["clickedTabs"]; !ok {
				t.Fatalf("overwrite of one key dropped another key")
			}

			if err := store.Remove(ctx, "clickedTabs", "missing"); err != nil {
				t.Fatalf("Remove() = %v", err)
			}
			got, _ = store.Get(ctx, "clickedTabs", "clickedTabIndex")
			if _, ok := got["clickedTabs"]; ok {
				t.Fatalf("Remove() left clickedTabs behind")
			}
			if _, ok := got["clickedTabIndex"]; !ok {
				t.Fatalf("Remove() dropped an unrelated key")
			}
		})
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")

	first, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() = %v", err)
	}
	if err := first.Set(ctx, map[string]any{"maxTrackedTabs": 30}); err != nil {
		t.Fatalf("Set() = %v", err)
	}

	second, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() = %v", err)
	}
	got, err := second.Get(ctx, "maxTrackedTabs")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if string(got["maxTrackedTabs"]) != "30" {
		t.Fatalf("maxTrackedTabs = %s; want 30", got["maxTrackedTabs"])
	}
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() = %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() = %v", err)
	}
	got, err := store.Get(context.Background(), "clickedTabs")
	if err != nil {
		t.Fatalf("Get() = %v; want nil", err)
	}
	if len(got) != 0 {
		t.Fatalf("Get() = %v; want empty", got)
	}
	if !strings.Contains(buf.String(), "kv file store unreadable") {
		t.Fatalf("expected unreadable warning, got %q", buf.String())
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "etcd"}); err == nil {
		t.Fatalf("Open(etcd) = nil; want error")
	}
}

func TestOpenDefaultsToMemory(t *testing.T) {
	store, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Fatalf("Open() = %T; want *Memory", store)
	}
}

func TestMemoryHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().Set(ctx, map[string]any{"k": 1}); err == nil {
		t.Fatalf("Set() with canceled context = nil; want error")
	}
}
