package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/campaign-desk/internal/config"
	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/pkg/publishers"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestWatcherRunOncePublishesThroughHTTPSink(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]domain.Campaign{{ID: "1", Name: "Spring"}})
	}))
	defer backend.Close()

	var (
		mu     sync.Mutex
		events []publishers.Event
	)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer sink.Close()

	dir := t.TempDir()
	cfg := &config.Config{
		TargetsFile: writeConfig(t, dir, "targets.yaml", `
targets:
  - id: local
    name: Local backend
    base_url: `+backend.URL+`
`),
		PublishersFile: writeConfig(t, dir, "publishers.yaml", `
publishers:
  - id: hook
    type: http
    http:
      url: `+sink.URL+`
`),
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "revisions.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
		WatchInterval:          time.Hour,
	}

	w, err := NewWatcher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.close()

	for i := 0; i < 2; i++ {
		if err := w.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce #%d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected exactly one delivered event, got %d", len(events))
	}
	if events[0].TargetID != "local" || events[0].Campaign.ID != "1" {
		t.Fatalf("unexpected event %#v", events[0])
	}
}

func TestNewWatcherRequiresPublishers(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		TargetsFile: writeConfig(t, dir, "targets.yaml", `
targets:
  - {id: local, name: Local, base_url: "http://localhost:8080"}
`),
		PublishersFile: writeConfig(t, dir, "publishers.yaml", `
publishers:
  - id: hook
    type: http
    enabled: false
    http:
      url: http://localhost:9000
`),
		StorageType: "none",
	}

	if _, err := NewWatcher(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error when every publisher is disabled")
	}
	if _, err := NewWatcher(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
