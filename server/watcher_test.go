package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestIsStoreDocument(t *testing.T) {
	tests := map[string]bool{
		"pages/index.json":       true,
		"components/card.YAML":   true,
		"components/card.yml":    true,
		"pages/index.json.tmp":   false,
		"pages/.index.json.swp":  false,
		"pages/.hidden.json":     false,
		"README.md":              false,
		"components/card":        false,
	}
	for path, want := range tests {
		if got := isStoreDocument(path); got != want {
			t.Errorf("isStoreDocument(%q): expected %v, got %v", path, want, got)
		}
	}
}

func TestWatcherHandleFileChange(t *testing.T) {
	s, fs := newTestServer(t, nil)
	h := s.Handler()
	get(t, h, "/")
	if s.pages.Stats().Entries != 1 {
		t.Fatal("expected a cached page")
	}

	w, err := NewWatcher(s, fs.Dir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if w.handleFileChange(filepath.Join(fs.Dir(), "notes.txt")) {
		t.Error("expected non-document change to be ignored")
	}
	if s.pages.Stats().Entries != 1 {
		t.Error("expected caches to be kept")
	}

	if !w.handleFileChange(filepath.Join(fs.Dir(), "pages", "index.json")) {
		t.Error("expected document change to clear caches")
	}
	if s.pages.Stats().Entries != 0 || s.store.Stats().Pages != 0 {
		t.Error("expected caches to be cleared")
	}
	if w.ChangeSeq() != 1 {
		t.Errorf("expected change seq 1, got %d", w.ChangeSeq())
	}
}

func TestWatcherEventLoop(t *testing.T) {
	s, fs := newTestServer(t, nil)
	h := s.Handler()

	w, err := NewWatcher(s, fs.Dir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if body := get(t, h, "/search").Body.String(); !strings.Contains(body, "none") {
		t.Fatalf("unexpected body: %s", body)
	}

	// edit the page file behind the server's back
	path := filepath.Join(fs.Dir(), "pages", "search.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), `"innerText": "none"`, `"innerText": "nothing"`, 1)
	if edited == string(data) {
		t.Fatalf("page file did not contain the expected text: %s", data)
	}
	if err := os.WriteFile(path, []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for w.ChangeSeq() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if w.ChangeSeq() == 0 {
		t.Fatal("expected the watcher to see the edit")
	}
	if body := get(t, h, "/search").Body.String(); !strings.Contains(body, "nothing") {
		t.Errorf("expected edited page, got %s", body)
	}
}
