package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOwningRoot(t *testing.T) {
	roots := []string{"/data/pkg-a", "/data/pkg-b"}

	tests := []struct {
		path string
		want string
	}{
		{"/data/pkg-a/actions.py", "/data/pkg-a"},
		{"/data/pkg-a", "/data/pkg-a"},
		{"/data/pkg-b/sub/x.py", "/data/pkg-b"},
		{"/data/pkg-ab/actions.py", ""},
		{"/elsewhere", ""},
	}

	for _, tt := range tests {
		if got := owningRoot(roots, tt.path); got != tt.want {
			t.Errorf("owningRoot(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/pkg/.git", true},
		{"/pkg/.env", true},
		{"/pkg/actions.py", false},
		{".", false},
		{"..", false},
	}

	for _, tt := range tests {
		if got := isHidden(tt.path); got != tt.want {
			t.Errorf("isHidden(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// TestWatchTriggersReimport writes into a watched package directory and
// expects a single debounced re-import for the package root.
func TestWatchTriggersReimport(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "actions.py"), []byte("# v1"), 0o644); err != nil {
		t.Fatalf("failed to seed package: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan string, 8)
	w := New(zerolog.Nop(), 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, []string{dir}, func(_ context.Context, packageDir string) error {
			triggered <- packageDir
			return nil
		})
	}()

	// Give the watch loop time to register the directory.
	time.Sleep(200 * time.Millisecond)

	// Two quick writes should coalesce into one re-import.
	for i := 0; i < 2; i++ {
		if err := os.WriteFile(filepath.Join(dir, "actions.py"), []byte("# edited"), 0o644); err != nil {
			t.Fatalf("failed to edit package: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-triggered:
		if got != dir {
			t.Errorf("re-import for %q, want %q", got, dir)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("re-import was not triggered")
	}

	// The debounce window has passed; no second trigger should be pending.
	select {
	case got := <-triggered:
		t.Errorf("unexpected extra re-import for %q", got)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWatchIgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan string, 8)
	w := New(zerolog.Nop(), 50*time.Millisecond)

	go func() {
		_ = w.Watch(ctx, []string{dir}, func(_ context.Context, packageDir string) error {
			triggered <- packageDir
			return nil
		})
	}()

	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write hidden file: %v", err)
	}

	select {
	case got := <-triggered:
		t.Errorf("hidden file change triggered re-import for %q", got)
	case <-time.After(400 * time.Millisecond):
	}
}
