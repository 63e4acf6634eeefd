package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
}

func (r *recorder) Ingest(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested = append(r.ingested, path)
	return nil
}

func (r *recorder) Remove(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

func (r *recorder) snapshot() (ingested, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ingested...), append([]string(nil), r.removed...)
}

func txtOnly(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".txt")
}

func contains(list []string, want string) bool {
	for _, p := range list {
		if p == want {
			return true
		}
	}
	return false
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startInbox(t *testing.T, root string, rec *recorder) *Inbox {
	t.Helper()
	in := New(root, txtOnly, rec, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(in.Stop)
	return in
}

func TestInbox_ingestsNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startInbox(t, dir, rec)

	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		ingested, _ := rec.snapshot()
		return contains(ingested, path)
	})
	if !ok {
		t.Fatalf("expected %s to be ingested", path)
	}
}

func TestInbox_debouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	in := New(dir, txtOnly, rec, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	path := filepath.Join(dir, "draft.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !waitFor(t, func() bool { ingested, _ := rec.snapshot(); return len(ingested) > 0 }) {
		t.Fatal("expected an ingest after writes settled")
	}
	time.Sleep(300 * time.Millisecond)
	if ingested, _ := rec.snapshot(); len(ingested) != 1 {
		t.Errorf("expected a single debounced ingest, got %v", ingested)
	}
}

func TestInbox_ignoresFilteredExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startInbox(t, dir, rec)

	if err := os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	kept := filepath.Join(dir, "kept.txt")
	if err := os.WriteFile(kept, []byte("ok"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { ingested, _ := rec.snapshot(); return contains(ingested, kept) }) {
		t.Fatal("expected kept.txt to be ingested")
	}
	ingested, _ := rec.snapshot()
	for _, p := range ingested {
		if filepath.Ext(p) == ".png" {
			t.Errorf("filtered file was ingested: %s", p)
		}
	}
}

func TestInbox_removesDeletedFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startInbox(t, dir, rec)

	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("bye"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { ingested, _ := rec.snapshot(); return contains(ingested, path) }) {
		t.Fatal("expected gone.txt to be ingested first")
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { _, removed := rec.snapshot(); return contains(removed, path) }) {
		t.Fatal("expected gone.txt to be removed")
	}
}

func TestInbox_watchesNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startInbox(t, dir, rec)

	sub := filepath.Join(dir, "course")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "week1.txt")
	if err := os.WriteFile(path, []byte("intro"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { ingested, _ := rec.snapshot(); return contains(ingested, path) }) {
		t.Fatalf("expected %s to be ingested", path)
	}
}

func TestInbox_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "nested")
	rec := &recorder{}
	startInbox(t, root, rec)
	info, err := os.Stat(root)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("root should be a directory")
	}
}

func TestInbox_Sync(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	in := startInbox(t, dir, rec)
	in.Sync()

	if !waitFor(t, func() bool { ingested, _ := rec.snapshot(); return contains(ingested, existing) }) {
		t.Fatal("expected existing.txt to be ingested by Sync")
	}
	ingested, _ := rec.snapshot()
	if len(ingested) != 1 {
		t.Errorf("expected only existing.txt, got %v", ingested)
	}
}

func TestInbox_StopIsIdempotent(t *testing.T) {
	rec := &recorder{}
	in := New(t.TempDir(), nil, rec)
	if err := in.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	in.Stop()
	in.Stop()
}

func TestInDir(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "inbox")
	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a.txt"), true},
		{filepath.Join(root, "sub", "b.txt"), true},
		{filepath.Join(string(filepath.Separator), "srv", "other", "c.txt"), false},
		{filepath.Join(string(filepath.Separator), "srv", "inbox2", "d.txt"), false},
		{filepath.Join(root, "..dotted"), true},
	}
	for _, tt := range tests {
		if got := inDir(root, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}
