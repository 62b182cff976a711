package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// touch creates an empty file named name inside dir.
func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", name, err)
	}
}

func countMarkers(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if _, ok := KeyFromName(e.Name()); ok {
			n++
		}
	}
	return n
}

func TestKeyFromName(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"alice.lock", "alice", true},
		{"bob.smith.lock", "bob.smith", true},
		{".lock", "", false},
		{"alice.lck", "", false},
		{"alice", "", false},
		{"alice.lock.tmp", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := KeyFromName(tc.name)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("KeyFromName(%q): got (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestExists_ReflectsLastRefreshOnly(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, time.Hour)

	touch(t, dir, "alice.lock")
	if r.Exists("alice") {
		t.Fatal("Exists(alice) before any refresh: got true, want false")
	}

	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !r.Exists("alice") {
		t.Fatal("Exists(alice) after refresh: got false, want true")
	}

	// A new marker is invisible until the next refresh.
	touch(t, dir, "bob.lock")
	if r.Exists("bob") {
		t.Error("Exists(bob) before second refresh: got true, want false")
	}

	// A removed marker stays visible until the next refresh.
	if err := os.Remove(filepath.Join(dir, "alice.lock")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !r.Exists("alice") {
		t.Error("Exists(alice) after removal, before refresh: got false, want true")
	}

	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if r.Exists("alice") {
		t.Error("Exists(alice) after second refresh: got true, want false")
	}
	if !r.Exists("bob") {
		t.Error("Exists(bob) after second refresh: got false, want true")
	}
}

func TestRefresh_IgnoresNonMarkers(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "alice.lock")
	touch(t, dir, "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "nested.lock"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := New(dir, time.Hour)
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	keys := r.Keys()
	if len(keys) != 1 || keys[0] != "alice" {
		t.Errorf("Keys: got %v, want [alice]", keys)
	}
	if r.Len() != 1 {
		t.Errorf("Len: got %d, want 1", r.Len())
	}
}

func TestRefresh_MissingDirIsRecreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lock_files")
	r := New(dir, time.Hour)

	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh on missing dir: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("lock dir not recreated: %v", err)
	}
}

func TestRefresh_ErrorKeepsPreviousCache(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "locks")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	touch(t, dir, "alice.lock")

	r := New(dir, time.Hour)
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Replace the directory with a regular file so listing fails.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	touch(t, base, "locks")

	if err := r.Refresh(); err == nil {
		t.Fatal("Refresh on non-directory: expected error, got nil")
	}
	if !r.Exists("alice") {
		t.Error("previous cache lost after failed refresh")
	}
}

func TestRefresh_StampsTimeAndCount(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := New(t.TempDir(), time.Hour)
	r.now = func() time.Time { return fixed }

	if !r.LastRefresh().IsZero() {
		t.Fatal("LastRefresh before refresh: want zero")
	}
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !r.LastRefresh().Equal(fixed) {
		t.Errorf("LastRefresh: got %v, want %v", r.LastRefresh(), fixed)
	}
	if r.Refreshes() != 1 {
		t.Errorf("Refreshes: got %d, want 1", r.Refreshes())
	}
}

func TestSweep_RemovesAllMarkers(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "alice.lock")
	touch(t, dir, "bob.lock")
	touch(t, dir, "keep.txt")

	r := New(dir, time.Hour)
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	n, err := r.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("Sweep removed: got %d, want 2", n)
	}
	if got := countMarkers(t, dir); got != 0 {
		t.Errorf("markers after sweep: got %d, want 0", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Errorf("non-marker file removed by sweep: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("cache after sweep: got %d keys, want 0", r.Len())
	}
}

func TestSweep_MissingDir(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "absent"), time.Hour)
	n, err := r.Sweep()
	if err != nil || n != 0 {
		t.Errorf("Sweep on missing dir: got (%d, %v), want (0, nil)", n, err)
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, time.Hour)

	ok, err := r.Acquire("alice")
	if err != nil || !ok {
		t.Fatalf("first Acquire: got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = r.Acquire("alice")
	if err != nil || ok {
		t.Fatalf("second Acquire: got (%v, %v), want (false, nil)", ok, err)
	}
	if !r.Held("alice") {
		t.Error("Held(alice): got false, want true")
	}
	if r.Exists("alice") {
		t.Error("Exists(alice) before refresh: got true, want false")
	}

	if err := r.Release("alice"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := r.Release("alice"); err != nil {
		t.Errorf("Release of missing marker: %v", err)
	}
	if r.Held("alice") {
		t.Error("Held(alice) after release: got true, want false")
	}
}

func TestAcquire_RejectsInvalidKeys(t *testing.T) {
	r := New(t.TempDir(), time.Hour)
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if _, err := r.Acquire(key); err == nil {
			t.Errorf("Acquire(%q): expected error, got nil", key)
		}
	}
}

func TestRun_RefreshesOnInterval(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	touch(t, dir, "carol.lock")
	deadline := time.Now().Add(2 * time.Second)
	for !r.Exists("carol") {
		if time.Now().After(deadline) {
			t.Fatal("Run did not pick up new marker")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestStart_OnlyOnce(t *testing.T) {
	r := New(t.TempDir(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx)
	r.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for r.Refreshes() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Start did not run an initial refresh")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// A second Run would have refreshed a second time immediately.
	time.Sleep(50 * time.Millisecond)
	if got := r.Refreshes(); got != 1 {
		t.Errorf("Refreshes after double Start: got %d, want 1", got)
	}
	cancel()
	// Let the Run goroutine observe cancellation before goleak checks.
	time.Sleep(20 * time.Millisecond)
}
