package status

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/autorecord/autorecord/internal/liveset"
	"github.com/autorecord/autorecord/internal/lockfile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type lockSet map[string]bool

func (s lockSet) Exists(k string) bool { return s[k] }
func (s lockSet) Len() int             { return len(s) }

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestReconcile_MarksRecordingEntities(t *testing.T) {
	snap := liveset.Snapshot{
		{Username: "alice", ProfilePicture: "http://img/alice.png"},
		{Username: "bob"},
	}

	got := Reconcile(snap, lockSet{"alice": true}, 1, epoch)

	want := View{
		Rows: []Row{
			{Username: "alice", ImageURL: "http://img/alice.png", Recording: true},
			{Username: "bob", Recording: false},
		},
		LiveCount:      2,
		RecordingCount: 1,
		GeneratedAt:    epoch,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		snap      liveset.Snapshot
		locks     lockSet
		wantRows  []Row
		wantCount int
	}{
		{
			name:     "empty snapshot",
			snap:     nil,
			locks:    lockSet{"carol": true},
			wantRows: []Row{},
			// Stale markers still count: the header reports the lock cache.
			wantCount: 1,
		},
		{
			name:      "no locks",
			snap:      liveset.Snapshot{{Username: "alice"}},
			locks:     lockSet{},
			wantRows:  []Row{{Username: "alice"}},
			wantCount: 0,
		},
		{
			name:  "order preserved",
			snap:  liveset.Snapshot{{Username: "zed"}, {Username: "amy"}, {Username: "max"}},
			locks: lockSet{"max": true, "zed": true},
			wantRows: []Row{
				{Username: "zed", Recording: true},
				{Username: "amy"},
				{Username: "max", Recording: true},
			},
			wantCount: 2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Reconcile(tc.snap, tc.locks, tc.locks.Len(), epoch)
			if diff := cmp.Diff(tc.wantRows, v.Rows); diff != "" {
				t.Errorf("rows (-want +got):\n%s", diff)
			}
			if v.LiveCount != len(tc.wantRows) {
				t.Errorf("LiveCount: got %d, want %d", v.LiveCount, len(tc.wantRows))
			}
			if v.RecordingCount != tc.wantCount {
				t.Errorf("RecordingCount: got %d, want %d", v.RecordingCount, tc.wantCount)
			}
		})
	}
}

func TestView_Recording(t *testing.T) {
	v := View{Rows: []Row{{Username: "a", Recording: true}, {Username: "b"}, {Username: "c", Recording: true}}}
	got := v.Recording()
	if len(got) != 2 || got[0].Username != "a" || got[1].Username != "c" {
		t.Errorf("Recording: got %+v", got)
	}
}

func writeLive(t *testing.T, path string, snap liveset.Snapshot) {
	t.Helper()
	if err := liveset.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
}

func TestRefresher_CycleUsesCachedLocksOnly(t *testing.T) {
	base := t.TempDir()
	livePath := filepath.Join(base, "live_users.json")
	lockDir := filepath.Join(base, "lock_files")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		t.Fatal(err)
	}

	reg := lockfile.New(lockDir, time.Hour)
	if err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	writeLive(t, livePath, liveset.Snapshot{{Username: "alice"}, {Username: "bob"}})
	if _, err := reg.Acquire("alice"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	r := NewRefresher(livePath, reg, nil, time.Second)
	v := r.Cycle()
	if v.Rows[0].Recording {
		t.Error("alice recording before lock refresh; cycle must not refresh the registry")
	}

	if err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	v = r.Cycle()
	want := []Row{{Username: "alice", Recording: true}, {Username: "bob"}}
	if diff := cmp.Diff(want, v.Rows); diff != "" {
		t.Errorf("rows after refresh (-want +got):\n%s", diff)
	}
	if v.RecordingCount != 1 {
		t.Errorf("RecordingCount: got %d, want 1", v.RecordingCount)
	}
}

func TestRefresher_CycleRequestsImages(t *testing.T) {
	livePath := filepath.Join(t.TempDir(), "live_users.json")
	writeLive(t, livePath, liveset.Snapshot{
		{Username: "alice", ProfilePicture: "http://img/a"},
		{Username: "bob"},
		{Username: "carol", ProfilePicture: "http://img/c"},
	})

	var requested []string
	r := NewRefresher(livePath, lockSet{}, ImageRequesterFunc(func(url string) {
		requested = append(requested, url)
	}), time.Second)
	r.Cycle()

	if diff := cmp.Diff([]string{"http://img/a", "http://img/c"}, requested); diff != "" {
		t.Errorf("requested (-want +got):\n%s", diff)
	}
}

func TestRefresher_MissingOrMalformedFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"username": "al`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{filepath.Join(dir, "missing.json"), bad} {
		v := NewRefresher(p, lockSet{}, nil, time.Second).Cycle()
		if len(v.Rows) != 0 || v.LiveCount != 0 {
			t.Errorf("%s: got %+v, want empty view", filepath.Base(p), v)
		}
	}
}

func TestRefresher_RunPublishesUntilCancelled(t *testing.T) {
	livePath := filepath.Join(t.TempDir(), "live_users.json")
	writeLive(t, livePath, liveset.Snapshot{{Username: "alice"}})

	r := NewRefresher(livePath, lockSet{}, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	count := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, func(v View) {
			mu.Lock()
			count++
			n := count
			mu.Unlock()
			if n == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		cancel()
		<-done
		t.Fatal("Run did not publish three cycles")
	}
	mu.Lock()
	defer mu.Unlock()
	if count < 3 {
		t.Errorf("publish count: got %d, want >= 3", count)
	}
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	v, ok := b.Current()
	if ok {
		t.Error("Current before Publish: ok = true")
	}
	if v.Rows == nil {
		t.Error("Current before Publish: Rows is nil")
	}

	b.now = func() time.Time { return epoch }
	b.Publish(View{Rows: []Row{{Username: "alice"}}, LiveCount: 1})

	v, ok = b.Current()
	if !ok || v.LiveCount != 1 {
		t.Errorf("Current: got %+v, %v", v, ok)
	}
	if !b.UpdatedAt().Equal(epoch) {
		t.Errorf("UpdatedAt: got %v, want %v", b.UpdatedAt(), epoch)
	}
}
