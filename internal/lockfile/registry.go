package lockfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Suffix is appended to an entity key to form its marker file name.
const Suffix = ".lock"

// Registry caches the set of lock markers present in a directory.
// All exported methods are safe for concurrent use.
type Registry struct {
	dir      string
	interval time.Duration

	mu        sync.RWMutex
	keys      map[string]struct{}
	refreshed time.Time

	refreshes atomic.Uint64
	startOnce sync.Once
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Registry over dir that refreshes every interval once started.
// The cache starts empty.
func New(dir string, interval time.Duration) *Registry {
	return &Registry{
		dir:      dir,
		interval: interval,
		keys:     make(map[string]struct{}),
		now:      time.Now,
	}
}

// Dir returns the lock directory.
func (r *Registry) Dir() string { return r.dir }

// Interval returns the refresh interval.
func (r *Registry) Interval() time.Duration { return r.interval }

// MarkerPath returns the marker file path for key.
func (r *Registry) MarkerPath(key string) string {
	return filepath.Join(r.dir, key+Suffix)
}

// KeyFromName derives the entity key from a marker file name. It reports
// false for names that are not markers.
func KeyFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, Suffix) {
		return "", false
	}
	key := strings.TrimSuffix(name, Suffix)
	if key == "" {
		return "", false
	}
	return key, true
}

// Exists reports whether key was marked as recording at the last refresh.
func (r *Registry) Exists(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keys[key]
	return ok
}

// Keys returns a sorted copy of the cached keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.keys))
	for k := range r.keys {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of cached keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// LastRefresh returns when the cache was last rebuilt; zero before the first refresh.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshed
}

// Refreshes returns the number of completed refreshes.
func (r *Registry) Refreshes() uint64 { return r.refreshes.Load() }

// Refresh rebuilds the cache from the lock directory. A missing directory is
// recreated and yields an empty set. On any other listing error the previous
// cache is kept and the error returned.
func (r *Registry) Refresh() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("lockfile: list %s: %w", r.dir, err)
		}
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return fmt.Errorf("lockfile: create %s: %w", r.dir, err)
		}
		entries = nil
	}

	next := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := KeyFromName(e.Name()); ok {
			next[key] = struct{}{}
		}
	}

	r.mu.Lock()
	r.keys = next
	r.refreshed = r.now()
	r.mu.Unlock()
	r.refreshes.Add(1)
	return nil
}

// Sweep removes every marker in the lock directory and returns how many were
// deleted. Markers that vanish concurrently are not errors. The cache is
// cleared as well.
func (r *Registry) Sweep() (int, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lockfile: list %s: %w", r.dir, err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := KeyFromName(e.Name()); !ok {
			continue
		}
		err := os.Remove(filepath.Join(r.dir, e.Name()))
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	r.keys = make(map[string]struct{})
	r.mu.Unlock()

	if len(errs) > 0 {
		return removed, fmt.Errorf("lockfile: sweep: %w", errors.Join(errs...))
	}
	return removed, nil
}

// Acquire creates the marker for key. It returns false without error when
// the marker already exists. The cache is not touched; the new marker
// becomes visible at the next refresh.
func (r *Registry) Acquire(key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	f, err := os.OpenFile(r.MarkerPath(key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lockfile: acquire %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("lockfile: acquire %q: %w", key, err)
	}
	return true, nil
}

// Release removes the marker for key. A missing marker is not an error.
func (r *Registry) Release(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(r.MarkerPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("lockfile: release %q: %w", key, err)
	}
	return nil
}

// Held reports whether the marker for key exists on disk right now. Only the
// recorder should need this; observers use Exists.
func (r *Registry) Held(key string) bool {
	_, err := os.Stat(r.MarkerPath(key))
	return err == nil
}

// Start launches Run in a goroutine the first time it is called.
func (r *Registry) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.Run(ctx)
	})
}

// Run refreshes the cache immediately and then every interval. Failed
// refreshes are logged and retried on the next tick. Run blocks until ctx
// is cancelled.
func (r *Registry) Run(ctx context.Context) {
	r.refreshLogged()

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.refreshLogged()
		}
	}
}

func (r *Registry) refreshLogged() {
	if err := r.Refresh(); err != nil {
		slog.Warn("lockfile: refresh failed, keeping previous cache", "dir", r.dir, "err", err)
		return
	}
	slog.Debug("lockfile: cache refreshed", "dir", r.dir, "recording", r.Len())
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("lockfile: invalid key %q", key)
	}
	return nil
}
