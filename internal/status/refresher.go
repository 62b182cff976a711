package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/autorecord/autorecord/internal/liveset"
)

// LockSource is the read side of the lock registry.
type LockSource interface {
	LockChecker
	Len() int
}

// ImageRequester starts loading a picture. It must not block on the network.
type ImageRequester interface {
	Request(url string)
}

// ImageRequesterFunc adapts a function to ImageRequester.
type ImageRequesterFunc func(url string)

// Request calls f(url).
func (f ImageRequesterFunc) Request(url string) { f(url) }

// Refresher periodically rebuilds the View from the live-set file and the
// lock cache.
type Refresher struct {
	livePath string
	locks    LockSource
	images   ImageRequester
	interval time.Duration
	now      func() time.Time
}

// NewRefresher creates a Refresher. images may be nil.
func NewRefresher(livePath string, locks LockSource, images ImageRequester, interval time.Duration) *Refresher {
	return &Refresher{
		livePath: livePath,
		locks:    locks,
		images:   images,
		interval: interval,
		now:      time.Now,
	}
}

// Interval returns the time between cycles.
func (r *Refresher) Interval() time.Duration { return r.interval }

// Cycle performs one reconciliation.
func (r *Refresher) Cycle() View {
	snap := liveset.ReadSnapshot(r.livePath)
	v := Reconcile(snap, r.locks, r.locks.Len(), r.now())

	if r.images != nil {
		for _, row := range v.Rows {
			if row.ImageURL != "" {
				r.images.Request(row.ImageURL)
			}
		}
	}

	slog.Debug("status: cycle", "live", v.LiveCount, "recording", v.RecordingCount)
	return v
}

// Run publishes a cycle immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context, publish func(View)) {
	publish(r.Cycle())

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			publish(r.Cycle())
		}
	}
}
