package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/httpx"
	"github.com/autorecord/autorecord/internal/liveset"
)

const maxParallel = 8

var errNoStream = errors.New("no stream url in response")

type streamResponse struct {
	StreamURL string `json:"stream_url"`
}

// Resolver maps live users to stream URLs.
type Resolver struct {
	client    *http.Client
	endpoint  string
	interval  time.Duration
	livePath  string
	linksPath string

	cycles   atomic.Uint64
	failures atomic.Uint64
}

// New creates a Resolver reading livePath and writing linksPath.
func New(cfg config.EndpointConfig, livePath, linksPath string) *Resolver {
	return &Resolver{
		client:    httpx.NewClient(cfg.Auth, cfg.Timeout),
		endpoint:  cfg.Endpoint,
		interval:  cfg.Interval,
		livePath:  livePath,
		linksPath: linksPath,
	}
}

// Cycles returns how many cycles have completed.
func (r *Resolver) Cycles() uint64 { return r.cycles.Load() }

// Failures returns how many resolutions have failed.
func (r *Resolver) Failures() uint64 { return r.failures.Load() }

// Resolve returns the stream URL for username.
func (r *Resolver) Resolve(ctx context.Context, username string) (string, error) {
	var resp streamResponse
	if err := httpx.GetJSON(ctx, r.client, httpx.Expand(r.endpoint, username), &resp); err != nil {
		return "", fmt.Errorf("resolve %q: %w", username, err)
	}
	if resp.StreamURL == "" {
		return "", fmt.Errorf("resolve %q: %w", username, errNoStream)
	}
	return resp.StreamURL, nil
}

// Cycle resolves every live user and writes the links file. Users whose
// resolution fails are left out until a later cycle succeeds.
func (r *Resolver) Cycle(ctx context.Context) (liveset.Links, error) {
	snap := liveset.ReadSnapshot(r.livePath)

	var mu sync.Mutex
	links := make(liveset.Links, len(snap))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, e := range snap {
		e := e
		g.Go(func() error {
			link, err := r.Resolve(gctx, e.Username)
			if err != nil {
				r.failures.Add(1)
				slog.Warn("resolver: resolve failed", "user", e.Username, "err", err)
				return nil
			}
			mu.Lock()
			links[e.Username] = link
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := liveset.WriteLinks(r.linksPath, links); err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	r.cycles.Add(1)
	slog.Debug("resolver: cycle complete", "live", len(snap), "resolved", len(links))
	return links, nil
}

// Run performs a cycle immediately and then every interval until ctx is done.
func (r *Resolver) Run(ctx context.Context) error {
	slog.Info("resolver: started", "interval", r.interval)

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		if _, err := r.Cycle(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("resolver: cycle failed", "err", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("resolver: stopped")
			return nil
		case <-t.C:
		}
	}
}
