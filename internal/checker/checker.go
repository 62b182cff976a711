package checker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/httpx"
	"github.com/autorecord/autorecord/internal/liveset"
)

// maxParallel bounds concurrent requests within one cycle.
const maxParallel = 8

// Status is the endpoint's answer for one user.
type Status struct {
	Live           bool   `json:"live"`
	ProfilePicture string `json:"profile_picture"`
}

// Checker polls liveness for a list of users.
// All exported methods are safe for concurrent use.
type Checker struct {
	client   *http.Client
	endpoint string
	interval time.Duration
	livePath string

	mu     sync.Mutex
	users  []string
	states map[string]Status

	cycles   atomic.Uint64
	failures atomic.Uint64
}

// New creates a Checker that writes the live set to livePath.
func New(cfg config.EndpointConfig, livePath string, users []string) *Checker {
	return &Checker{
		client:   httpx.NewClient(cfg.Auth, cfg.Timeout),
		endpoint: cfg.Endpoint,
		interval: cfg.Interval,
		livePath: livePath,
		users:    slices.Clone(users),
		states:   make(map[string]Status),
	}
}

// SetUsers replaces the watched users. State for removed users is dropped;
// the change takes effect on the next cycle.
func (c *Checker) SetUsers(users []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = slices.Clone(users)
	for u := range c.states {
		if !slices.Contains(c.users, u) {
			delete(c.states, u)
		}
	}
	slog.Info("checker: users updated", "count", len(users))
}

// Users returns a copy of the watched users.
func (c *Checker) Users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.users)
}

// Cycles returns how many cycles have completed.
func (c *Checker) Cycles() uint64 { return c.cycles.Load() }

// Failures returns how many individual checks have failed.
func (c *Checker) Failures() uint64 { return c.failures.Load() }

// Check queries the endpoint for one user.
func (c *Checker) Check(ctx context.Context, username string) (Status, error) {
	var st Status
	if err := httpx.GetJSON(ctx, c.client, httpx.Expand(c.endpoint, username), &st); err != nil {
		return Status{}, fmt.Errorf("check %q: %w", username, err)
	}
	return st, nil
}

// Cycle checks every user and writes the resulting live set.
func (c *Checker) Cycle(ctx context.Context) (liveset.Snapshot, error) {
	users := c.Users()
	results := make([]Status, len(users))
	ok := make([]bool, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			st, err := c.Check(gctx, u)
			if err != nil {
				c.failures.Add(1)
				slog.Warn("checker: check failed, keeping previous state", "user", u, "err", err)
				return nil
			}
			results[i], ok[i] = st, true
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	c.mu.Lock()
	snap := make(liveset.Snapshot, 0, len(users))
	for i, u := range users {
		if ok[i] {
			c.states[u] = results[i]
		}
		st := c.states[u]
		if st.Live {
			snap = append(snap, liveset.Entity{Username: u, ProfilePicture: st.ProfilePicture})
		}
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := liveset.WriteSnapshot(c.livePath, snap); err != nil {
		return nil, fmt.Errorf("checker: %w", err)
	}
	c.cycles.Add(1)
	slog.Debug("checker: cycle complete", "users", len(users), "live", len(snap))
	return snap, nil
}

// Run performs a cycle immediately and then every interval until ctx is done.
// Write failures are logged and retried on the next cycle.
func (c *Checker) Run(ctx context.Context) error {
	slog.Info("checker: started", "users", len(c.Users()), "interval", c.interval)

	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		if _, err := c.Cycle(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("checker: cycle failed", "err", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("checker: stopped")
			return nil
		case <-t.C:
		}
	}
}
