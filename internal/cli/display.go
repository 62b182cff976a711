package cli

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/autorecord/autorecord/internal/api"
	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/httpx"
	"github.com/autorecord/autorecord/internal/lockfile"
	"github.com/autorecord/autorecord/internal/metrics"
	"github.com/autorecord/autorecord/internal/orchestrator"
	"github.com/autorecord/autorecord/internal/status"
	"github.com/autorecord/autorecord/internal/tui"
	"github.com/autorecord/autorecord/internal/ws"
)

// newDisplay returns the display runner: the terminal UI plus, when
// display.http_listen is set, the status API and WebSocket stream. The lock
// registry's refresh loop is started by the display, its only reader.
func newDisplay(cfg *config.Config, locks *lockfile.Registry) orchestrator.Runner {
	board := status.NewBoard()

	var hub *ws.Hub
	if cfg.Display.HTTPListen != "" {
		hub = ws.New(board, cfg.StatusRefreshInterval)
	}

	prog := tui.New(tui.Config{
		LivePath:    cfg.LiveUsersPath(),
		Locks:       locks,
		Interval:    cfg.StatusRefreshInterval,
		AvatarSize:  cfg.Display.AvatarSize,
		ImageClient: httpx.NewClient(config.AuthConfig{}, cfg.Display.ImageTimeout),
		Publish: func(v status.View) {
			board.Publish(v)
			if hub != nil {
				hub.Notify()
			}
		},
	})

	return orchestrator.RunFunc(func(ctx context.Context) error {
		locks.Start(ctx)

		var g errgroup.Group
		g.Go(func() error { return prog.Run(ctx) })

		if hub != nil {
			mux := http.NewServeMux()
			mux.Handle("/api/", api.New(api.Deps{View: board, Locks: locks, Avatars: prog.Cache()}))
			mux.Handle("/ws/stream", hub)
			mux.Handle("/metrics", metrics.Handler(metrics.Sources{View: board, Locks: locks, Avatars: prog.Cache()}))

			g.Go(func() error {
				hub.Run(ctx)
				return nil
			})
			g.Go(func() error { return api.Serve(ctx, cfg.Display.HTTPListen, mux) })
		}
		return g.Wait()
	})
}
