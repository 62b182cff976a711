package tui

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/autorecord/autorecord/internal/avatar"
	"github.com/autorecord/autorecord/internal/status"
)

// Config configures the display.
type Config struct {
	LivePath    string
	Locks       status.LockSource
	Interval    time.Duration
	AvatarSize  int
	ImageClient *http.Client
	// Publish, if set, receives every view after the display has it.
	Publish func(status.View)
	// ProgramOptions are passed to tea.NewProgram after the defaults.
	ProgramOptions []tea.ProgramOption
}

// Program is a running status display.
type Program struct {
	prog  *tea.Program
	cache *avatar.Cache
}

// loopDispatcher delivers functions to the program's Update.
type loopDispatcher struct {
	mu   sync.Mutex
	prog *tea.Program
}

func (d *loopDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	p := d.prog
	d.mu.Unlock()
	if p == nil {
		return
	}
	// Send blocks until Update accepts the message and returns at once
	// after the program has exited.
	p.Send(dispatchMsg(fn))
}

// New builds the display. Call Run to start it.
func New(cfg Config) *Program {
	disp := &loopDispatcher{}
	cache := avatar.New(cfg.ImageClient, cfg.AvatarSize, disp)

	avatars := make(map[string]*image.NRGBA)
	images := status.ImageRequesterFunc(func(url string) {
		cache.Fetch(url, func(img *image.NRGBA) { avatars[url] = img })
	})
	refresher := status.NewRefresher(cfg.LivePath, cfg.Locks, images, cfg.Interval)

	model := NewModel(refresher, cfg.Interval, avatars, cfg.Publish)
	opts := append([]tea.ProgramOption{tea.WithAltScreen()}, cfg.ProgramOptions...)
	prog := tea.NewProgram(model, opts...)

	disp.mu.Lock()
	disp.prog = prog
	disp.mu.Unlock()

	return &Program{prog: prog, cache: cache}
}

// Cache returns the display's image cache.
func (p *Program) Cache() *avatar.Cache { return p.cache }

// Run shows the display until the user quits or ctx is done. Quitting the
// display does not stop anything else.
func (p *Program) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.prog.Quit()
		case <-done:
		}
	}()

	slog.Info("tui: started")
	_, err := p.prog.Run()
	p.cache.Wait()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	slog.Info("tui: closed")
	return nil
}
