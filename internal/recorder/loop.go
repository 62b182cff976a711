package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autorecord/autorecord/internal/liveset"
	"github.com/autorecord/autorecord/internal/lockfile"
)

// TimeLayout formats the recording start time in output file names.
const TimeLayout = "2006-01-02_15-04-05"

var streamIDPattern = regexp.MustCompile(`stream-(\d+)_`)

// StreamID extracts the numeric stream id from a stream URL, or "unknownid".
func StreamID(url string) string {
	if m := streamIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return "unknownid"
}

// OutputPath returns videos/<user>/<user>_<start>.mkv.
func OutputPath(videosDir, user string, start time.Time) string {
	return filepath.Join(videosDir, user, user+"_"+start.Format(TimeLayout)+".mkv")
}

// FFmpegArgs returns the ffmpeg arguments that copy video, transcode audio to
// AAC and overwrite out.
func FFmpegArgs(link, out string) []string {
	return []string{"-i", link, "-c:v", "copy", "-c:a", "aac", "-y", out}
}

// CommandFunc builds the command for one recording.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// LoopConfig configures a Loop.
type LoopConfig struct {
	Locks        *lockfile.Registry
	LinksPath    string
	VideosDir    string
	FFmpeg       string
	PollInterval time.Duration
	SpawnDelay   time.Duration
}

// Loop records every stream listed in the links file that nobody else is
// recording.
type Loop struct {
	cfg     LoopConfig
	command CommandFunc
	now     func() time.Time

	wg       sync.WaitGroup
	active   atomic.Int64
	started  atomic.Uint64
	finished atomic.Uint64
}

// NewLoop creates a Loop.
func NewLoop(cfg LoopConfig) *Loop {
	return &Loop{
		cfg:     cfg,
		command: exec.CommandContext,
		now:     time.Now,
	}
}

// Active returns the number of recordings in progress.
func (l *Loop) Active() int { return int(l.active.Load()) }

// Started returns how many recordings have been started.
func (l *Loop) Started() uint64 { return l.started.Load() }

// Finished returns how many recordings have ended.
func (l *Loop) Finished() uint64 { return l.finished.Load() }

// Run clears stale markers, then polls the links file every poll interval
// until ctx is done. On return every ffmpeg started by the loop has exited.
func (l *Loop) Run(ctx context.Context) error {
	if n, err := l.cfg.Locks.Sweep(); err != nil {
		slog.Warn("recorder: clearing stale markers failed", "err", err)
	} else if n > 0 {
		slog.Info("recorder: cleared stale markers", "count", n)
	}
	for _, dir := range []string{l.cfg.Locks.Dir(), l.cfg.VideosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("recorder: create %s: %w", dir, err)
		}
	}
	defer l.wg.Wait()

	slog.Info("recorder: watching links", "path", l.cfg.LinksPath, "poll", l.cfg.PollInterval)
	for {
		if _, err := l.Poll(ctx); err != nil {
			slog.Warn("recorder: poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.cfg.PollInterval):
		}
	}
}

// Poll reads the links once and starts a recording for every user whose
// marker it can acquire. It returns the number of recordings started.
func (l *Loop) Poll(ctx context.Context) (int, error) {
	links, err := liveset.ReadLinks(l.cfg.LinksPath)
	if err != nil {
		return 0, err
	}

	users := make([]string, 0, len(links))
	for u := range links {
		users = append(users, u)
	}
	sort.Strings(users)

	started := 0
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		ok, err := l.cfg.Locks.Acquire(user)
		if err != nil {
			slog.Warn("recorder: cannot create marker", "user", user, "err", err)
			continue
		}
		if !ok {
			continue
		}

		l.start(ctx, user, links[user])
		started++

		select {
		case <-ctx.Done():
		case <-time.After(l.cfg.SpawnDelay):
		}
	}
	return started, nil
}

// start records one stream in the background and releases the marker when
// ffmpeg exits.
func (l *Loop) start(ctx context.Context, user, link string) {
	out := OutputPath(l.cfg.VideosDir, user, l.now())
	log := slog.With("user", user, "stream_id", StreamID(link))

	l.wg.Add(1)
	l.active.Add(1)
	l.started.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.active.Add(-1)
		defer l.finished.Add(1)
		defer func() {
			if err := l.cfg.Locks.Release(user); err != nil {
				log.Warn("recorder: release marker failed", "err", err)
			}
		}()

		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			log.Warn("recorder: create video dir failed", "err", err)
			return
		}

		log.Info("recorder: recording", "out", out)
		cmd := l.command(ctx, l.cfg.FFmpeg, FFmpegArgs(link, out)...)
		interruptOnCancel(cmd)
		if err := cmd.Run(); err != nil && ctx.Err() == nil {
			log.Warn("recorder: ffmpeg exited", "code", ExitCode(err), "err", err)
			return
		}
		log.Info("recorder: recording finished", "out", out)
	}()
}
