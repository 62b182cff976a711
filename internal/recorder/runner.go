package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Runner launches the external recorder executable.
type Runner struct {
	Executable string
	Args       []string
	// Dir is the working directory, the parent of the lock directory.
	Dir string
	// LogPath receives the subprocess's stdout and stderr. Empty discards it.
	LogPath string
}

// Run starts the executable and blocks until it exits. A non-zero exit is
// returned as an error wrapping *exec.ExitError; see ExitCode.
func (r *Runner) Run(ctx context.Context) error {
	if r.Executable == "" {
		return fmt.Errorf("recorder: no executable configured")
	}

	cmd := exec.CommandContext(ctx, r.Executable, r.Args...)
	cmd.Dir = r.Dir
	interruptOnCancel(cmd)

	if r.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(r.LogPath), 0o755); err != nil {
			return fmt.Errorf("recorder: create log dir: %w", err)
		}
		f, err := os.OpenFile(r.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("recorder: open log: %w", err)
		}
		defer f.Close()
		cmd.Stdout = f
		cmd.Stderr = f
	}

	slog.Info("recorder: starting", "exe", r.Executable, "args", r.Args, "dir", r.Dir)
	start := time.Now()
	err := cmd.Run()
	slog.Info("recorder: exited", "code", ExitCode(err), "elapsed", time.Since(start).Round(time.Second))
	if err != nil {
		return fmt.Errorf("recorder: run %s: %w", r.Executable, err)
	}
	return nil
}

// stopGrace is how long a cancelled subprocess gets to exit after the
// interrupt before it is killed.
const stopGrace = 10 * time.Second

// interruptOnCancel makes context cancellation interrupt the process. It is
// killed only if it is still running stopGrace later.
func interruptOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace
}

// ExitCode extracts the process exit code from err: 0 for nil, the
// process's code for an *exec.ExitError and -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
