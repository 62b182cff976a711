package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autorecord/autorecord/internal/checker"
	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/lockfile"
	"github.com/autorecord/autorecord/internal/orchestrator"
	"github.com/autorecord/autorecord/internal/recorder"
	"github.com/autorecord/autorecord/internal/resolver"
)

type runOptions struct {
	headless bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the checker, resolver, recorder and status display",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if opts.headless {
				cfg.Headless = true
			}
			return runSession(cmd.Context(), cfg, g.configPath)
		},
	}

	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run without the terminal display and status server")
	cmd.Flags().BoolVar(&opts.headless, "nogui", false, "alias for --headless")

	return cmd
}

// runSession wires every component and hands them to the orchestrator.
func runSession(ctx context.Context, cfg *config.Config, configPath string) error {
	if cfg.Headless {
		if err := setupLogging(os.Stdout, cfg.LogLevel); err != nil {
			return err
		}
	} else {
		closeLog, err := setupFileLogging(filepath.Join(cfg.LogsDir(), "autorecord.log"), cfg.LogLevel)
		if err != nil {
			return err
		}
		defer closeLog() //nolint:errcheck
	}

	slog.Info("autorecord starting",
		"base_dir", cfg.BaseDir,
		"users", len(cfg.Users),
		"headless", cfg.Headless,
	)

	locks := lockfile.New(cfg.LockDir(), cfg.LockRefreshInterval)
	chk := checker.New(cfg.Checker, cfg.LiveUsersPath(), cfg.Users)
	res := resolver.New(cfg.Resolver, cfg.LiveUsersPath(), cfg.StreamLinksPath())

	runner, err := recorderRunner(cfg)
	if err != nil {
		return err
	}

	opts := orchestrator.Options{
		Dirs:     cfg.Dirs(),
		Locks:    locks,
		Checker:  endpointWorker("checker", cfg.Checker.Endpoint, chk),
		Resolver: endpointWorker("resolver", cfg.Resolver.Endpoint, res),
		Recorder: runner,
		Stagger:  cfg.StartupStagger,
	}
	if !cfg.Headless {
		opts.Display = newDisplay(cfg, locks)
	}

	if _, err := os.Stat(configPath); err == nil {
		go func() {
			if err := config.Watch(ctx, configPath, func(updated *config.Config) {
				chk.SetUsers(updated.Users)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	} else if !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("cannot watch config", "path", configPath, "err", err)
	}

	if err := orchestrator.New(opts).Run(ctx); err != nil {
		return err
	}
	slog.Info("autorecord shutting down")
	return nil
}

// recorderRunner builds the subprocess invocation. Without a configured
// executable the recorder is this binary's record subcommand, started in
// the base directory so its default relative paths resolve.
func recorderRunner(cfg *config.Config) (*recorder.Runner, error) {
	base, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}

	exe, args := cfg.Recorder.Executable, cfg.Recorder.Args
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate own executable: %w", err)
		}
		exe = self
		if len(args) == 0 {
			args = []string{
				"record",
				"--ffmpeg", cfg.Recorder.FFmpeg,
				"--poll", cfg.Recorder.PollInterval.String(),
				"--spawn-delay", cfg.Recorder.SpawnDelay.String(),
				"--log-level", cfg.LogLevel,
			}
		}
	}

	return &recorder.Runner{
		Executable: exe,
		Args:       args,
		Dir:        filepath.Dir(filepath.Join(base, config.LockDirName)),
		LogPath:    filepath.Join(base, config.LogsDirName, "recorder.log"),
	}, nil
}

// endpointWorker returns w, or an idle stand-in that only logs when no
// endpoint is configured.
func endpointWorker(name, endpoint string, w orchestrator.Runner) orchestrator.Runner {
	if endpoint != "" {
		return w
	}
	return orchestrator.RunFunc(func(ctx context.Context) error {
		slog.Warn(name+": no endpoint configured, idling", "worker", name)
		<-ctx.Done()
		return nil
	})
}
