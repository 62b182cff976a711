package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/lockfile"
	"github.com/autorecord/autorecord/internal/recorder"
)

type recordOptions struct {
	lockDir    string
	linksPath  string
	videosDir  string
	ffmpeg     string
	poll       time.Duration
	spawnDelay time.Duration
}

// newRecordCmd is the recorder executable the orchestrator launches by
// default. Its paths default to the layout below the working directory.
func newRecordCmd(g *globalOptions) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record every stream listed in the stream links file",
		Long: "record polls json/stream_links.json, claims each user by creating lock_files/<user>.lock, " +
			"records the stream with ffmpeg into videos/<user>/ and removes the lock when ffmpeg exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := config.DefaultLogLevel
			if g.logLevel != "" {
				level = g.logLevel
			}
			if err := setupLogging(os.Stdout, level); err != nil {
				return err
			}

			loop := recorder.NewLoop(recorder.LoopConfig{
				// The registry's cache is unused here; the loop only
				// acquires, releases and sweeps.
				Locks:        lockfile.New(opts.lockDir, config.DefaultLockRefreshInterval),
				LinksPath:    opts.linksPath,
				VideosDir:    opts.videosDir,
				FFmpeg:       opts.ffmpeg,
				PollInterval: opts.poll,
				SpawnDelay:   opts.spawnDelay,
			})
			return loop.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.lockDir, "lock-dir", config.LockDirName, "lock marker directory")
	f.StringVar(&opts.linksPath, "links", config.JSONDirName+"/"+config.StreamLinksFile, "stream links file")
	f.StringVar(&opts.videosDir, "videos-dir", config.VideosDirName, "recording output directory")
	f.StringVar(&opts.ffmpeg, "ffmpeg", config.DefaultFFmpeg, "ffmpeg executable")
	f.DurationVar(&opts.poll, "poll", config.DefaultRecorderPoll, "how often to re-read the links file")
	f.DurationVar(&opts.spawnDelay, "spawn-delay", config.DefaultSpawnDelay, "pause between two recording starts")

	return cmd
}
