// Package cli defines the autorecord command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/version"
)

// DefaultConfigPath is used when --config is not given. It may be absent.
const DefaultConfigPath = "autorecord.yaml"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	baseDir    string
	logLevel   string
}

// NewRootCmd builds the command tree. Running the root command is the same
// as "autorecord run".
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	run := newRunCmd(opts)

	rootCmd := &cobra.Command{
		Use:           "autorecord",
		Short:         "Watch streamers, record their live streams, show who is recording",
		Long:          "autorecord polls a set of users for liveness, resolves their stream links, records live streams with ffmpeg and shows a live status display.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run.RunE,
	}
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", DefaultConfigPath, "path to config file")
	pf.StringVar(&opts.baseDir, "base-dir", "", "override base_dir (root of lock_files/, json/, videos/, logs/)")
	pf.StringVar(&opts.logLevel, "log-level", "", "override log_level (debug|info|warn|error)")

	// The root command runs the orchestrator too, so it takes run's flags.
	rootCmd.Flags().AddFlagSet(run.Flags())

	rootCmd.AddCommand(run)
	rootCmd.AddCommand(newRecordCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads the config file and applies flag overrides. A missing
// file is only an error when --config was given explicitly.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.Load(opts.configPath, !explicit)
	if err != nil {
		return nil, err
	}
	if opts.baseDir != "" {
		cfg.BaseDir = opts.baseDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}
