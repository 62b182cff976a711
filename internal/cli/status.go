package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/autorecord/autorecord/internal/api"
	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/lockfile"
	"github.com/autorecord/autorecord/internal/status"
)

func newStatusCmd(g *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print who is live and who is being recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			v, err := snapshotView(cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeStatusJSON(cmd.OutOrStdout(), v)
			}
			return writeStatusTable(cmd.OutOrStdout(), v)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON in the status API format")
	return cmd
}

// snapshotView refreshes the lock cache once and reconciles it with the
// live set on disk.
func snapshotView(cfg *config.Config) (status.View, error) {
	locks := lockfile.New(cfg.LockDir(), cfg.LockRefreshInterval)
	if err := locks.Refresh(); err != nil {
		return status.View{}, err
	}
	return status.NewRefresher(cfg.LiveUsersPath(), locks, nil, cfg.StatusRefreshInterval).Cycle(), nil
}

func writeStatusJSON(w io.Writer, v status.View) error {
	b := status.NewBoard()
	b.Publish(v)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.BuildStatus(b))
}

func writeStatusTable(w io.Writer, v status.View) error {
	if _, err := fmt.Fprintf(w, "Currently Recording: %d/%d\n", v.RecordingCount, v.LiveCount); err != nil {
		return err
	}
	if len(v.Rows) == 0 {
		_, err := fmt.Fprintln(w, "Nobody is live.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("USER", "RECORDING")
	for _, r := range v.Rows {
		rec := ""
		if r.Recording {
			rec = "■ Recording"
		}
		t.Row(r.Username, rec)
	}
	_, err := fmt.Fprintln(w, t)
	return err
}
