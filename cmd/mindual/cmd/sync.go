package cmd

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mindual/internal/output"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Index chunks missing from the search indexes",
		Long: `Add every stored chunk that the configured search indexes do not yet
contain. Entries already indexed are left alone, so sync can be run at any
time; use 'mindual status --repair' to also remove stale entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.sync.Sync(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Synced %d entries in %s", res.Total(), res.Duration.Round(time.Millisecond))
			names := make([]string, 0, len(res.Added))
			for name := range res.Added {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				out.Statusf("", "%s: +%d", name, res.Added[name])
			}
			return nil
		},
	}
}
