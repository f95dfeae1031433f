package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mindual/internal/output"
	"github.com/Aman-CERP/mindual/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the manual database",
		Long: `Create the manual database at database.path (DB_PATH) and print the
tables it contains. Running it again on an existing database is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			st, err := store.OpenSQLite(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			objects, err := st.SchemaObjects(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("database_initialized",
				slog.String("path", cfg.Database.Path),
				slog.Int("objects", len(objects)))

			out.Successf("Database ready: %s", cfg.Database.Path)
			for _, name := range objects {
				out.Status("", name)
			}
			if len(objects) == 0 {
				return fmt.Errorf("schema was not created in %s", cfg.Database.Path)
			}
			return nil
		},
	}
}
