// Package cmd provides the CLI commands for mindual.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/logging"
	"github.com/Aman-CERP/mindual/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the mindual CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mindual",
		Short: "Scanned product manuals as a searchable knowledge base",
		Long: `mindual turns scanned PDF product manuals into a searchable knowledge base.

Pages are rendered to images, transcribed with Gemini, stored in SQLite and
indexed for search. Questions are answered from the retrieved pages, from
the command line or over MCP.

  mindual init
  mindual ingest --pdf manuals/WM3900_2024-03-15.pdf
  mindual ask "필터는 어떻게 청소하나요?"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("mindual version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (also to stderr)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the rotating log file. The serve and logs
// commands manage logging themselves.
func startLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "serve" || cmd.Name() == "logs" {
		return nil
	}

	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("debug_logging_enabled",
		slog.String("log_file", cfg.FilePath),
		slog.String("command", cmd.Name()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints a failure the way users should
// see it: message, cause, hint and code.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, amerrors.FormatForCLI(err))
		if loggingCleanup != nil {
			slog.Error("command_failed", amerrors.LogAttrs(err)...)
			loggingCleanup()
			loggingCleanup = nil
		}
	}
	return err
}

// ExitCode maps a command error to the process exit status: 2 when the
// error is fatal (missing API key, unusable database schema), 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case amerrors.IsFatal(err):
		return 2
	default:
		return 1
	}
}
