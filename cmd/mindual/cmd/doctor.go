package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mindual/internal/config"
	amerrors "github.com/Aman-CERP/mindual/internal/errors"
	"github.com/Aman-CERP/mindual/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment ingestion and search depend on",
		Long: `Run system diagnostics before ingesting manuals.

Required (the command fails without them):
  - Disk space under the data directory (100MB minimum)
  - Write permissions in the data directory
  - File descriptor limit (1024 minimum)

Warnings:
  - pdftoppm on PATH (OCR ingestion)
  - GEMINI_API_KEY (OCR, answers, gemini embeddings)
  - SQLite database present`,
		Example: `  # Run diagnostics
  mindual doctor

  # JSON output for scripting
  mindual doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// doctorReport is the --json output.
type doctorReport struct {
	Status   string        `json:"status"`
	Checks   []doctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), preflightTarget(cfg))

	if jsonOutput {
		if err := writeJSON(cmd, toDoctorReport(checker, results)); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if age := preflight.MarkerAge(cfg.Ingest.DataDir); age > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\nLast successful check: %s ago\n", formatAge(age))
		}
	}

	if checker.HasCriticalFailures(results) {
		// serve and ingest must check again before trusting this host.
		if err := preflight.ClearMarker(cfg.Ingest.DataDir); err != nil {
			slog.Warn("preflight_marker_clear_failed", slog.String("error", err.Error()))
		}
		return amerrors.New(amerrors.ErrCodeInternal, "system check failed", nil).
			WithSuggestion("Fix the FAIL items above and run 'mindual doctor' again.")
	}
	if err := preflight.MarkPassed(cfg.Ingest.DataDir); err != nil {
		cmd.PrintErrf("Warning: could not record the check: %v\n", err)
	}
	return nil
}

func preflightTarget(cfg *config.Config) preflight.Target {
	return preflight.Target{
		DataDir:      cfg.Ingest.DataDir,
		DatabasePath: cfg.Database.Path,
		APIKeySet:    cfg.Gemini.APIKey != "",
	}
}

// ensurePreflight runs the system checks silently the first time a data
// directory is used, and again after a failed 'mindual doctor'. Results
// go to the log file only, since serve owns stdout.
func ensurePreflight(ctx context.Context, t preflight.Target, skip bool) error {
	if skip || !preflight.NeedsCheck(t.DataDir) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	results := checker.RunAll(ctx, t)
	if checker.HasCriticalFailures(results) {
		for _, r := range results {
			if r.IsCritical() {
				slog.Error("preflight_check_failed",
					slog.String("check", r.Name),
					slog.String("message", r.Message))
			}
		}
		return amerrors.New(amerrors.ErrCodeInternal, "system check failed", nil).
			WithSuggestion("Run 'mindual doctor' for diagnostics, or pass --skip-check.")
	}

	if err := preflight.MarkPassed(t.DataDir); err != nil {
		slog.Debug("preflight_mark_failed", slog.String("error", err.Error()))
	}
	slog.Info("preflight_passed", slog.String("status", checker.SummaryStatus(results)))
	return nil
}

func toDoctorReport(checker *preflight.Checker, results []preflight.CheckResult) doctorReport {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: make([]doctorCheck, len(results)),
	}
	for i, r := range results {
		report.Checks[i] = doctorCheck{
			Name:     r.Name,
			Status:   r.Status.String(),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}
		if r.IsCritical() {
			report.Errors = append(report.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn {
			report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
		}
	}
	return report
}

func formatAge(d time.Duration) string {
	switch hours := int(d.Hours()); {
	case hours < 1:
		return "less than 1 hour"
	case hours == 1:
		return "1 hour"
	case hours < 24:
		return fmt.Sprintf("%d hours", hours)
	case hours < 48:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", hours/24)
	}
}
