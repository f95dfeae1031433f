package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mindual/internal/index"
	"github.com/Aman-CERP/mindual/internal/logging"
	"github.com/Aman-CERP/mindual/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serve the manual knowledge base to an MCP client over stdio.

Tools: search_manual, answer (needs GEMINI_API_KEY) and index_status.
Every ingested manual is also listed as a manual://<file name> resource.

Nothing is written to stdout except protocol messages; logs go to
~/.mindual/logs/mindual.log (see 'mindual logs').`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, skipCheck)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default server.transport; only stdio)")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the first-run system check")

	return cmd
}

func runServe(ctx context.Context, transport string, skipCheck bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupServeMode(level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	if transport == "" {
		transport = cfg.Server.Transport
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ensurePreflight(ctx, preflightTarget(cfg), skipCheck); err != nil {
		slog.Error("serve_preflight_failed", slog.String("error", err.Error()))
		return err
	}

	a, err := openApp(ctx, cfg, false)
	if err != nil {
		slog.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer a.Close()

	opts := mcp.Options{
		Retriever: a.retriever(),
		Catalog:   a.store,
		Checker:   index.NewConsistencyChecker(a.store, a.sync),
		Backend:   string(a.backend),
		Embedder:  a.embedderName(),
	}
	// A nil *Synthesizer must not become a non-nil interface.
	if syn := a.synthesizer(); syn != nil {
		opts.Answerer = syn
	} else {
		slog.Warn("serve_answer_disabled", slog.String("reason", "GEMINI_API_KEY not set"))
	}

	srv, err := mcp.NewServer(opts)
	if err != nil {
		return err
	}
	if _, err := srv.RegisterResources(ctx); err != nil {
		return err
	}
	return srv.Serve(ctx, transport)
}
