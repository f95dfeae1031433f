package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mindual/internal/index"
	"github.com/Aman-CERP/mindual/internal/output"
	"github.com/Aman-CERP/mindual/internal/store"
)

// statusReport is the JSON form of the status command.
type statusReport struct {
	Database   string                       `json:"database"`
	Manuals    int                          `json:"manuals"`
	Chunks     int                          `json:"chunks"`
	PageImages int                          `json:"page_images"`
	Backend    string                       `json:"backend"`
	Embedder   string                       `json:"embedder,omitempty"`
	LLM        bool                         `json:"llm"`
	OnDisk     map[string]bool              `json:"on_disk,omitempty"`
	Consistent bool                         `json:"consistent"`
	Indexes    map[string]index.IndexReport `json:"indexes"`
	Repaired   bool                         `json:"repaired,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		repair     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database counts and search index health",
		Long: `Display the number of manuals, chunks and page images, the active search
backend, and whether every chunk is present in each search index.

With --repair, stale index entries are removed and missing ones added.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput, repair)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&repair, "repair", false, "Fix inconsistencies between the indexes and the database")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput, repair bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !fileExists(cfg.Database.Path) {
		return fmt.Errorf("no database found at %s\nRun 'mindual init' to create one", cfg.Database.Path)
	}

	// Record which file-backed indexes existed before opening creates them.
	onDisk := map[string]bool{}
	switch store.Backend(cfg.Search.Backend) {
	case store.BackendBleve:
		onDisk["bleve"] = store.IndexExists(store.BlevePath(cfg.IndexDir()))
	case store.BackendVector, store.BackendHybrid:
		onDisk["vector"] = store.IndexExists(store.VectorPath(cfg.IndexDir()))
	}

	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	checker := index.NewConsistencyChecker(a.store, a.sync)
	res, err := checker.Check(ctx)
	if err != nil {
		return err
	}

	repaired := false
	if repair && !res.Consistent() {
		if err := checker.Repair(ctx, res); err != nil {
			return err
		}
		repaired = true
		if res, err = checker.Check(ctx); err != nil {
			return err
		}
	}

	report := statusReport{
		Database:   a.store.Path(),
		Manuals:    stats.Manuals,
		Chunks:     stats.Chunks,
		PageImages: stats.PageImages,
		Backend:    string(a.backend),
		Embedder:   a.embedderName(),
		LLM:        a.gemini != nil,
		OnDisk:     onDisk,
		Consistent: res.Consistent(),
		Indexes:    res.Reports,
		Repaired:   repaired,
	}
	if jsonOutput {
		return writeJSON(cmd, report)
	}
	printStatus(output.New(cmd.OutOrStdout()), report)
	return nil
}

func printStatus(out *output.Writer, r statusReport) {
	llm := "not configured (set GEMINI_API_KEY)"
	if r.LLM {
		llm = "gemini"
	}
	backend := r.Backend
	if r.Embedder != "" {
		backend += " (embedder " + r.Embedder + ")"
	}

	out.Header("Database")
	out.KeyValue(
		"path", r.Database,
		"manuals", fmt.Sprintf("%d", r.Manuals),
		"chunks", fmt.Sprintf("%d", r.Chunks),
		"page images", fmt.Sprintf("%d", r.PageImages),
		"llm", llm,
	)
	out.Newline()

	out.Header("Search indexes")
	out.KeyValue("backend", backend)
	names := make([]string, 0, len(r.Indexes))
	for name := range r.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rep := r.Indexes[name]
		out.Statusf("", "%s: %d indexed, %d missing, %d stale", name, rep.Indexed, rep.Missing, rep.Orphans)
	}
	for name, existed := range r.OnDisk {
		if !existed {
			out.Statusf("", "%s: created empty, run 'mindual sync'", name)
		}
	}
	out.Newline()

	switch {
	case r.Repaired && r.Consistent:
		out.Success("Indexes repaired")
	case r.Consistent:
		out.Success("Indexes are consistent with the database")
	default:
		out.Warning("Indexes are out of date; run 'mindual sync' or 'mindual status --repair'")
	}
}
