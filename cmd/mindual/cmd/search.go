package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mindual/internal/output"
	"github.com/Aman-CERP/mindual/internal/search"
)

// queryOptions holds CLI flags shared by search and ask.
type queryOptions struct {
	k      int
	format string // "text", "json"
}

func (o queryOptions) validate() error {
	if o.format != "text" && o.format != "json" {
		return fmt.Errorf("invalid format %q (valid options: text, json)", o.format)
	}
	if o.k < 0 {
		return fmt.Errorf("-k must not be negative")
	}
	return nil
}

func newSearchCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the manual pages matching a query",
		Long: `Search the ingested manuals and print the matching pages, best first,
with their page number, manual id, score and page image.`,
		Example: `  mindual search "배수 필터"
  mindual search "error code E3" -k 3 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.k, "limit", "k", 0, "Number of pages to return (default search.max_docs)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts queryOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("search_started", slog.String("query", query), slog.Int("k", opts.k))
	contexts, err := a.retriever().Retrieve(ctx, query, opts.k)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", len(contexts)))

	if opts.format == "json" {
		return writeJSON(cmd, map[string]any{"query": query, "contexts": contexts})
	}

	out := output.New(cmd.OutOrStdout())
	if len(contexts) == 0 {
		out.Warningf("No manual content found for %q", query)
		return nil
	}
	printContexts(out, contexts)
	return nil
}

func newAskCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the manuals",
		Long: `Retrieve the manual pages most relevant to a question and ask Gemini to
answer from them. The pages used are listed after the answer. When nothing
relevant is found no request is sent.

Requires GEMINI_API_KEY.`,
		Example: `  mindual ask "필터는 어떻게 청소하나요?"
  mindual ask "What does error E3 mean?" -k 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.k, "limit", "k", 0, "Number of pages to ground the answer on (default search.max_docs)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts queryOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return answerQuestion(ctx, cmd, a.synthesizer(), question, opts)
}

// answerQuestion prints the answer of ans to question.
func answerQuestion(ctx context.Context, cmd *cobra.Command, ans *search.Synthesizer, question string, opts queryOptions) error {
	slog.Info("ask_started", slog.String("question", question), slog.Int("k", opts.k))
	answer, err := ans.Answer(ctx, question, opts.k)
	found := true
	if errors.Is(err, search.ErrNoContext) {
		found = false
	} else if err != nil {
		return err
	}
	slog.Info("ask_complete", slog.Bool("found", found), slog.Int("contexts", len(answer.Contexts)))

	if opts.format == "json" {
		return writeJSON(cmd, map[string]any{
			"question": question,
			"found":    found,
			"answer":   answer.Text,
			"contexts": answer.Contexts,
		})
	}

	out := output.New(cmd.OutOrStdout())
	if !found {
		out.Warningf("No manual content found for %q; no answer was generated.", question)
		return nil
	}
	out.Code(answer.Text)
	out.Header("Sources")
	printContexts(out, answer.Contexts)
	return nil
}

func printContexts(out *output.Writer, contexts []search.ContextRecord) {
	for i, c := range contexts {
		out.Context(i+1, c.Page, c.ManualID, c.Score, c.PageImage, c.Content)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
