package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/mindual/internal/index"
	"github.com/Aman-CERP/mindual/internal/search"
	"github.com/Aman-CERP/mindual/internal/store"
	"github.com/Aman-CERP/mindual/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "mindual"

// Retriever returns ranked manual context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]search.ContextRecord, error)
}

// Answerer answers a question from retrieved context.
type Answerer interface {
	Answer(ctx context.Context, query string, k int) (*search.Answer, error)
}

// Catalog is the read side of the manual store the server needs.
type Catalog interface {
	Stats(ctx context.Context) (store.Stats, error)
	ListManuals(ctx context.Context) ([]*store.Manual, error)
	ManualByFileName(ctx context.Context, fileName string) (*store.Manual, error)
	ChunksByManual(ctx context.Context, manualID int64) ([]*store.Chunk, error)
}

// Checker compares the search indexes with the chunk table.
type Checker interface {
	Check(ctx context.Context) (*index.CheckResult, error)
}

var (
	_ Retriever = (*search.Retriever)(nil)
	_ Answerer  = (*search.Synthesizer)(nil)
	_ Catalog   = (*store.SQLiteStore)(nil)
	_ Checker   = (*index.ConsistencyChecker)(nil)
)

// Options wires a Server. Retriever and Catalog are required. Answerer
// is nil when no LLM is configured; the answer tool then reports that.
type Options struct {
	Retriever Retriever
	Answerer  Answerer
	Catalog   Catalog
	Checker   Checker
	Backend   string
	Embedder  string
}

// Server is the MCP server for the manual knowledge base.
type Server struct {
	mcp    *mcp.Server
	opts   Options
	logger *slog.Logger

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_manual",
		Description: "Find passages in the ingested product manuals relevant to a question or keywords. Returns page text with page number, manual id and page image path, best match first.",
	},
	{
		Name:        "answer",
		Description: "Answer a question about a product using only the ingested manuals. Returns the answer and the passages it was based on; found is false when no manual content matched.",
	},
	{
		Name:        "index_status",
		Description: "Report how many manuals, chunks and page images are stored, which search backend is active, and whether every chunk is indexed.",
	},
}

// NewServer creates a new MCP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}

	s := &Server{
		opts:   opts,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: version.Version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with JSON-decoded arguments, bypassing
// the transport.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	k := 0
	if v, ok := args["k"].(float64); ok {
		k = int(v)
	}

	switch name {
	case "search_manual":
		return s.searchManual(ctx, query, k)
	case "answer":
		return s.answer(ctx, query, k)
	case "index_status":
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func validateQuery(query string, k int) error {
	if strings.TrimSpace(query) == "" {
		return NewInvalidParamsError("query parameter is required and must not be blank")
	}
	if k < 0 {
		return NewInvalidParamsError("k must not be negative")
	}
	return nil
}

func (s *Server) searchManual(ctx context.Context, query string, k int) (*SearchOutput, error) {
	if err := validateQuery(query, k); err != nil {
		return nil, err
	}
	start := time.Now()
	requestID := generateRequestID()

	records, err := s.opts.Retriever.Retrieve(ctx, query, k)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("mcp_search_complete",
		slog.String("request_id", requestID),
		slog.Int("k", k),
		slog.Int("contexts", len(records)),
		slog.Duration("duration", time.Since(start)))
	return &SearchOutput{Contexts: toContextOutputs(records)}, nil
}

func (s *Server) answer(ctx context.Context, query string, k int) (*AnswerOutput, error) {
	if err := validateQuery(query, k); err != nil {
		return nil, err
	}
	if s.opts.Answerer == nil {
		return nil, &MCPError{
			Code:    ErrCodeNotConfigured,
			Message: "Answering needs an LLM. Set GEMINI_API_KEY and restart the server.",
		}
	}
	start := time.Now()
	requestID := generateRequestID()

	ans, err := s.opts.Answerer.Answer(ctx, query, k)
	if errors.Is(err, search.ErrNoContext) {
		s.logger.Info("mcp_answer_no_context", slog.String("request_id", requestID))
		return &AnswerOutput{Contexts: []ContextOutput{}}, nil
	}
	if err != nil {
		s.logger.Error("mcp_answer_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("mcp_answer_complete",
		slog.String("request_id", requestID),
		slog.Int("contexts", len(ans.Contexts)),
		slog.Duration("duration", time.Since(start)))
	return &AnswerOutput{
		Answer:   ans.Text,
		Found:    true,
		Contexts: toContextOutputs(ans.Contexts),
	}, nil
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	stats, err := s.opts.Catalog.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	out := &IndexStatusOutput{
		Manuals:    stats.Manuals,
		Chunks:     stats.Chunks,
		PageImages: stats.PageImages,
		Backend:    s.opts.Backend,
		Embedder:   s.opts.Embedder,
		Consistent: true,
		Indexes:    map[string]IndexSummary{},
	}

	if s.opts.Checker != nil {
		res, err := s.opts.Checker.Check(ctx)
		if err != nil {
			return nil, MapError(err)
		}
		out.Consistent = res.Consistent()
		for name, r := range res.Reports {
			out.Indexes[name] = IndexSummary{Indexed: r.Indexed, Missing: r.Missing, Orphans: r.Orphans}
		}
	}
	return out, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpAnswerHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.searchManual(ctx, input.Query, input.K)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(FormatContexts(input.Query, out.Contexts)), *out, nil
}

func (s *Server) mcpAnswerHandler(ctx context.Context, _ *mcp.CallToolRequest, input AnswerInput) (
	*mcp.CallToolResult,
	AnswerOutput,
	error,
) {
	out, err := s.answer(ctx, input.Query, input.K)
	if err != nil {
		return nil, AnswerOutput{}, err
	}
	return textResult(FormatAnswer(input.Query, *out)), *out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, *out, nil
}

// Serve runs the server on transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
