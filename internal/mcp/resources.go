package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/mindual/internal/store"
)

// ManualURIScheme prefixes manual resource URIs: manual://<file name>.
const ManualURIScheme = "manual://"

// ManualURI returns the resource URI of a manual.
func ManualURI(fileName string) string {
	return ManualURIScheme + fileName
}

// RegisterResources exposes every ingested manual as a markdown resource
// holding its pages in order. Manuals ingested after the call are not
// listed until the server restarts.
func (s *Server) RegisterResources(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	manuals, err := s.opts.Catalog.ListManuals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list manuals: %w", err)
	}

	for _, m := range manuals {
		s.mcp.AddResource(&mcp.Resource{
			Name:        m.FileName,
			URI:         ManualURI(m.FileName),
			Description: describeManual(m),
			MIMEType:    "text/markdown",
		}, s.manualHandler(m.FileName))
	}

	s.logger.Info("mcp_resources_registered", "count", len(manuals))
	return len(manuals), nil
}

func describeManual(m *store.Manual) string {
	parts := []string{m.Title}
	if len(m.Models) > 0 {
		parts = append(parts, "models "+strings.Join(m.Models, ", "))
	}
	if m.Language != "" {
		parts = append(parts, "language "+m.Language)
	}
	if m.CreatedAt != "" {
		parts = append(parts, "dated "+m.CreatedAt)
	}
	return strings.Join(parts, "; ")
}

func (s *Server) manualHandler(fileName string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.ReadManual(ctx, fileName)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      ManualURI(fileName),
				MIMEType: "text/markdown",
				Text:     text,
			}},
		}, nil
	}
}

// ReadManual renders a manual's chunks as markdown, one section per page.
func (s *Server) ReadManual(ctx context.Context, fileName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.opts.Catalog.ManualByFileName(ctx, fileName)
	if err != nil {
		return "", MapError(err)
	}
	if m == nil {
		return "", NewResourceNotFoundError(ManualURI(fileName))
	}
	chunks, err := s.opts.Catalog.ChunksByManual(ctx, m.ID)
	if err != nil {
		return "", MapError(err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", m.Title)
	if d := describeManual(m); d != m.Title {
		fmt.Fprintf(&sb, "_%s_\n\n", strings.TrimPrefix(d, m.Title+"; "))
	}
	for _, c := range chunks {
		if c.Page > 0 {
			fmt.Fprintf(&sb, "## Page %d\n\n", c.Page)
		} else {
			sb.WriteString("## Unpaged\n\n")
		}
		sb.WriteString(strings.TrimSpace(c.Content))
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
