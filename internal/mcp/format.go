package mcp

import (
	"fmt"
	"strings"
)

// FormatContexts renders retrieved passages as markdown for clients that
// show the text content of a tool result.
func FormatContexts(query string, contexts []ContextOutput) string {
	if len(contexts) == 0 {
		return fmt.Sprintf("No manual content found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Manual passages for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d passage", len(contexts))
	if len(contexts) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, c := range contexts {
		formatContext(&sb, i+1, c)
	}
	return sb.String()
}

// FormatAnswer renders an answer followed by its sources.
func FormatAnswer(query string, out AnswerOutput) string {
	if !out.Found {
		return fmt.Sprintf("No manual content found for \"%s\"; no answer was generated.", query)
	}

	var sb strings.Builder
	sb.WriteString(out.Answer)
	sb.WriteString("\n\n### Sources\n\n")
	for _, c := range out.Contexts {
		fmt.Fprintf(&sb, "- manual %d, p.%d\n", c.ManualID, c.Page)
	}
	return sb.String()
}

func formatContext(sb *strings.Builder, n int, c ContextOutput) {
	fmt.Fprintf(sb, "### %d. Manual %d, page %d (score %.4f)\n\n", n, c.ManualID, c.Page, c.Score)
	if c.PageImage != "" {
		fmt.Fprintf(sb, "Page image: `%s`\n\n", c.PageImage)
	}
	for _, line := range strings.Split(strings.TrimSpace(c.Text), "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
