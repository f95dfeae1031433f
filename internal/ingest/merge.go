package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MergedFileName is the concatenated text of a document.
const MergedFileName = "merged_manual.txt"

// Merge concatenates the text files at paths in input order, separated by
// a blank line, writes the result to mergedPath and returns it.
func Merge(paths []string, mergedPath string) (string, error) {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read artifact %s: %w", p, err)
		}
		parts = append(parts, string(b))
	}
	merged := strings.Join(parts, "\n\n")

	if err := os.MkdirAll(filepath.Dir(mergedPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(mergedPath), err)
	}
	if err := os.WriteFile(mergedPath, []byte(merged), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", mergedPath, err)
	}
	return merged, nil
}
