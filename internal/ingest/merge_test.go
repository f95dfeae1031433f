package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_JoinsInInputOrder(t *testing.T) {
	// Given: three artifacts listed out of name order
	dir := t.TempDir()
	write := func(name, text string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
		return p
	}
	p10 := write("page_10.txt", "ten")
	p2 := write("page_2.txt", "two")
	p1 := write("page_1.txt", "one\n")
	merged := filepath.Join(dir, "nested", MergedFileName)

	// When: merging
	text, err := Merge([]string{p1, p2, p10}, merged)
	require.NoError(t, err)

	// Then: input order is kept and the file matches the return value
	assert.Equal(t, "one\n\n\ntwo\n\nten", text)
	got, err := os.ReadFile(merged)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))
}

func TestMerge_EmptyAndMissing(t *testing.T) {
	dir := t.TempDir()

	text, err := Merge(nil, filepath.Join(dir, MergedFileName))
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = Merge([]string{filepath.Join(dir, "missing.txt")}, filepath.Join(dir, MergedFileName))
	assert.Error(t, err)
}
