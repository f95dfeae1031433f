package preflight

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func found(name string) (string, error) { return "/usr/bin/" + name, nil }

func missing(string) (string, error) { return "", errors.New("executable file not found in $PATH") }

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail", CheckResult{Status: StatusFail}, false},
		{"required warn", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"warning", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"optional failure", []CheckResult{{Status: StatusFail}}, "ready_with_warnings"},
		{"critical failure", []CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
			assert.Equal(t, tt.expected == "failed", checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestCheckRenderer(t *testing.T) {
	ok := New(WithLookPath(found)).CheckRenderer()
	assert.Equal(t, StatusPass, ok.Status)
	assert.Equal(t, "/usr/bin/pdftoppm", ok.Message)

	// A missing renderer only blocks OCR, so it warns.
	warn := New(WithLookPath(missing)).CheckRenderer()
	assert.Equal(t, StatusWarn, warn.Status)
	assert.False(t, warn.IsCritical())
	assert.Contains(t, warn.Details, "--text-layer")
}

func TestCheckAPIKey(t *testing.T) {
	checker := New()

	assert.Equal(t, StatusPass, checker.CheckAPIKey(true).Status)
	unset := checker.CheckAPIKey(false)
	assert.Equal(t, StatusWarn, unset.Status)
	assert.Contains(t, unset.Message, "GEMINI_API_KEY")
}

func TestCheckDatabase(t *testing.T) {
	dir := t.TempDir()
	checker := New()

	// Given: no database yet
	res := checker.CheckDatabase(filepath.Join(dir, "manuals.sqlite"))
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Details, "mindual init")

	// Given: an existing file
	path := filepath.Join(dir, "manuals.sqlite")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))
	res = checker.CheckDatabase(path)
	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "2.0 KiB")

	// Given: a directory where the file should be
	res = checker.CheckDatabase(dir)
	assert.True(t, res.IsCritical())
}

func TestCheckWritePermissions_Writable(t *testing.T) {
	dir := t.TempDir()

	result := New().CheckWritePermissions(dir)

	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the write test file must be removed")
}

func TestCheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can write to read-only directories")
	}
	dir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	result := New().CheckWritePermissions(dir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestExistingAncestor(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, dir, existingAncestor(filepath.Join(dir, "data", "interim")))
	assert.Equal(t, dir, existingAncestor(dir))
	assert.Equal(t, ".", existingAncestor(""))
}

func TestRunAll_ReturnsEveryCheck(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := t.TempDir()
	checker := New(WithLookPath(missing))

	// When: running all checks
	results := checker.RunAll(context.Background(), Target{
		DataDir:      filepath.Join(dir, "data"),
		DatabasePath: filepath.Join(dir, "data", "manuals.sqlite"),
	})

	// Then: every check ran and the optional ones only warn
	var names []string
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"disk_space", "write_permissions", "file_descriptors",
		"renderer", "gemini_api_key", "database",
	}, names)
	assert.Equal(t, StatusPass, results[1].Status)
	for _, r := range results[3:] {
		assert.Equal(t, StatusWarn, r.Status, r.Name)
	}
}

func TestPrintResults(t *testing.T) {
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GiB free"},
		{Name: "renderer", Status: StatusWarn, Message: "pdftoppm not found", Details: "Install poppler-utils"},
		{Name: "write_permissions", Status: StatusFail, Message: "permission denied", Required: true},
	}
	buf := &bytes.Buffer{}

	New(WithOutput(buf), WithVerbose(true)).PrintResults(results)

	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50 GiB free")
	assert.Contains(t, out, "[WARN] renderer")
	assert.Contains(t, out, "      Install poppler-utils")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):\n  - write_permissions: permission denied")
	assert.Contains(t, out, "1 warning(s):")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "100 MiB", formatBytes(MinDiskSpaceBytes))
}
