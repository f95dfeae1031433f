package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mindual/internal/preflight"
)

func TestDoctor_JSONReportsEveryCheck(t *testing.T) {
	// Given: a fresh directory with no key and no database
	testEnv(t)

	// When: running doctor with JSON output
	// Required checks depend on the host, so only the report is inspected.
	out, _ := run(t, "doctor", "--json")

	// Then: every check is listed and the missing pieces are warnings
	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	byName := map[string]doctorCheck{}
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.Len(t, byName, 6)
	assert.Equal(t, "WARN", byName["gemini_api_key"].Status)
	assert.Equal(t, "WARN", byName["database"].Status)
	assert.Contains(t, report.Warnings, "gemini_api_key: "+byName["gemini_api_key"].Message)
}

func TestDoctor_SeesDatabaseAndKey(t *testing.T) {
	dbPath := testEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	_, err := run(t, "init")
	require.NoError(t, err)

	out, _ := run(t, "doctor", "--json")

	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	for _, c := range report.Checks {
		switch c.Name {
		case "gemini_api_key":
			assert.Equal(t, "PASS", c.Status)
		case "database":
			assert.Equal(t, "PASS", c.Status)
			assert.Contains(t, c.Message, dbPath)
		}
	}
	assert.NotContains(t, out, "test-key")
}

func TestToDoctorReport(t *testing.T) {
	checker := preflight.New()
	results := []preflight.CheckResult{
		{Name: "disk_space", Status: preflight.StatusFail, Message: "10 MiB free", Required: true},
		{Name: "renderer", Status: preflight.StatusWarn, Message: "pdftoppm not found"},
	}

	report := toDoctorReport(checker, results)

	assert.Equal(t, "failed", report.Status)
	assert.Equal(t, []string{"disk_space: 10 MiB free"}, report.Errors)
	assert.Equal(t, []string{"renderer: pdftoppm not found"}, report.Warnings)
	assert.Equal(t, "FAIL", report.Checks[0].Status)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "less than 1 hour", formatAge(10*time.Minute))
	assert.Equal(t, "1 hour", formatAge(90*time.Minute))
	assert.Equal(t, "5 hours", formatAge(5*time.Hour))
	assert.Equal(t, "1 day", formatAge(30*time.Hour))
	assert.Equal(t, "3 days", formatAge(73*time.Hour))
}

func TestDoctor_FailureClearsMarker(t *testing.T) {
	// Given: an earlier passing check and a database path that is now a directory
	dbPath := testEnv(t)
	require.NoError(t, preflight.MarkPassed("data"))
	require.NoError(t, os.MkdirAll(dbPath, 0o755))

	// When: doctor runs
	_, err := run(t, "doctor", "--json")

	// Then: it fails and the next serve or ingest checks again
	require.Error(t, err)
	assert.True(t, preflight.NeedsCheck("data"))
}

func TestEnsurePreflight(t *testing.T) {
	dir := t.TempDir()
	badDB := filepath.Join(dir, "db-is-a-dir")
	require.NoError(t, os.MkdirAll(badDB, 0o755))
	ctx := context.Background()

	t.Run("skip runs nothing", func(t *testing.T) {
		dataDir := filepath.Join(dir, "skip")
		require.NoError(t, ensurePreflight(ctx, preflight.Target{DataDir: dataDir, DatabasePath: badDB}, true))
		assert.True(t, preflight.NeedsCheck(dataDir))
	})

	t.Run("marker short-circuits", func(t *testing.T) {
		dataDir := filepath.Join(dir, "marked")
		require.NoError(t, preflight.MarkPassed(dataDir))
		assert.NoError(t, ensurePreflight(ctx, preflight.Target{DataDir: dataDir, DatabasePath: badDB}, false))
	})

	t.Run("critical failure is reported", func(t *testing.T) {
		dataDir := filepath.Join(dir, "fresh")
		err := ensurePreflight(ctx, preflight.Target{DataDir: dataDir, DatabasePath: badDB}, false)
		assert.ErrorContains(t, err, "system check failed")
		assert.True(t, preflight.NeedsCheck(dataDir))
	})
}
