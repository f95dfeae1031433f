package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd_TailsFile(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "mindual.log")
	lines := []string{
		`{"time":"2026-03-01T10:00:00.000Z","level":"INFO","msg":"ingest_started","file":"WM3900.pdf"}`,
		`{"time":"2026-03-01T10:00:01.000Z","level":"WARN","msg":"retry_backoff","attempt":2}`,
		`{"time":"2026-03-01T10:00:02.000Z","level":"INFO","msg":"ingest_complete","chunks":12}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	out, err := run(t, "logs", "--file", path, "-n", "2", "--no-color")
	require.NoError(t, err)
	assert.NotContains(t, out, "ingest_started")
	assert.Contains(t, out, "10:00:01.000 WARN  retry_backoff attempt=2")
	assert.Contains(t, out, "ingest_complete chunks=12")

	out, err = run(t, "logs", "--file", path, "--level", "warn", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLogsCmd_Errors(t *testing.T) {
	testEnv(t)

	_, err := run(t, "logs")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err = run(t, "logs", "--file", path, "--filter", "([")
	assert.ErrorContains(t, err, "invalid filter pattern")
}
