package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

func TestRootCmd_ListsCommands(t *testing.T) {
	testEnv(t)

	out, err := run(t, "--help")

	require.NoError(t, err)
	for _, name := range []string{"init", "ingest", "sync", "search", "ask", "serve", "status", "doctor", "config", "logs", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	testEnv(t)

	_, err := run(t, "index")

	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	missingKey := amerrors.New(amerrors.ErrCodeMissingAPIKey, "GEMINI_API_KEY is not set", nil)

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("ask: %w", missingKey)))
	assert.Equal(t, 1, ExitCode(amerrors.New(amerrors.ErrCodeQueryEmpty, "query is empty", nil)))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
}

func TestAskCmd_MissingKeyExitsWithTwo(t *testing.T) {
	dbPath := testEnv(t)
	seedManual(t, dbPath)

	_, err := run(t, "ask", "필터")

	assert.Equal(t, 2, ExitCode(err))
}

func TestRootCmd_Version(t *testing.T) {
	testEnv(t)

	out, err := run(t, "--version")

	require.NoError(t, err)
	assert.Equal(t, "mindual version dev\n", out)
}

func TestVersionCmd(t *testing.T) {
	testEnv(t)

	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mindual dev")
}

func TestInitCmd_CreatesSchema(t *testing.T) {
	// Given: no database yet
	dbPath := testEnv(t)

	// When: running init twice
	out, err := run(t, "init")
	require.NoError(t, err)
	_, err = run(t, "init")
	require.NoError(t, err)

	// Then: the database exists and its tables are listed
	assert.FileExists(t, dbPath)
	assert.Contains(t, out, "Database ready: "+dbPath)
	for _, table := range []string{"manuals", "chunks", "page_images", "chunks_fts"} {
		assert.Contains(t, out, table)
	}
}
