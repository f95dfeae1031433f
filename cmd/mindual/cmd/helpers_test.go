package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mindual/internal/store"
)

// testEnv isolates a command run: its own working directory, home, user
// config directory and database, with no Gemini key.
func testEnv(t *testing.T) (dbPath string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, name := range []string{
		"GEMINI_API_KEY", "GEMINI_MODEL_ID", "RAG_MAX_DOCS",
		"MINDUAL_LOG_LEVEL", "MINDUAL_SEARCH_BACKEND", "MINDUAL_CHUNK_POLICY", "MINDUAL_EMBED_PROVIDER",
	} {
		t.Setenv(name, "")
	}
	dbPath = filepath.Join(dir, "db", "manuals.sqlite")
	t.Setenv("DB_PATH", dbPath)

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	return dbPath
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	_ = stopLogging(cmd, nil)
	return buf.String(), err
}

// seedManual stores a two-page manual without indexing it.
func seedManual(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	id, err := st.UpsertManual(ctx, store.ManualInput{
		FileName:  "WM3900_manual_2024-03-15.pdf",
		Models:    []string{"WM3900"},
		Language:  "ko",
		Title:     "WM3900 세탁기",
		CreatedAt: "2024-03-15",
	})
	require.NoError(t, err)
	_, err = st.InsertChunk(ctx, store.ChunkInput{ManualID: id, Page: 1, Content: "전원 버튼을 눌러 세탁기를 켭니다"})
	require.NoError(t, err)
	_, err = st.InsertChunk(ctx, store.ChunkInput{ManualID: id, Page: 3, Content: "배수 필터 청소 방법\n매월 한 번 청소하세요"})
	require.NoError(t, err)
	require.NoError(t, st.UpsertPageImage(ctx, id, 3, "data/interim/WM3900_manual_2024-03-15/page_3.jpg"))
}
