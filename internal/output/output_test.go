package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StatusLines(t *testing.T) {
	// Given: a writer over a buffer, which is never a terminal
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing each kind of status
	w.Success("Ingested WM3900.pdf")
	w.Warningf("%d pages had no text", 2)
	w.Error("OCR failed")
	w.Status("", "indented")

	// Then: plain icons, no escape codes
	assert.Equal(t, "✓ Ingested WM3900.pdf\n! 2 pages had no text\n✗ OCR failed\n   indented\n", buf.String())
}

func TestWriter_KeyValueAligns(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.KeyValue("manual id", "7", "pages", "12", "dangling")

	assert.Equal(t, "  manual id:  7\n  pages:      12\n", buf.String())
}

func TestWriter_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Context(1, 12, 3, 0.5, "data/interim/WM3900/page_12.jpg", "필터를 분리하세요\n물로 헹구세요\n")

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "[1] p.12  manual 3  score 0.5000", lines[0])
	assert.Equal(t, "    data/interim/WM3900/page_12.jpg", lines[1])
	assert.Equal(t, "    필터를 분리하세요", lines[2])
	assert.Equal(t, "    물로 헹구세요", lines[3])
}

func TestWriter_ContextWithoutImage(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Context(2, 1, 1, 0, "", "text")

	assert.NotContains(t, buf.String(), "jpg")
	assert.Contains(t, buf.String(), "    text\n")
}

func TestWriter_Code(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("a\nb")

	assert.Equal(t, "\n  a\n  b\n\n", buf.String())
}

func TestWriter_PaintWhenColored(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &Writer{out: buf, useColor: true}

	w.Header("Results")

	assert.Equal(t, "\033[1mResults\033[0m\n", buf.String())
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.False(t, IsTTY(f))
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, NoColorEnv())
}
