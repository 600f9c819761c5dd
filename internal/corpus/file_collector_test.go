package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCollectorCollect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "titanic"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "titanic", "evaluation.md"),
		[]byte("Submissions are scored on accuracy.\n\nThe leaderboard uses a hidden test set.\n"),
		0o644,
	))

	c := NewFileCollector(dir)
	passages, err := c.Collect(context.Background(), "titanic", "evaluation")
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "titanic_evaluation_0", passages[0].ID)
	assert.Equal(t, "Submissions are scored on accuracy.", passages[0].Text)
}

func TestFileCollectorMissingSection(t *testing.T) {
	c := NewFileCollector(t.TempDir())

	_, err := c.Collect(context.Background(), "titanic", "overview")
	assert.Error(t, err)
}

func TestFileCollectorEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "titanic"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "titanic", "data.md"), []byte("\n\n"), 0o644))

	c := NewFileCollector(dir)
	_, err := c.Collect(context.Background(), "titanic", "data")
	assert.Error(t, err)
}

func TestSplitParagraphs(t *testing.T) {
	got := splitParagraphs("a\r\n\r\nb\n\n\n\nc")
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
