package printer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindHTMLFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Algebra", "Exam"), 0o755))
	for _, name := range []string{
		"Algebra/Exam/attempt.html",
		"Algebra/Exam/grading_panel.html",
		"Algebra/Exam/upload.pdf",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte("x"), 0o644))
	}

	files, err := findHTMLFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		require.Equal(t, ".html", filepath.Ext(f))
	}
}

func TestFindHTMLFilesMissingDir(t *testing.T) {
	_, err := findHTMLFiles(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestPDFPath(t *testing.T) {
	require.Equal(t, filepath.FromSlash("a/b/attempt.pdf"), pdfPath(filepath.FromSlash("a/b/attempt.html")))
}
