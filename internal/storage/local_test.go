package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalProviderSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalProvider(dir)
	require.NoError(t, err)

	err = store.Save(context.Background(), "Course_A/Assignment_1/attempt.html", []byte("<html></html>"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "Course_A", "Assignment_1", "attempt.html"))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(data))
}

func TestLocalProviderCreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := NewLocalProvider(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLocalProviderRejectsEscape(t *testing.T) {
	store, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), "../outside.html", []byte("x")))
}

func TestLocalProviderRejectsEmptyBase(t *testing.T) {
	_, err := NewLocalProvider("  ")
	require.Error(t, err)
}

func TestMemoryProvider(t *testing.T) {
	store := NewMemoryProvider()
	require.NoError(t, store.Save(context.Background(), "a/b.html", []byte("body")))

	data, ok := store.Get("a/b.html")
	require.True(t, ok)
	require.Equal(t, "body", string(data))
	require.Equal(t, []string{"a/b.html"}, store.Names())

	_, ok = store.Get("missing")
	require.False(t, ok)
}

func TestNoOpProvider(t *testing.T) {
	var store NoOpProvider
	require.NoError(t, store.Save(context.Background(), "anything", nil))
}
