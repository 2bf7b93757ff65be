package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider implements Provider on the local filesystem.
type LocalProvider struct {
	baseDir string
}

// NewLocalProvider creates a filesystem-backed store rooted at baseDir and
// verifies the root is usable up front.
func NewLocalProvider(baseDir string) (*LocalProvider, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &LocalProvider{baseDir: baseDir}, nil
}

// BaseDir returns the store root.
func (l *LocalProvider) BaseDir() string {
	return l.baseDir
}

// Save writes data under the store root, creating parent directories as
// needed. Object names must stay inside the root.
func (l *LocalProvider) Save(ctx context.Context, objectName string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save %s: %w", objectName, err)
	}
	target := filepath.Join(l.baseDir, filepath.FromSlash(objectName))
	rel, err := filepath.Rel(l.baseDir, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("object name %q escapes the store root", objectName)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}
