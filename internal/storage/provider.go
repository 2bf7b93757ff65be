// Package storage defines the artifact store used for everything the
// archiver produces (reconstructed HTML, annotated PDFs, diagnostic dumps).
// The abstraction keeps the crawl pipeline independent of where artifacts
// land (local filesystem, Google Cloud Storage, memory for tests).
package storage

import "context"

// Provider defines the common interface for an artifact store. Object names
// are relative, '/'-separated paths such as
// "Course_Name/Assignment_Name/attempt.html".
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards all artifacts. Useful for dry runs where pages are
// fetched but nothing is persisted.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
