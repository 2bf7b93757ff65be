package storage

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"ans-archiver/internal/logging"
)

// GCSProvider implements Provider on Google Cloud Storage.
type GCSProvider struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSProvider initializes a GCS client and verifies bucket access.
// Authentication is handled via Application Default Credentials.
func NewGCSProvider(ctx context.Context, bucketName, prefix string) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	// Fail fast on startup if the bucket is misconfigured.
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logging.L.Warn("Failed to close GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// Save uploads data to the configured bucket under prefix/objectName.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	name := objectName
	if g.prefix != "" {
		name = path.Join(g.prefix, objectName)
	}
	wc := g.client.Bucket(g.bucketName).Object(name).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			logging.L.Warn("Failed to close GCS writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write GCS object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close GCS writer for object %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	return g.client.Close()
}
