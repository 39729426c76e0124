package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSWriter writes objects to a Cloud Storage bucket.
type GCSWriter struct {
	bucket  *storage.BucketHandle
	timeout time.Duration
}

// NewGCSWriter uses Application Default Credentials.
func NewGCSWriter(ctx context.Context, bucketName string) (*GCSWriter, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSWriter{bucket: client.Bucket(bucketName), timeout: 2 * time.Minute}, client.Close, nil
}

func (g *GCSWriter) WriteObject(ctx context.Context, key, contentType string, metadata map[string]string, r io.Reader) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata

	n, err := io.Copy(w, r)
	if err != nil {
		// Closing a writer whose context is live would commit a partial object.
		cancel()
		_ = w.Close()
		return n, fmt.Errorf("copy object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("finalize object %s: %w", key, err)
	}
	return n, nil
}

var _ ObjectWriter = (*GCSWriter)(nil)
