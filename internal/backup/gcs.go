package backup

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSBucket reads and writes backup objects in a Google Cloud Storage
// bucket. It assumes Application Default Credentials are configured.
type GCSBucket struct {
	client *storage.Client
	bucket string
}

// NewGCSBucket opens a handle on the named bucket.
func NewGCSBucket(ctx context.Context, bucket string) (*GCSBucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSBucket{client: client, bucket: bucket}, nil
}

// Upload implements Uploader.
func (b *GCSBucket) Upload(ctx context.Context, objectName string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write object %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %q: %w", objectName, err)
	}
	return nil
}

// Download implements Downloader.
func (b *GCSBucket) Download(ctx context.Context, objectName string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := b.client.Bucket(b.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", objectName, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", objectName, err)
	}
	return data, nil
}

// Close releases the storage client.
func (b *GCSBucket) Close() error { return b.client.Close() }

var _ Bucket = (*GCSBucket)(nil)
