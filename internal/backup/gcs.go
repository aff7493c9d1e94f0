package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// Transfer moves serialized backups through a Cloud Storage bucket so a
// snapshot taken on one installation can be imported on another.
type Transfer interface {
	Upload(ctx context.Context, objectName string, doc Document) error
	Fetch(ctx context.Context, objectName string) (Document, error)
}

// GCSTransfer implements Transfer on a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSTransfer struct {
	bucket string
}

// NewGCSTransfer creates a transfer bound to one bucket.
func NewGCSTransfer(bucket string) *GCSTransfer {
	return &GCSTransfer{bucket: bucket}
}

// Upload serializes the document and writes it to the bucket.
func (t *GCSTransfer) Upload(ctx context.Context, objectName string, doc Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(t.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy backup to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close GCS writer: %w", err)
	}
	return nil
}

// Fetch reads an object from the bucket and decodes it as a backup.
func (t *GCSTransfer) Fetch(ctx context.Context, objectName string) (Document, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(t.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read GCS object: %w", err)
	}

	return Decode(data)
}

var _ Transfer = (*GCSTransfer)(nil)
