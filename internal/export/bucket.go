package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// uploadTimeout bounds one artifact upload.
const uploadTimeout = 2 * time.Minute

// BucketShare uploads the artifact to a Google Cloud Storage bucket so it can
// be fetched from another device. Objects are named prefix/<file name>, so a
// new export replaces the previous one of the same ledger.
type BucketShare struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBucketShare creates a storage client. Without a credentials file it
// falls back to Application Default Credentials.
func NewBucketShare(ctx context.Context, bucket, prefix, credentialsFile string, opts ...option.ClientOption) (*BucketShare, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBucketShare: create storage client: %w", err)
	}
	return &BucketShare{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (b *BucketShare) Name() string { return "bucket" }

func (b *BucketShare) Available(ctx context.Context) bool {
	return b != nil && b.client != nil && b.bucket != ""
}

func (b *BucketShare) Share(ctx context.Context, a Artifact) (string, error) {
	if !b.Available(ctx) {
		return "", ErrShareUnavailable
	}
	objectName := b.objectName(a.Name)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = a.MIMEType
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", a.Name)

	if _, err := io.Copy(w, bytes.NewReader(a.Data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("BucketShare: copy artifact to writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("BucketShare: finalize upload: %w", err)
	}
	return "gs://" + b.bucket + "/" + objectName, nil
}

// Close releases the storage client.
func (b *BucketShare) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *BucketShare) objectName(fileName string) string {
	name := path.Base(fileName)
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

var _ ShareSink = (*BucketShare)(nil)
