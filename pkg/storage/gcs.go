package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
)

// GCSBucket stores objects in Google Cloud Storage using application default credentials.
type GCSBucket struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

func NewGCS(ctx context.Context, cfg config.StorageConfig) (*GCSBucket, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	base := strings.TrimSpace(cfg.PublicBaseURL)
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &GCSBucket{client: client, bucket: cfg.Bucket, baseURL: strings.TrimSuffix(base, "/")}, nil
}

func (b *GCSBucket) Name() string { return b.bucket }

func (b *GCSBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	it := b.client.Bucket(b.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", b.bucket, err)
		}
		objects = append(objects, Object{Key: attrs.Name, Size: attrs.Size, UpdatedAt: attrs.Updated})
	}
	return objects, nil
}

func (b *GCSBucket) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", key, err)
	}
	return nil
}

func (b *GCSBucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("gcs attrs %s: %w", key, err)
}

func (b *GCSBucket) PublicURL(key string) string {
	return joinURL(b.baseURL, key)
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}
