// Package storage stores menu images in an object bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("storage bucket not configured")

// Object describes one stored object.
type Object struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Bucket is the subset of object storage the service relies on.
type Bucket interface {
	Name() string
	List(ctx context.Context, prefix string) ([]Object, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// New opens the bucket for the configured provider.
func New(ctx context.Context, cfg config.StorageConfig) (Bucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrNotConfigured
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.StorageProviderS3, "":
		return NewS3(ctx, cfg)
	case config.StorageProviderGCS:
		return NewGCS(ctx, cfg)
	case config.StorageProviderMemory:
		return NewMemory(cfg.Bucket, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

// KeyFromURL returns the object key when rawURL points into bucket, so callers
// can tell migrated images from external ones.
func KeyFromURL(b Bucket, rawURL string) (string, bool) {
	if b == nil {
		return "", false
	}
	base := strings.TrimSuffix(b.PublicURL(""), "/")
	if base == "" {
		return "", false
	}
	url := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(url, base+"/") {
		return "", false
	}
	key := strings.TrimPrefix(url, base+"/")
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

func joinURL(base, key string) string {
	base = strings.TrimSuffix(base, "/")
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return base + "/"
	}
	return base + "/" + key
}
