package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/storage"
)

const maxDownloadBytes = 10 << 20

type itemStore interface {
	ListItems(ctx context.Context) ([]models.MenuItem, error)
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
}

type migrator struct {
	bucket   storage.Bucket
	items    itemStore
	client   *http.Client
	prefix   string
	maxWidth uint
	quality  int
	dryRun   bool
	logg     *logger.Logger
}

type summary struct {
	Migrated int
	Skipped  int
	Failed   int
}

// run moves every externally hosted item image into the bucket. One failed
// item does not stop the others.
func (m *migrator) run(ctx context.Context) (summary, error) {
	var sum summary
	items, err := m.items.ListItems(ctx)
	if err != nil {
		return sum, fmt.Errorf("list menu items: %w", err)
	}

	for _, item := range items {
		if item.ImageURL == nil || strings.TrimSpace(*item.ImageURL) == "" {
			continue
		}
		src := strings.TrimSpace(*item.ImageURL)
		itemCtx := m.logg.WithFields(ctx, map[string]any{"item_id": item.ID.String(), "source": src})
		if _, ok := storage.KeyFromURL(m.bucket, src); ok {
			sum.Skipped++
			continue
		}
		if m.dryRun {
			m.logg.Info(itemCtx, "would migrate image")
			sum.Skipped++
			continue
		}
		url, err := m.migrateOne(itemCtx, item, src)
		if err != nil {
			m.logg.Warn(itemCtx, "image migration failed: "+err.Error())
			sum.Failed++
			continue
		}
		m.logg.Info(m.logg.WithField(itemCtx, "target", url), "image migrated")
		sum.Migrated++
	}
	return sum, nil
}

func (m *migrator) migrateOne(ctx context.Context, item models.MenuItem, src string) (string, error) {
	raw, err := m.download(ctx, src)
	if err != nil {
		return "", err
	}
	encoded, err := m.compress(raw)
	if err != nil {
		return "", err
	}
	key := m.prefix + objectName(item.Name, item.ID)
	if err := m.bucket.Upload(ctx, key, "image/jpeg", bytes.NewReader(encoded)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	url := m.bucket.PublicURL(key)
	if err := m.items.SetImageURL(ctx, item.ID, url); err != nil {
		return "", fmt.Errorf("update image url: %w", err)
	}
	return url, nil
}

func (m *migrator) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

// compress shrinks the image to maxWidth, keeping its aspect ratio, and
// re-encodes it as JPEG. Narrower images are never enlarged.
func (m *migrator) compress(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if m.maxWidth > 0 && uint(img.Bounds().Dx()) > m.maxWidth {
		img = resize.Resize(m.maxWidth, 0, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// objectName builds "<slug>-<id>.jpg" from the item name.
func objectName(name string, id uuid.UUID) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return id.String() + ".jpg"
	}
	return slug + "-" + id.String() + ".jpg"
}
