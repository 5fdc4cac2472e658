package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryBucket keeps objects in process. Used for local runs and tests.
type MemoryBucket struct {
	name    string
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

func NewMemory(name, baseURL string) *MemoryBucket {
	if baseURL == "" {
		baseURL = "memory://" + name
	}
	return &MemoryBucket{name: name, baseURL: strings.TrimSuffix(baseURL, "/"), objects: map[string]memoryObject{}}
}

func (b *MemoryBucket) Name() string { return b.name }

func (b *MemoryBucket) List(_ context.Context, prefix string) ([]Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Object, 0, len(b.objects))
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: int64(len(obj.data)), UpdatedAt: obj.updatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *MemoryBucket) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memoryObject{data: data, contentType: contentType, updatedAt: time.Now().UTC()}
	return nil
}

func (b *MemoryBucket) Exists(_ context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *MemoryBucket) PublicURL(key string) string {
	return joinURL(b.baseURL, key)
}

// Open returns the stored bytes and content type of key.
func (b *MemoryBucket) Open(key string) (io.Reader, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(obj.data), obj.contentType, true
}
