package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/foodorder-backend/pkg/redis"
)

// ErrCorruptSnapshot is returned by Load when the stored cart cannot be
// decoded. Any other Load error means the store itself was unreachable.
var ErrCorruptSnapshot = errors.New("cart snapshot corrupt")

type sessionStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// SessionRepository persists cart snapshots in Redis under fo:cart:<user>.
// Every save slides the TTL forward.
type SessionRepository struct {
	store sessionStore
	ttl   time.Duration
}

func NewSessionRepository(store sessionStore, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepository{store: store, ttl: ttl}
}

type snapshot struct {
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Load returns the stored lines, or none when the session expired.
func (r *SessionRepository) Load(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	var snap snapshot
	found, err := r.store.GetJSON(ctx, r.store.CartKey(userID.String()), &snap)
	switch {
	case errors.Is(err, pkgredis.ErrCorrupt):
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	case err != nil:
		return nil, err
	case !found:
		return nil, nil
	}
	return snap.Items, nil
}

func (r *SessionRepository) Save(ctx context.Context, userID uuid.UUID, items []Item) error {
	if len(items) == 0 {
		return r.Delete(ctx, userID)
	}
	return r.store.SetJSON(ctx, r.store.CartKey(userID.String()), snapshot{
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	}, r.ttl)
}

func (r *SessionRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.store.Del(ctx, r.store.CartKey(userID.String()))
}
