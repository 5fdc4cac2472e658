package auth

import (
	"sync"
	"time"

	"github.com/angelmondragon/foodorder-backend/internal/users"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// Identity is the cached view of a signed-in session.
type Identity struct {
	User     *users.UserDTO
	Role     enums.UserRole
	IsAdmin  bool
	LoadedAt time.Time
}

// Holder keeps the resolved identity of each live access id. It is refreshed
// by sign-in and refresh and dropped by sign-out or any auth failure.
type Holder struct {
	mu      sync.RWMutex
	entries map[string]Identity
	ttl     time.Duration
	now     func() time.Time
}

// NewHolder builds a holder whose entries go stale after ttl. A zero ttl keeps
// entries until they are cleared.
func NewHolder(ttl time.Duration) *Holder {
	return &Holder{entries: map[string]Identity{}, ttl: ttl, now: time.Now}
}

func (h *Holder) Get(accessID string) (Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.entries[accessID]
	if !ok {
		return Identity{}, false
	}
	if h.ttl > 0 && h.now().Sub(id.LoadedAt) > h.ttl {
		return Identity{}, false
	}
	return id, true
}

func (h *Holder) Set(accessID string, identity Identity) {
	if identity.LoadedAt.IsZero() {
		identity.LoadedAt = h.now()
	}
	h.mu.Lock()
	h.entries[accessID] = identity
	h.mu.Unlock()
}

func (h *Holder) Clear(accessID string) {
	h.mu.Lock()
	delete(h.entries, accessID)
	h.mu.Unlock()
}

// Len is the number of cached sessions.
func (h *Holder) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
