package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

type roleStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	HasRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (bool, error)
}

type cachedRole struct {
	isAdmin bool
	at      time.Time
}

// RoleResolver decides whether a user is an admin. The role metadata on the
// user row wins; otherwise user_roles is consulted under a timeout. Lookup
// errors and timeouts resolve to "not admin".
type RoleResolver struct {
	store   roleStore
	timeout time.Duration
	ttl     time.Duration
	logg    *logger.Logger
	now     func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[uuid.UUID]cachedRole
}

func NewRoleResolver(store roleStore, timeout, ttl time.Duration, logg *logger.Logger) *RoleResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RoleResolver{
		store:   store,
		timeout: timeout,
		ttl:     ttl,
		logg:    logg,
		now:     time.Now,
		cache:   map[uuid.UUID]cachedRole{},
	}
}

// IsAdmin never returns an error; failures are logged and count as false.
func (r *RoleResolver) IsAdmin(ctx context.Context, userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	if v, ok := r.cached(userID); ok {
		return v
	}

	result, _, _ := r.group.Do(userID.String(), func() (any, error) {
		isAdmin := r.lookup(ctx, userID)
		r.mu.Lock()
		r.cache[userID] = cachedRole{isAdmin: isAdmin, at: r.now()}
		r.mu.Unlock()
		return isAdmin, nil
	})
	isAdmin, _ := result.(bool)
	return isAdmin
}

// Role maps IsAdmin onto the role enum.
func (r *RoleResolver) Role(ctx context.Context, userID uuid.UUID) enums.UserRole {
	if r.IsAdmin(ctx, userID) {
		return enums.UserRoleAdmin
	}
	return enums.UserRoleCustomer
}

// Forget drops the cached decision for a user.
func (r *RoleResolver) Forget(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

func (r *RoleResolver) cached(userID uuid.UUID) (bool, bool) {
	if r.ttl <= 0 {
		return false, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[userID]
	if !ok || r.now().Sub(entry.at) > r.ttl {
		return false, false
	}
	return entry.isAdmin, true
}

func (r *RoleResolver) lookup(ctx context.Context, userID uuid.UUID) bool {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	user, err := r.store.FindByID(lookupCtx, userID)
	if err == nil && user.RoleMetadata != nil &&
		strings.EqualFold(strings.TrimSpace(*user.RoleMetadata), string(enums.UserRoleAdmin)) {
		return true
	}

	type answer struct {
		ok  bool
		err error
	}
	done := make(chan answer, 1)
	go func() {
		ok, err := r.store.HasRole(lookupCtx, userID, enums.UserRoleAdmin)
		done <- answer{ok: ok, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.warn(ctx, userID, "role lookup failed", res.err)
			return false
		}
		return res.ok
	case <-lookupCtx.Done():
		r.warn(ctx, userID, "role lookup timed out", lookupCtx.Err())
		return false
	}
}

func (r *RoleResolver) warn(ctx context.Context, userID uuid.UUID, msg string, err error) {
	if r.logg == nil {
		return
	}
	fields := map[string]any{"user_id": userID.String()}
	if err != nil && !errors.Is(err, context.Canceled) {
		fields["reason"] = err.Error()
	}
	r.logg.Warn(r.logg.WithFields(ctx, fields), msg)
}
