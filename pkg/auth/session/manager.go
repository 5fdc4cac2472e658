// Package session keeps the refresh side of a sign-in in Redis, keyed by the
// access token's jti.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/redis"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Record is stored per access id. Only a digest of the refresh token is
// kept, so a Redis dump cannot be replayed.
type Record struct {
	UserID      uuid.UUID `json:"user_id"`
	TokenDigest string    `json:"token_digest"`
	IssuedAt    time.Time `json:"issued_at"`
}

type Issued struct {
	AccessID     string
	RefreshToken string
	UserID       uuid.UUID
}

// AccessSessionChecker is what the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewManager requires the refresh TTL to outlive the access token, otherwise
// refresh could never succeed.
func NewManager(rdb *redis.Client, cfg config.JWTConfig) (*Manager, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= access {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{rdb: rdb, ttl: ttl, now: time.Now}, nil
}

func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error) {
	switch {
	case strings.TrimSpace(accessID) == "":
		return "", errors.New("access id is required")
	case userID == uuid.Nil:
		return "", errors.New("user id is required")
	}
	return m.open(ctx, accessID, userID)
}

func (m *Manager) open(ctx context.Context, accessID string, userID uuid.UUID) (string, error) {
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	rec := Record{UserID: userID, TokenDigest: digest(token), IssuedAt: m.now().UTC()}
	if err := m.rdb.SetJSON(ctx, m.rdb.AccessSessionKey(accessID), rec, m.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// Rotate trades a refresh token for a new session. The old session is
// claimed atomically, so of two concurrent rotations only one succeeds.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (Issued, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return Issued{}, ErrInvalidRefreshToken
	}
	key := m.rdb.AccessSessionKey(oldAccessID)
	raw, rec, err := m.load(ctx, key)
	if err != nil {
		return Issued{}, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.TokenDigest), []byte(digest(provided))) != 1 {
		return Issued{}, ErrInvalidRefreshToken
	}
	claimed, err := m.rdb.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return Issued{}, err
	}
	if !claimed {
		return Issued{}, ErrInvalidRefreshToken
	}

	next := Issued{AccessID: NewAccessID(), UserID: rec.UserID}
	if next.RefreshToken, err = m.open(ctx, next.AccessID, rec.UserID); err != nil {
		return Issued{}, err
	}
	return next, nil
}

// Lookup returns ErrInvalidRefreshToken for a missing or unreadable session.
func (m *Manager) Lookup(ctx context.Context, accessID string) (Record, error) {
	_, rec, err := m.load(ctx, m.rdb.AccessSessionKey(accessID))
	return rec, err
}

func (m *Manager) load(ctx context.Context, key string) (string, Record, error) {
	raw, err := m.rdb.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return "", Record{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return "", Record{}, err
	}
	var rec Record
	if json.Unmarshal([]byte(raw), &rec) != nil || rec.TokenDigest == "" {
		return "", Record{}, ErrInvalidRefreshToken
	}
	return raw, rec, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errors.New("access id is required")
	}
	return m.rdb.Del(ctx, m.rdb.AccessSessionKey(accessID))
}

// HasSession reports whether accessID was neither revoked nor rotated away.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errors.New("access id is required")
	}
	_, err := m.rdb.Get(ctx, m.rdb.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
