package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

const maxCredentialBody = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles sign-in and sign-up attempts. Attempts are
// counted per client IP and per submitted email within a fixed window.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// attemptCounter is one fixed-window counter a request is charged against.
type attemptCounter struct {
	scope string
	value string
	limit int
}

func (c attemptCounter) key(policy string) string {
	return "fo:rl:" + policy + ":" + c.scope + ":" + c.value
}

// counters lists what the request is charged against. The body is only read
// when an email limit applies and is restored for the next handler.
func (p AuthRateLimitPolicy) counters(r *http.Request) ([]attemptCounter, error) {
	var out []attemptCounter
	if p.ipLimit > 0 {
		if ip := clientIP(r); ip != "" {
			out = append(out, attemptCounter{scope: "ip", value: ip, limit: p.ipLimit})
		}
	}
	if p.emailLimit <= 0 || r.Body == nil {
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var creds struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &creds) != nil {
		return out, nil
	}
	if email := strings.ToLower(strings.TrimSpace(creds.Email)); email != "" {
		sum := sha256.Sum256([]byte(email))
		out = append(out, attemptCounter{scope: "email", value: hex.EncodeToString(sum[:]), limit: p.emailLimit})
	}
	return out, nil
}

// AuthRateLimit answers 429 with Retry-After once any counter passes its limit.
// A nil store or a policy without limits disables the middleware.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			counters, err := policy.counters(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}

			for _, c := range counters {
				count, err := store.IncrWithTTL(ctx, c.key(policy.name), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(c.limit) {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":   policy.name,
						"scope":    c.scope,
						"attempts": count,
						"limit":    c.limit,
					}), "auth attempt throttled")
					w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Round(time.Second).Seconds())))
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
