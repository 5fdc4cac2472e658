package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/foodorder-backend/pkg/redis"
)

func limitedSignin(t *testing.T, policy AuthRateLimitPolicy) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
	return AuthRateLimit(policy, store, nil)(next), mr
}

func attempt(h http.Handler, email, remote, forwarded string) *httptest.ResponseRecorder {
	body := `{"email":"` + email + `","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(body))
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRateLimitRestoresBody(t *testing.T) {
	h, _ := limitedSignin(t, NewAuthRateLimitPolicy("signin", time.Minute, 5, 5))

	rec := attempt(h, "taster@example.com", "1.2.3.4:5678", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"taster@example.com"`)
}

func TestAuthRateLimitCountsEmailCaseInsensitively(t *testing.T) {
	h, _ := limitedSignin(t, NewAuthRateLimitPolicy("signin", time.Minute, 0, 2))

	assert.Equal(t, http.StatusOK, attempt(h, "blocked@example.com", "1.1.1.1:1", "").Code)
	assert.Equal(t, http.StatusOK, attempt(h, "Blocked@Example.com", "2.2.2.2:1", "").Code)
	rec := attempt(h, " BLOCKED@example.com ", "3.3.3.3:1", "")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)

	assert.Equal(t, http.StatusOK, attempt(h, "someone-else@example.com", "3.3.3.3:1", "").Code)
}

func TestAuthRateLimitUsesForwardedIP(t *testing.T) {
	h, mr := limitedSignin(t, NewAuthRateLimitPolicy("SignUp", 90*time.Second, 1, 0))

	first := attempt(h, "a@example.com", "10.0.0.1:1234", "9.9.9.9, 10.0.0.1")
	second := attempt(h, "b@example.com", "10.0.0.2:1234", "9.9.9.9")

	assert.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "90", second.Header().Get("Retry-After"))
	assert.True(t, mr.Exists("fo:rl:signup:ip:9.9.9.9"))
	assert.False(t, mr.Exists("fo:rl:signup:ip:10.0.0.1"))
}

func TestAuthRateLimitWindowExpires(t *testing.T) {
	h, mr := limitedSignin(t, NewAuthRateLimitPolicy("signin", time.Minute, 1, 0))

	require.Equal(t, http.StatusOK, attempt(h, "x@example.com", "4.4.4.4:1", "").Code)
	require.Equal(t, http.StatusTooManyRequests, attempt(h, "x@example.com", "4.4.4.4:1", "").Code)

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, attempt(h, "x@example.com", "4.4.4.4:1", "").Code)
}

func TestAuthRateLimitDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	noStore := AuthRateLimit(NewAuthRateLimitPolicy("signin", time.Minute, 1, 1), nil, nil)(next)
	noLimits, _ := limitedSignin(t, NewAuthRateLimitPolicy("signin", time.Minute, 0, 0))

	for range 3 {
		assert.Equal(t, http.StatusNoContent, attempt(noStore, "a@example.com", "1.1.1.1:1", "").Code)
		assert.Equal(t, http.StatusOK, attempt(noLimits, "a@example.com", "1.1.1.1:1", "").Code)
	}
}
