package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	pkgAuth "github.com/angelmondragon/foodorder-backend/pkg/auth"
	"github.com/angelmondragon/foodorder-backend/pkg/auth/session"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// SignInPath is sent as the redirect hint on every 401.
const SignInPath = "/auth"

// Auth admits requests carrying a valid access token whose session is still
// live. A nil checker skips the session lookup.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r.Context(), r, cfg, sessions)
			if err != nil {
				if err.Code() == pkgerrors.CodeUnauthorized {
					unauthorized(w, r, logg, err)
				} else {
					responses.WriteError(r.Context(), logg, w, err)
				}
				return
			}

			userID := claims.UserID.String()
			ctx := WithAccessID(WithRole(WithUserID(r.Context(), userID), string(claims.Role)), claims.ID)
			ctx = logg.WithField(logg.WithUserID(ctx, userID), "role", string(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, *pkgerrors.Error) {
	token := BearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if sessions == nil {
		return claims, nil
	}

	live, err := sessions.HasSession(ctx, claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// BearerToken returns the Authorization header value without its Bearer
// scheme. A header with no scheme is returned as is.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return raw
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, err *pkgerrors.Error) {
	responses.WriteError(r.Context(), logg, w, err.WithRedirect(SignInPath))
}
