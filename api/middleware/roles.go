package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// AdminResolver answers whether a user holds the admin role.
type AdminResolver interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) bool
}

// RequireAdmin admits users the resolver reports as admins. The token role
// is not trusted on its own since promotions take effect without a new token.
func RequireAdmin(resolver AdminResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if resolver == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "role resolver unavailable"))
				return
			}

			userID := UserUUIDFromContext(ctx)
			if userID == uuid.Nil {
				unauthorized(w, r, logg, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			if !resolver.IsAdmin(ctx, userID) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}

			ctx = WithRole(ctx, string(enums.UserRoleAdmin))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
