package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/api/middleware"
	"github.com/angelmondragon/foodorder-backend/api/responses"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// requireUser returns the signed-in user or writes a 401 pointing at the
// sign-in page.
func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID := middleware.UserUUIDFromContext(r.Context())
	if userID == uuid.Nil {
		responses.WriteError(r.Context(), logg, w,
			pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required").WithRedirect(middleware.SignInPath))
		return uuid.Nil, false
	}
	return userID, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
