package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/api/validators"
	"github.com/angelmondragon/foodorder-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// AddCartItemRequest adds one unit of a menu item.
type AddCartItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id" validate:"required"`
}

// UpdateCartItemRequest sets the quantity of a line; zero or less removes it.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

const maxCartItemIDLen = 64

func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		view, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		var req AddCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.MenuItemID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"menu_item_id": "is required"}))
			return
		}

		view, err := svc.Add(r.Context(), userID, req.MenuItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartUpdateItem takes the line id as a raw string so that lines with a
// malformed id can still be edited or removed.
func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		itemID, err := cartItemParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req UpdateCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateQuantity(r.Context(), userID, itemID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		itemID, err := cartItemParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Remove(r.Context(), userID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func cartItemParam(r *http.Request) (string, error) {
	itemID := validators.SanitizeString(chi.URLParam(r, "itemId"), maxCartItemIDLen)
	if itemID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").WithDetails(map[string]any{"field": "itemId"})
	}
	return itemID, nil
}
