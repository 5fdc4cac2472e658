package controllers

import (
	"net/http"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/api/validators"
	"github.com/angelmondragon/foodorder-backend/internal/checkout"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// CheckoutQuote prices the cart for the summary panel without writing.
func CheckoutQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		var req checkout.QuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), userID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutSubmit places the order. Replays are answered by the idempotency
// middleware.
func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		var req checkout.SubmitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithUserID(r.Context(), userID.String())
		result, err := svc.Submit(ctx, userID, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithOrderID(ctx, result.Order.ID.String())
		logg.Info(ctx, "checkout.submitted")
		responses.WriteCreated(w, result)
	}
}
