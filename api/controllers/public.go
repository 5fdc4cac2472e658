package controllers

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/internal/contact"
	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/internal/zones"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// PublicMenu serves the current menu snapshot. A fallback snapshot is still a
// 200; the client shows the error banner from the payload.
func PublicMenu(svc menu.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "menu")
			return
		}
		snapshot := svc.Menu(r.Context())
		if snapshot.Fallback {
			w.Header().Set("X-Menu-Fallback", "true")
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func PublicZones(svc zones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "zones")
			return
		}
		items, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func PublicContact(svc *contact.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "contact not configured"))
			return
		}
		responses.WriteSuccess(w, svc.Info())
	}
}

// PublicContactQR renders the WhatsApp link as a PNG QR code.
func PublicContactQR(svc *contact.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "contact not configured"))
			return
		}
		png, err := svc.QRCode()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
