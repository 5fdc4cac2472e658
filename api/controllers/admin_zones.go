package controllers

import (
	"net/http"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/api/validators"
	"github.com/angelmondragon/foodorder-backend/internal/zones"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// AdminZonesList includes inactive zones.
func AdminZonesList(svc zones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "zones")
			return
		}
		items, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func AdminZoneCreate(svc zones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "zones")
			return
		}
		var req zones.Request
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		zone, err := svc.Create(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, zone)
	}
}

func AdminZoneUpdate(svc zones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "zones")
			return
		}
		id, err := validators.ParseUUIDParam(r, "zoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req zones.Request
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		zone, err := svc.Update(r.Context(), id, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, zone)
	}
}

func AdminZoneToggle(svc zones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "zones")
			return
		}
		id, err := validators.ParseUUIDParam(r, "zoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		zone, err := svc.Toggle(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, zone)
	}
}

func AdminZoneDelete(svc zones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "zones")
			return
		}
		id, err := validators.ParseUUIDParam(r, "zoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
