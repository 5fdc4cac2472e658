package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/api/validators"
	"github.com/angelmondragon/foodorder-backend/internal/reports"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// AdminReports builds the dashboard for ?period=7d|30d|all (default 7d).
func AdminReports(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "reports")
			return
		}
		period, err := validators.ParseQueryEnum(r, "period", reports.Period7Days, reports.Period7Days, reports.Period30Days, reports.PeriodAll)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Build(r.Context(), period, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
