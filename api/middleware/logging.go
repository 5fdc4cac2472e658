package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// quietPrefixes are probe endpoints that would drown the request log.
var quietPrefixes = []string{"/health/", "/metrics"}

// Logging writes one line per finished request. 5xx responses log at warn so
// they stand out; streams log when the client disconnects.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range quietPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"method":      r.Method,
				"route":       routePattern(r),
				"path":        r.URL.Path,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			ctx := logg.WithFields(r.Context(), fields)
			if status >= http.StatusInternalServerError {
				logg.Warn(ctx, "request failed")
				return
			}
			logg.Info(ctx, "request")
		})
	}
}
