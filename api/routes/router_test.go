package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodorder-backend/api/middleware"
	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/internal/reports"
	pkgAuth "github.com/angelmondragon/foodorder-backend/pkg/auth"
	"github.com/angelmondragon/foodorder-backend/pkg/auth/session"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
)

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAdmins map[uuid.UUID]bool

func (s stubAdmins) IsAdmin(ctx context.Context, userID uuid.UUID) bool {
	return s[userID]
}

type stubMenu struct {
	menu.Service
}

func (stubMenu) Menu(ctx context.Context) menu.Snapshot {
	return menu.Snapshot{Categories: []menu.CategoryView{{Slug: "mains", Name: "Mains"}}}
}

type stubReports struct{}

func (stubReports) Build(ctx context.Context, period reports.Period, now time.Time) (*reports.Summary, error) {
	return &reports.Summary{Period: period}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "foodorder-test", ExpirationMinutes: 10},
	}
}

func mint(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "diner@example.com",
		Role:   enums.UserRoleCustomer,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return token
}

func newTestRouter(t *testing.T, admins stubAdmins) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Sessions: stubSessions{},
		Roles:    admins,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Menu:     stubMenu{},
		Reports:  stubReports{},
	})
	return router, cfg
}

func TestRouterRegistersEveryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, stubAdmins{})
	mux, ok := router.(chi.Routes)
	require.True(t, ok)

	registered := map[string]bool{}
	require.NoError(t, chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		registered[method+" "+route] = true
		return nil
	}))

	expected := []string{
		"GET /health/live",
		"GET /health/ready",
		"GET /metrics",
		"GET /api/public/menu",
		"GET /api/public/zones",
		"GET /api/public/contact",
		"GET /api/public/contact/qr.png",
		"POST /api/v1/auth/signup",
		"POST /api/v1/auth/signin",
		"POST /api/v1/auth/signout",
		"POST /api/v1/auth/refresh",
		"GET /api/v1/auth/session",
		"GET /api/v1/cart/",
		"DELETE /api/v1/cart/",
		"POST /api/v1/cart/items",
		"PATCH /api/v1/cart/items/{itemId}",
		"DELETE /api/v1/cart/items/{itemId}",
		"GET /api/v1/profile",
		"PUT /api/v1/profile",
		"POST /api/v1/checkout",
		"POST /api/v1/checkout/quote",
		"GET /api/v1/orders/",
		"GET /api/v1/orders/stream",
		"GET /api/v1/orders/{orderId}",
		"POST /api/v1/orders/{orderId}/cancel",
		"GET /api/v1/notifications/",
		"POST /api/v1/notifications/read-all",
		"POST /api/v1/notifications/{notificationId}/read",
		"GET /api/admin/v1/menu-items/",
		"POST /api/admin/v1/menu-items/{itemId}/toggle",
		"PUT /api/admin/v1/categories/{categoryId}",
		"POST /api/admin/v1/coupons/{couponId}/toggle",
		"DELETE /api/admin/v1/zones/{zoneId}",
		"PATCH /api/admin/v1/orders/{orderId}/status",
		"GET /api/admin/v1/orders/stream",
		"GET /api/admin/v1/reports",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestPublicMenuNeedsNoToken(t *testing.T) {
	router, _ := newTestRouter(t, stubAdmins{})
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/public/menu", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestCustomerRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, stubAdmins{})
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	var body struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, middleware.SignInPath, body.Error.Details["redirect"])
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	router, cfg := newTestRouter(t, stubAdmins{})
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAdminRoutesAllowResolvedAdmins(t *testing.T) {
	adminID := uuid.New()
	router, cfg := newTestRouter(t, stubAdmins{adminID: true})
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/reports?period=30d", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, cfg, adminID))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var body struct {
		Data reports.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, reports.Period30Days, body.Data.Period)
}

func TestMetricsEndpointExportsRequests(t *testing.T) {
	router, _ := newTestRouter(t, stubAdmins{})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "/health/live")
}
