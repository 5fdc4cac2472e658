package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/foodorder-backend/api/controllers"
	"github.com/angelmondragon/foodorder-backend/api/middleware"
	"github.com/angelmondragon/foodorder-backend/internal/auth"
	"github.com/angelmondragon/foodorder-backend/internal/cart"
	"github.com/angelmondragon/foodorder-backend/internal/checkout"
	"github.com/angelmondragon/foodorder-backend/internal/contact"
	"github.com/angelmondragon/foodorder-backend/internal/coupons"
	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/internal/notifications"
	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/internal/profiles"
	"github.com/angelmondragon/foodorder-backend/internal/reports"
	"github.com/angelmondragon/foodorder-backend/internal/zones"
	"github.com/angelmondragon/foodorder-backend/pkg/auth/session"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
	"github.com/angelmondragon/foodorder-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the middleware chain needs.
type RedisStore interface {
	redis.IdempotencyStore
	controllers.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Deps carries everything the router wires. Nil services answer 500 on
// their routes; nil Contact answers 404.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Sessions session.AccessSessionChecker
	Roles    middleware.AdminResolver
	Limiter  *middleware.IPRateLimiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Auth          auth.Service
	Menu          menu.Service
	Cart          cart.Service
	Profiles      profiles.Service
	Zones         zones.Service
	Coupons       coupons.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Notifications notifications.Service
	Reports       reports.Service
	Contact       *contact.Service
	Stream        controllers.StreamDeps
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	signInPolicy := middleware.NewAuthRateLimitPolicy(
		"signin",
		cfg.AuthRateLimit.SignInWindow,
		cfg.AuthRateLimit.SignInIPLimit,
		cfg.AuthRateLimit.SignInEmailLimit,
	)
	signUpPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignUpWindow,
		cfg.AuthRateLimit.SignUpIPLimit,
		cfg.AuthRateLimit.SignUpEmailLimit,
	)
	authenticate := middleware.Auth(cfg.JWT, d.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Limiter, logg))
		r.Get("/menu", controllers.PublicMenu(d.Menu, logg))
		r.Get("/zones", controllers.PublicZones(d.Zones, logg))
		r.Get("/contact", controllers.PublicContact(d.Contact, logg))
		r.Get("/contact/qr.png", controllers.PublicContactQR(d.Contact, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(signUpPolicy, d.Redis, logg)).Post("/signup", controllers.AuthSignUp(d.Auth, logg))
		r.With(middleware.AuthRateLimit(signInPolicy, d.Redis, logg)).Post("/signin", controllers.AuthSignIn(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(authenticate).Post("/signout", controllers.AuthSignOut(d.Auth, logg))
		r.With(authenticate).Get("/session", controllers.AuthSession(d.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Idempotency(d.Redis, logg))
		r.Use(middleware.RateLimit(d.Limiter, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Cart, logg))
			r.Delete("/", controllers.CartClear(d.Cart, logg))
			r.Post("/items", controllers.CartAddItem(d.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(d.Cart, logg))
		})

		r.Get("/profile", controllers.ProfileFetch(d.Profiles, logg))
		r.Put("/profile", controllers.ProfileUpsert(d.Profiles, logg))

		r.Post("/checkout", controllers.CheckoutSubmit(d.Checkout, logg))
		r.Post("/checkout/quote", controllers.CheckoutQuote(d.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(d.Orders, logg))
			r.Get("/stream", controllers.OrdersStream(d.Stream, logg))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(d.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireAdmin(d.Roles, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))
		r.Use(middleware.RateLimit(d.Limiter, logg))

		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", controllers.AdminMenuItemsList(d.Menu, logg))
			r.Post("/", controllers.AdminMenuItemCreate(d.Menu, logg))
			r.Put("/{itemId}", controllers.AdminMenuItemUpdate(d.Menu, logg))
			r.Delete("/{itemId}", controllers.AdminMenuItemDelete(d.Menu, logg))
			r.Post("/{itemId}/toggle", controllers.AdminMenuItemToggle(d.Menu, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.AdminCategoriesList(d.Menu, logg))
			r.Post("/", controllers.AdminCategoryCreate(d.Menu, logg))
			r.Put("/{categoryId}", controllers.AdminCategoryUpdate(d.Menu, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminCouponsList(d.Coupons, logg))
			r.Post("/", controllers.AdminCouponCreate(d.Coupons, logg))
			r.Put("/{couponId}", controllers.AdminCouponUpdate(d.Coupons, logg))
			r.Post("/{couponId}/toggle", controllers.AdminCouponToggle(d.Coupons, logg))
			r.Delete("/{couponId}", controllers.AdminCouponDelete(d.Coupons, logg))
		})

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", controllers.AdminZonesList(d.Zones, logg))
			r.Post("/", controllers.AdminZoneCreate(d.Zones, logg))
			r.Put("/{zoneId}", controllers.AdminZoneUpdate(d.Zones, logg))
			r.Post("/{zoneId}/toggle", controllers.AdminZoneToggle(d.Zones, logg))
			r.Delete("/{zoneId}", controllers.AdminZoneDelete(d.Zones, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(d.Orders, logg))
			r.Get("/stream", controllers.AdminOrdersStream(d.Stream, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(d.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(d.Orders, logg))
			r.Delete("/{orderId}", controllers.AdminOrderDelete(d.Orders, logg))
		})

		r.Get("/reports", controllers.AdminReports(d.Reports, logg))
	})

	return r
}
