package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/config"
	"github.com/iliyamo/cruise-services/internal/handler"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/middleware"
	"github.com/iliyamo/cruise-services/internal/ratelimit"
)

// Deps is everything Register needs.  Limiters and the Redis client are
// optional: a nil limiter disables that throttle, a nil client disables
// the catalog cache.
type Deps struct {
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	Orders   *handler.OrderHandler
	Items    *handler.ItemHandler
	Health   handler.Health

	Resolver   middleware.Resolver
	CookieName string
	Log        *logger.Logger

	RateLimit    config.RateLimitConfig
	APILimiter   ratelimit.Limiter
	LoginLimiter ratelimit.Limiter

	Cache config.CacheConfig
	Redis redis.Cmdable
}

// Register installs the global middleware chain and every route.
func Register(e *echo.Echo, d Deps) {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.BodyLimit("1M"))
	// resolve the caller before throttling so per-user keys work
	e.Use(middleware.Identify(d.Resolver, d.CookieName))
	e.Use(middleware.RateLimit(d.RateLimit, d.APILimiter, middleware.APIRateKey(d.RateLimit), log))

	e.GET("/healthz", d.Health.Check)

	registerAuth(e, d, log)
	registerBookings(e, d.Bookings)
	registerOrders(e, d.Orders)
	registerItems(e, d, log)
}

func registerAuth(e *echo.Echo, d Deps, log *logger.Logger) {
	a := d.Auth
	loginLimit := middleware.RateLimit(d.RateLimit, d.LoginLimiter, middleware.LoginRateKey, log)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, loginLimit)
	g.POST("/refresh", a.Refresh)
	// logout works with a refresh token alone, so no auth gate here
	g.POST("/logout", a.Logout)

	v1 := e.Group("/v1")
	auth := middleware.RequireAuth()
	v1.GET("/me", a.Me, auth)
	v1.PATCH("/me", a.UpdateMe, auth)

	admin := middleware.RequireCapability(authz.CanManageUsers)
	v1.PATCH("/users/:id/role", a.ChangeRole, admin)
	v1.PATCH("/users/:id/status", a.SetStatus, admin)
}

func registerBookings(e *echo.Echo, b *handler.BookingHandler) {
	auth := middleware.RequireAuth()
	g := e.Group("/v1/bookings")
	g.GET("", b.List, auth)
	g.POST("", b.Create, auth)
	g.GET("/stats", b.Stats, middleware.RequireCapability(authz.CanViewStats))
	g.GET("/:id", b.Get, auth)
	g.PATCH("/:id", b.Update, auth)
	g.PATCH("/:id/cancel", b.Cancel, auth)
	g.PATCH("/:id/status", b.Status, middleware.RequireCapability(authz.CanManageBookings))
	g.PATCH("/:id/checkin", b.CheckIn, middleware.RequireCapability(authz.CanCheckIn))
	g.GET("/:id/boarding-pass", b.BoardingPass, auth)
}

func registerOrders(e *echo.Echo, o *handler.OrderHandler) {
	auth := middleware.RequireAuth()
	g := e.Group("/v1/orders")
	g.POST("", o.Create, auth)
	g.GET("/mine", o.Mine, auth)
	g.GET("", o.List, middleware.RequireCapability(authz.CanViewAllOrders))
	g.GET("/stats", o.Stats, middleware.RequireCapability(authz.CanViewStats))
	g.GET("/:id", o.Get, auth)
	g.PATCH("/:id/status", o.Status, middleware.RequireCapability(authz.CanUpdateOrderStatus))
	g.PATCH("/:id/cancel", o.Cancel, auth)
}

func registerItems(e *echo.Echo, d Deps, log *logger.Logger) {
	i := d.Items
	cache := middleware.ResponseCache(d.Cache, d.Redis, log)
	manage := middleware.RequireCapability(authz.CanManageCatalog)

	g := e.Group("/v1/items")
	// public reads, served from the cache when Redis is available
	g.GET("", i.Query, cache)
	g.GET("/categories", i.Categories, cache)
	g.GET("/stats", i.Stats, middleware.RequireCapability(authz.CanViewStats))
	g.GET("/:id", i.Get, cache)

	g.POST("", i.Create, manage)
	g.PUT("/:id", i.Update, manage)
	g.DELETE("/:id", i.Delete, middleware.RequireCapability(authz.CanDeleteCatalog))
	g.PATCH("/:id/availability", i.Availability, manage)
	g.PATCH("/:id/stock", i.Stock, manage)
}
