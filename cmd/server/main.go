package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/config" // Internal config loader
	"github.com/iliyamo/cruise-services/internal/database"
	"github.com/iliyamo/cruise-services/internal/handler"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/middleware"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/queue"
	"github.com/iliyamo/cruise-services/internal/ratelimit"
	"github.com/iliyamo/cruise-services/internal/repository"
	"github.com/iliyamo/cruise-services/internal/repository/memory"
	"github.com/iliyamo/cruise-services/internal/router" // Internal router setup
	"github.com/iliyamo/cruise-services/internal/service"
	"github.com/iliyamo/cruise-services/internal/utils"
)

// stores is the persistence selected by STORAGE_BACKEND.
type stores struct {
	users    service.UserStore
	tokens   service.TokenStore
	items    service.ItemStore
	bookings service.BookingStore
	orders   service.OrderStore
	ping     func(ctx context.Context) error
	close    func() error
}

func main() {
	config.LoadDotEnv()
	cfg := config.Load() // Load environment config
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	log := logger.New(logger.Options{Dir: cfg.LogDir, Prefix: "cruise", MinLevel: logger.ParseLevel(cfg.LogLevel)})
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup", "storage: %v", err)
	}
	defer st.close()

	// Redis is optional: without it limits are per process and the
	// catalog is served uncached.
	var (
		apiLimiter, loginLimiter ratelimit.Limiter
		cache                    redis.Cmdable
	)
	if rdb, err := config.NewRedisClient(ctx); err != nil {
		log.Warn("startup", "redis unavailable (%v); using in-process rate limits and no cache", err)
		apiLimiter = ratelimit.NewMemoryFixedWindow(rlCfg.Limit, rlCfg.Window)
		loginLimiter = ratelimit.NewMemoryFixedWindow(rlCfg.LoginLimit, rlCfg.LoginWindow)
	} else {
		defer rdb.Close()
		apiLimiter = ratelimit.NewRedisFixedWindow(rdb, rlCfg.Prefix, rlCfg.Limit, rlCfg.Window)
		loginLimiter = ratelimit.NewRedisFixedWindow(rdb, rlCfg.Prefix, rlCfg.LoginLimit, rlCfg.LoginWindow)
		cache = rdb
	}

	var events service.EventPublisher = queue.Nop{}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitURL, log)
		defer pub.Close()
		events = pub
	}
	if cfg.AuditConsumerEnabled {
		audit := &queue.AuditConsumer{URL: cfg.RabbitURL, LogPath: cfg.AuditLogPath, Log: log}
		go func() {
			if err := audit.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit", "consumer stopped: %v", err)
			}
		}()
	}

	identity := service.NewIdentityService(service.IdentityConfig{
		Secret:         cfg.JWTSecret,
		AccessTTL:      time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, st.users, st.tokens, log)
	bookings := service.NewBookingService(st.bookings, cfg.AutoConfirmBookings, events, log)
	orders := service.NewOrderService(st.orders, st.items, st.bookings, service.OrderOptions{
		Pricing:        service.PricingPolicy{TaxRate: cfg.TaxRate, ServiceChargeRate: cfg.ServiceChargeRate},
		Workflow:       cfg.OrderWorkflow,
		RequireBooking: cfg.OrderRequiresBooking,
	}, events, log)
	catalog := service.NewCatalogService(st.items, log)
	catalog.OnChange = middleware.CachePurger(cacheCfg, cache, log)

	if err := ensureAdmin(ctx, cfg, st.users, log); err != nil {
		log.Fatal("startup", "bootstrap admin: %v", err)
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	router.Register(e, router.Deps{
		Auth:         handler.NewAuthHandler(identity, cfg.CookieName, cfg.IsProduction()),
		Bookings:     handler.NewBookingHandler(bookings, cfg.BoardingPassSize),
		Orders:       handler.NewOrderHandler(orders),
		Items:        handler.NewItemHandler(catalog),
		Health:       handler.Health{Backend: cfg.StorageBackend, Ping: st.ping},
		Resolver:     identity,
		CookieName:   cfg.CookieName,
		Log:          log,
		RateLimit:    rlCfg,
		APILimiter:   apiLimiter,
		LoginLimiter: loginLimiter,
		Cache:        cacheCfg,
		Redis:        cache,
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("startup", "listening on %s (env=%s, storage=%s, workflow=%s)", addr, cfg.Env, cfg.StorageBackend, cfg.OrderWorkflow.Name())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("startup", "server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown", "signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "graceful shutdown failed: %v", err)
	}
}

func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (stores, error) {
	if cfg.StorageBackend == "memory" {
		log.Warn("startup", "using in-memory storage; data is lost on exit")
		m := memory.New()
		return stores{
			users:    m.Users(),
			tokens:   m.Tokens(),
			items:    m.Items(),
			bookings: m.Bookings(),
			orders:   m.Orders(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return stores{}, err
	}
	if cfg.MigrateOnStart {
		if err := migrateUp(db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		log.Info("startup", "schema migrations applied")
	}
	return stores{
		users:    repository.NewUserRepo(db, cfg.Roles),
		tokens:   repository.NewTokenRepo(db),
		items:    repository.NewItemRepo(db),
		bookings: repository.NewBookingRepo(db),
		orders:   repository.NewOrderRepo(db),
		ping:     db.PingContext,
		close:    db.Close,
	}, nil
}

// migrateUp does not close the migrator, which would close db with it.
func migrateUp(db *sql.DB) error {
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	return m.Up()
}

// ensureAdmin creates the ADMIN_EMAIL account when it is configured and
// missing.  A fresh deployment has no other way to get a privileged user.
func ensureAdmin(ctx context.Context, cfg config.Config, users service.UserStore, log *logger.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	u := &model.User{
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		FirstName:    "Ship",
		LastName:     "Admin",
		Role:         authz.Admin,
		IsActive:     true,
	}
	if err := users.Create(ctx, u); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}
	log.Info("startup", "bootstrap admin %s ready", u.Email)
	return nil
}
