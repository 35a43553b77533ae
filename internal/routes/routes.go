package routes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/secureauth/secureauth/internal/account"
	"github.com/secureauth/secureauth/internal/config"
	"github.com/secureauth/secureauth/internal/lockout"
	"github.com/secureauth/secureauth/internal/metrics"
	"github.com/secureauth/secureauth/internal/middleware"
	"github.com/secureauth/secureauth/internal/notification"
	"github.com/secureauth/secureauth/internal/password"
	"github.com/secureauth/secureauth/internal/ratelimit"
	"github.com/secureauth/secureauth/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repo overrides the account store derived from DB.
	Repo account.Repository
	// Clock overrides time.Now for the service, token issuer and rate limiter.
	Clock func() time.Time
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}

	repo, err := accountRepository(d)
	if err != nil {
		return err
	}

	issuer, err := session.NewIssuer(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	issuer.WithClock(d.Clock)

	svc := account.NewService(repo,
		password.New(d.Cfg.BcryptCost, d.Cfg.AllowPrehashedPasswords),
		issuer,
		account.WithPolicy(lockout.NewPolicy(d.Cfg.LockoutThreshold, d.Cfg.LockoutWindow)),
		account.WithNotifier(notification.NewLoggerNotifier(d.Logger)),
		account.WithMetrics(d.Metrics),
		account.WithLogger(d.Logger),
		account.WithClock(d.Clock),
	)
	handler := account.NewHandler(svc)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.Cfg.CORSAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Probes and scrapes are registered ahead of the default limits.
	RegisterHealthRoutes(app, d, svc)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))

	var limiter middleware.Limiter
	if d.Cache != nil {
		limiter = ratelimit.New(d.Cache).WithClock(d.Clock)
	} else {
		d.Logger.Warn("redis unavailable, rate limiting disabled")
	}
	for _, l := range d.Cfg.DefaultRateLimits {
		app.Use(middleware.RateLimit(limiter, defaultRule(l), d.Metrics, d.Logger))
	}

	RegisterDiagnosticRoutes(app, d, svc)

	RegisterAccountRoutes(app, handler, AccountMiddleware{
		RegisterLimit: middleware.RateLimit(limiter, ratelimit.Rule{
			Name: "register", Limit: d.Cfg.RegisterRateLimit, Window: d.Cfg.RateLimitWindow,
		}, d.Metrics, d.Logger),
		LoginLimit: middleware.RateLimit(limiter, ratelimit.Rule{
			Name: "login", Limit: d.Cfg.LoginRateLimit, Window: d.Cfg.RateLimitWindow,
		}, d.Metrics, d.Logger),
		Idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		Auth:        middleware.BearerAuth(issuer),
	})

	return nil
}

func defaultRule(l config.RateLimit) ratelimit.Rule {
	return ratelimit.Rule{
		Name:   fmt.Sprintf("default_%d_per_%s", l.Limit, l.Window),
		Limit:  l.Limit,
		Window: l.Window,
	}
}

func accountRepository(d Deps) (account.Repository, error) {
	switch {
	case d.Repo != nil:
		return d.Repo, nil
	case d.DB != nil:
		return account.NewPostgresRepository(d.DB), nil
	case d.Cfg.IsDev():
		d.Logger.Warn("no database configured, using in-memory account store")
		return account.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
}
