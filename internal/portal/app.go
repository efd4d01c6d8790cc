package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/tenant_portal/internal/config"
	"github.com/R3E-Network/tenant_portal/internal/currency"
	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/middleware"
	"github.com/R3E-Network/tenant_portal/internal/platform/migrations"
	"github.com/R3E-Network/tenant_portal/internal/session"
	"github.com/R3E-Network/tenant_portal/internal/supabase"
	"github.com/R3E-Network/tenant_portal/internal/tenancy"
	"github.com/R3E-Network/tenant_portal/internal/tenants"
)

// Application wires the edge's dependencies from configuration and manages
// the HTTP server lifecycle.
type Application struct {
	cfg         *config.Config
	log         *logging.Logger
	httpServer  *http.Server
	fxRefresher *currency.Refresher
	rateLimiter *middleware.RateLimiter
	db          *sqlx.DB
	redis       *redis.Client

	cancelCleanup context.CancelFunc
}

// NewApplication constructs the application. Postgres and Redis are only
// dialled when configured.
func NewApplication(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	app := &Application{cfg: cfg, log: log}

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		app.redis = redis.NewClient(opts)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, caches will fall through")
		}
	}

	directory, err := app.buildDirectory(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	converter, err := app.buildCurrency()
	if err != nil {
		app.close()
		return nil, err
	}

	authClient := supabase.NewAuthClient(supabase.Config{
		URL:       cfg.Supabase.URL,
		AnonKey:   cfg.Supabase.AnonKey,
		JWTSecret: cfg.Supabase.JWTSecret,
	}, nil)
	var refresher session.Refresher = session.Noop
	if cfg.Supabase.URL != "" {
		refresher = session.NewSupabaseRefresher(authClient, session.SupabaseOptions{
			JWTSecret: cfg.Supabase.JWTSecret,
			Secure:    !cfg.IsDevelopment(),
		})
	} else {
		log.Warn("SUPABASE_URL not set, session refresh disabled")
	}

	app.rateLimiter = middleware.NewRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst, log)

	handler, err := NewHandler(Options{
		Logger:         log,
		Metrics:        metrics.New(true),
		Router:         tenancy.NewRouter(cfg.RoutingPolicy),
		Environment:    cfg.Environment(),
		Refresher:      refresher,
		RefreshTimeout: cfg.SessionRefreshTimeout,
		Verifier:       authClient,
		AccessCookie:   session.DefaultAccessCookie,
		Converter:      converter,
		Directory:      directory,
		CORS:           middleware.NewCORSMiddleware(cfg.CORSOrigins),
		RateLimiter:    app.rateLimiter,
		Upstream:       NewUpstreamProxy(upstream, log),
	})
	if err != nil {
		app.close()
		return nil, err
	}

	app.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return app, nil
}

func (a *Application) buildDirectory(ctx context.Context) (tenants.Directory, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("DATABASE_URL not set, tenant directory disabled")
		return nil, nil
	}
	db, err := tenants.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := migrations.Apply(ctx, db); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	var dir tenants.Directory = tenants.NewPostgresStore(db)
	if a.redis != nil {
		dir = tenants.NewCachedDirectory(a.redis, dir, a.cfg.TenantCacheTTL, a.log)
	}
	return dir, nil
}

func (a *Application) buildCurrency() (*currency.Converter, error) {
	provider, err := currency.NewHTTPProvider(nil, a.cfg.FX.APIURL, a.cfg.FX.APIKey, a.log)
	if err != nil {
		return nil, fmt.Errorf("configure exchange rate provider: %w", err)
	}

	cache := currency.NewRedisCache(nil, provider, a.cfg.FX.CacheTTL, a.log)
	if a.redis != nil {
		cache = currency.NewRedisCache(a.redis, provider, a.cfg.FX.CacheTTL, a.log)
	}

	a.fxRefresher, err = currency.NewRefresher(cache, a.cfg.FX.Bases, a.cfg.FX.RefreshSchedule, a.log)
	if err != nil {
		return nil, fmt.Errorf("configure exchange rate refresher: %w", err)
	}
	return currency.NewConverter(cache), nil
}

// Run starts background jobs and the HTTP server, and blocks until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.fxRefresher.Start(ctx); err != nil {
		return fmt.Errorf("start exchange rate refresher: %w", err)
	}

	cleanupCtx, cancel := context.WithCancel(context.Background())
	a.cancelCleanup = cancel
	a.rateLimiter.StartCleanup(cleanupCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.ListenAddr).Info("portal edge listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server and background jobs and closes connections.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.fxRefresher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fx refresher: %w", err))
	}
	if a.cancelCleanup != nil {
		a.cancelCleanup()
	}
	a.close()
	return errors.Join(errs...)
}

func (a *Application) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
}
