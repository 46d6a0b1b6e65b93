// Package bootstrap wires the pieces every service binary shares: logger,
// tracing, database, migrations, rate limiting, auth, readiness and the
// HTTP/gRPC servers.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/staffsync/libs/auth"
	"github.com/md-rashed-zaman/staffsync/libs/config"
	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/libs/grpcx"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/libs/kafkax"
	"github.com/md-rashed-zaman/staffsync/libs/metrics"
	otelx "github.com/md-rashed-zaman/staffsync/libs/otel"
	"github.com/md-rashed-zaman/staffsync/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

type App struct {
	Config   config.Service
	Logger   *slog.Logger
	Pool     *db.Pool
	Verifier *auth.Verifier

	health  *grpcx.HealthServer
	limiter httpx.Middleware
	checks  []runtime.ReadyCheck
	closers []func()
}

// New connects to every configured dependency. Call Close when done, even
// after an error.
func New(ctx context.Context, cfg config.Service, migrations fs.FS) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: runtime.NewLogger(cfg.Name, cfg.LogLevel),
	}

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Name))
	if err != nil {
		a.Logger.Error("otel setup failed", "err", err)
	} else {
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		})
	}

	if cfg.MigrateOnStart && migrations != nil {
		if err := db.MigrateUp(cfg.DatabaseURL, migrations); err != nil {
			return a, err
		}
		a.Logger.Info("migrations applied")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return a, fmt.Errorf("db connection failed: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)
	a.checks = append(a.checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

	if cfg.KafkaBrokers != "" {
		a.checks = append(a.checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	a.limiter = a.rateLimiter()
	a.Verifier = a.verifier()

	if cfg.GRPCPort != "" {
		a.health = grpcx.NewHealthServer(":"+cfg.GRPCPort, a.Logger)
	}
	return a, nil
}

func (a *App) rateLimiter() httpx.Middleware {
	window := time.Minute
	if a.Config.RedisAddr == "" {
		return httpx.NewRateLimiter(a.Config.RateLimitPerMinute, window).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	rl := httpx.NewRedisRateLimiter(rdb, a.Config.RateLimitPerMinute, window, "staffsync:rl:"+a.Config.Name)
	a.checks = append(a.checks, runtime.ReadyCheck{Name: "redis", Check: rl.Ping})
	return rl.Middleware(a.Logger, true)
}

func (a *App) verifier() *auth.Verifier {
	switch {
	case a.Config.AuthHS256Secret != "":
		return auth.NewHS256Verifier(a.Config.AuthHS256Secret, a.Config.AuthIssuer)
	case a.Config.AuthJWKSURL != "":
		jwks := auth.NewJWKSClient(a.Config.AuthJWKSURL, 5*time.Minute, httpx.NewClient(5*time.Second))
		return auth.NewJWKSVerifier(jwks, a.Config.AuthIssuer)
	default:
		a.Logger.Warn("bearer auth disabled (no AUTH_HS256_SECRET or AUTH_JWKS_URL)")
		return nil
	}
}

// AddReadyCheck registers an extra /readyz dependency, such as a peer service.
func (a *App) AddReadyCheck(name string, check func(context.Context) error) {
	a.checks = append(a.checks, runtime.ReadyCheck{Name: name, Check: check})
}

// Handler mounts api under /api/v1 behind auth, next to the health and metrics
// endpoints, and wraps everything in the shared middleware chain.
func (a *App) Handler(api http.Handler) http.Handler {
	base := runtime.NewBaseMux(metrics.Handler(), a.checks...)

	r := chi.NewRouter()
	r.Handle("/healthz", base)
	r.Handle("/readyz", base)
	r.Handle("/metrics", base)
	r.With(auth.Require(a.Verifier), a.limiter).Mount("/api/v1", api)

	h := httpx.Chain(r,
		httpx.WithRequestID,
		httpx.WithRecover(a.Logger),
		httpx.WithAccessLog(a.Logger),
		httpx.WithMetrics,
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: a.Config.CORSAllowedOrigins}),
		httpx.WithBodyLimit(maxBodyBytes),
	)
	return otelhttp.NewHandler(h, a.Config.Name)
}

// Run serves handler plus the gRPC health service (when GRPC_PORT is set)
// alongside the extra tasks until ctx is cancelled or a task fails.
func (a *App) Run(ctx context.Context, handler http.Handler, tasks ...runtime.Task) error {
	srv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	all := append([]runtime.Task{{Name: "http", Run: func(ctx context.Context) error {
		return serveHTTP(ctx, srv, a.Logger)
	}}}, tasks...)
	if a.health != nil {
		all = append(all, runtime.Task{Name: "grpc-health", Run: a.health.Run})
	}
	return runtime.RunTasks(ctx, a.Logger, all...)
}

func serveHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
