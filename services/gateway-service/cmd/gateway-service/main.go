package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/staffsync/libs/auth"
	"github.com/md-rashed-zaman/staffsync/libs/config"
	"github.com/md-rashed-zaman/staffsync/libs/grpcx"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/libs/metrics"
	otelx "github.com/md-rashed-zaman/staffsync/libs/otel"
	"github.com/md-rashed-zaman/staffsync/libs/runtime"
	"github.com/md-rashed-zaman/staffsync/services/gateway-service/internal/docs"
	"github.com/md-rashed-zaman/staffsync/services/gateway-service/internal/proxy"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	Name               string        `env:"SERVICE_NAME"`
	Port               string        `env:"PORT"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	EmployeeServiceURL string        `env:"EMPLOYEE_SERVICE_URL" envDefault:"http://employee-service:8081"`
	ProjectServiceURL  string        `env:"PROJECT_SERVICE_URL" envDefault:"http://project-service:8082"`
	AssignmentURL      string        `env:"ASSIGNMENT_SERVICE_URL" envDefault:"http://assignment-service:8083"`
	PeerGRPCAddrs      []string      `env:"PEER_GRPC_ADDRS" envSeparator:","`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	BodyLimitBytes     int64         `env:"REQUEST_BODY_LIMIT_BYTES" envDefault:"1048576"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AuthHS256Secret    string        `env:"AUTH_HS256_SECRET"`
	AuthJWKSURL        string        `env:"AUTH_JWKS_URL"`
	AuthIssuer         string        `env:"AUTH_ISSUER"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg, map[string]string{
		"SERVICE_NAME": "gateway-service",
		"PORT":         "8080",
	}); err != nil {
		panic(err)
	}
	if err := config.Port("PORT", cfg.Port); err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Name, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Name))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	api, err := proxy.New([]proxy.Route{
		{Prefix: "employees", Upstream: cfg.EmployeeServiceURL},
		{Prefix: "projects", Upstream: cfg.ProjectServiceURL},
		{Prefix: "assignments", Upstream: cfg.AssignmentURL},
		{Prefix: "saga-runs", Upstream: cfg.AssignmentURL},
	}, logger)
	if err != nil {
		logger.Error("invalid routes", "err", err)
		os.Exit(1)
	}

	var checks []runtime.ReadyCheck
	for _, addr := range cfg.PeerGRPCAddrs {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			logger.Error("peer dial failed", "addr", addr, "err", err)
			continue
		}
		defer conn.Close()
		checks = append(checks, runtime.ReadyCheck{Name: addr, Check: grpcx.HealthCheck(conn)})
	}

	var rateLimitMW httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "staffsync:rl:gateway")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: rl.Ping})
		rateLimitMW = rl.Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute, "redis_addr", cfg.RedisAddr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	var verifier *auth.Verifier
	switch {
	case cfg.AuthHS256Secret != "":
		verifier = auth.NewHS256Verifier(cfg.AuthHS256Secret, cfg.AuthIssuer)
	case cfg.AuthJWKSURL != "":
		jwks := auth.NewJWKSClient(cfg.AuthJWKSURL, 5*time.Minute, httpx.NewClient(5*time.Second))
		verifier = auth.NewJWKSVerifier(jwks, cfg.AuthIssuer)
	default:
		logger.Warn("bearer auth disabled at the edge (no AUTH_HS256_SECRET or AUTH_JWKS_URL)")
	}

	base := runtime.NewBaseMux(metrics.Handler(), checks...)
	r := chi.NewRouter()
	r.Handle("/healthz", base)
	r.Handle("/readyz", base)
	r.Handle("/metrics", base)
	if err := docs.Register(r); err != nil {
		logger.Error("api docs unavailable", "err", err)
		os.Exit(1)
	}
	r.With(auth.Require(verifier), rateLimitMW).Mount("/api/v1", api)

	handler := httpx.Chain(r,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithMetrics,
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: cfg.CORSAllowedOrigins}),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(handler, "gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
