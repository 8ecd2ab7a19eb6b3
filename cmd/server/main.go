package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	linkapi "go.pilab.hu/adlink/api/echo"
	"go.pilab.hu/adlink/cache"
	cacheredis "go.pilab.hu/adlink/cache/redis"
	"go.pilab.hu/adlink/config"
	"go.pilab.hu/adlink/domain"
	"go.pilab.hu/adlink/internal/linking"
	"go.pilab.hu/adlink/internal/metrics"
	"go.pilab.hu/adlink/internal/platform"
	"go.pilab.hu/adlink/log"
	"go.pilab.hu/adlink/middleware"
	"go.pilab.hu/adlink/mongodb"
	"go.pilab.hu/adlink/tracing"
)

var (
	appLogger      log.Logger
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallbackLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallbackLog.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting adlink server...", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"cache_backend": cfg.CacheBackend,
		"log_level":     cfg.LogLevel,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db, err := mongodb.GetDatabase()
	if err != nil {
		appLogger.Fatal(ctx, "Failed to get MongoDB database handle", err, nil)
	}

	credRepo, err := mongodb.NewCredentialRepositoryMongo(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize CredentialRepository", err, nil)
	}
	selectionRepo, err := mongodb.NewSelectionRepositoryMongo(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize SelectionRepository", err, nil)
	}

	var resourceCache domain.ResourceCache
	switch cfg.CacheBackend {
	case "redis":
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			appLogger.Fatal(ctx, "Failed to ping Redis", pingErr, nil)
		}
		resourceCache = cacheredis.NewResourceCache(redisClient, "adlink", cfg.ResourceCacheTTL())
	default:
		resourceCache = cache.NewMemoryResourceCache(cfg.ResourceCacheTTL())
	}

	platformClient, err := platform.NewClient(platform.Config{
		ClientID:     cfg.PlatformClientID,
		ClientSecret: cfg.PlatformClientSecret,
		RedirectURL:  cfg.PlatformRedirectURL,
		GraphURL:     cfg.PlatformGraphURL,
	}, nil)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize platform client", err, nil)
	}

	exchanger := linking.NewExchanger(platformClient, credRepo, appLogger)
	discovery := linking.NewDiscovery(platformClient, appLogger)
	orchestrator := linking.NewOrchestrator(discovery, resourceCache, appLogger)
	orchestrator.RetryDelay = cfg.DiscoveryRetryDelay()
	orchestrator.HardTimeout = cfg.DiscoveryTimeout()
	orchestrator.MaxRetries = cfg.DiscoveryMaxRetries
	manager := linking.NewManager(credRepo, discovery, orchestrator, resourceCache, appLogger)
	submitter := linking.NewSubmitter(selectionRepo, resourceCache, appLogger)

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := linkapi.NewLinkAPI(exchanger, manager, submitter, credRepo, selectionRepo, func(c echo.Context) error {
		return mongodb.Ping(c.Request().Context())
	})
	api.RegisterRoutes(e, middleware.SessionAuth([]byte(cfg.SessionJWTSecret)))

	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
		}
	}

	if err := mongodb.Disconnect(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "MongoDB disconnect error", err, nil)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
