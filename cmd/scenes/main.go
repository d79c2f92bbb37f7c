package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/internal/realtime"
	"github.com/gurbanow/traffic-map/internal/scenes"
	"github.com/gurbanow/traffic-map/internal/traffic"
	"github.com/gurbanow/traffic-map/pkg/common"
	"github.com/gurbanow/traffic-map/pkg/config"
	apperrors "github.com/gurbanow/traffic-map/pkg/errors"
	"github.com/gurbanow/traffic-map/pkg/eventbus"
	"github.com/gurbanow/traffic-map/pkg/logger"
	"github.com/gurbanow/traffic-map/pkg/middleware"
	redisClient "github.com/gurbanow/traffic-map/pkg/redis"
	ws "github.com/gurbanow/traffic-map/pkg/websocket"
)

const (
	serviceName = "scenes-service"
	version     = "1.0.0"
)

func main() {
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8084")
	}
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, serviceName); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting scenes service",
		zap.String("service", serviceName),
		zap.String("version", version),
	)

	// Error tracking is optional; the service runs without it
	sentryConfig := apperrors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := apperrors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer apperrors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized")
	}

	redis, err := redisClient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// A broken traffic engine makes the whole service useless, so engine
	// initialization failures are fatal.
	trafficSvc, err := traffic.NewService(trafficConfig(cfg), redis)
	if err != nil {
		logger.Fatal("Failed to initialize traffic engine", zap.Error(err))
	}
	logger.Info("Traffic engine initialized", zap.String("provider", string(trafficSvc.PrimaryProvider())))

	hub := ws.NewHub()
	go hub.Run()
	realtimeSvc := realtime.NewService(hub)

	var publisher scenes.EventPublisher
	if cfg.Events.Enabled {
		busCfg := eventbus.DefaultConfig()
		if cfg.Events.URL != "" {
			busCfg.URL = cfg.Events.URL
		}
		bus, err := eventbus.New(busCfg)
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without event publishing", zap.Error(err))
		} else {
			defer bus.Close()
			publisher = bus
			logger.Info("Connected to NATS", zap.String("url", busCfg.URL))
		}
	}

	repo := scenes.NewRedisRepository(redis, time.Duration(cfg.Session.Expiration)*time.Hour)
	sceneSvc := scenes.NewService(repo, trafficSvc, realtimeSvc, publisher, cfg.Traffic.RadiusMeters)
	sceneHandler := scenes.NewHandler(sceneSvc)
	realtimeHandler := realtime.NewHandler(realtimeSvc, hub, cfg.Session.Secret)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(common.NoRouteHandler())
	router.NoMethod(common.NoMethodHandler())
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := map[string]func() error{
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redis.Ping(ctx).Err()
		},
		"traffic": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for provider, err := range trafficSvc.HealthCheck(ctx) {
				if err != nil {
					return fmt.Errorf("%s: %w", provider, err)
				}
			}
			return nil
		},
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	// The WebSocket endpoint validates its token during the upgrade handshake
	realtimeHandler.RegisterRoutes(api)

	authed := api.Group("", middleware.SessionAuth(cfg.Session.Secret))
	sceneHandler.RegisterRoutes(authed)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// trafficConfig builds the traffic service configuration from the environment.
// The configured provider becomes primary; any other provider with an API key
// is kept as a fallback.
func trafficConfig(cfg *config.Config) traffic.Config {
	tc := traffic.DefaultConfig()
	tc.CacheTTLSeconds = cfg.Traffic.CacheTTLSeconds
	tc.DefaultRadiusMeters = cfg.Traffic.RadiusMeters

	breaker := cfg.Resilience.CircuitBreaker
	if breaker.Enabled {
		settings := breaker.SettingsFor(cfg.Traffic.Provider)
		tc.BreakerIntervalSeconds = settings.IntervalSeconds
		tc.BreakerTimeoutSeconds = settings.TimeoutSeconds
		tc.BreakerFailureThreshold = settings.FailureThreshold
		tc.BreakerSuccessThreshold = settings.SuccessThreshold
	}

	engines := map[traffic.Provider]traffic.EngineConfig{
		traffic.ProviderHERE: {
			Provider:       traffic.ProviderHERE,
			APIKey:         cfg.Traffic.HEREAPIKey,
			TimeoutSeconds: cfg.Traffic.TimeoutSeconds,
		},
		traffic.ProviderTomTom: {
			Provider:       traffic.ProviderTomTom,
			APIKey:         cfg.Traffic.TomTomAPIKey,
			TimeoutSeconds: cfg.Traffic.TimeoutSeconds,
		},
	}

	primary := traffic.Provider(cfg.Traffic.Provider)
	tc.Primary = engines[primary]
	for provider, engine := range engines {
		if provider != primary && engine.APIKey != "" {
			tc.Fallbacks = append(tc.Fallbacks, engine)
		}
	}

	return tc
}
