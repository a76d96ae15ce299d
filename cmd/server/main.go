package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ecoride/internal/app"
	"ecoride/internal/config"
	"ecoride/internal/handler"
	internalRedis "ecoride/internal/redis"
	"ecoride/internal/repository/mongodb"
	"ecoride/internal/repository/postgres"
	"ecoride/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// New Relic first so that the database and Redis clients get instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	mongoDB, err := app.NewMongoDB(ctx, cfg.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to mongodb")
	}
	defer mongoDB.Close()
	logger.WithField("database", cfg.Mongo.Database).Info("connected to MongoDB")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	planRepo := mongodb.NewPlanRepository(mongoDB.Client, mongoDB.Database)
	if err := planRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Fatal("failed to create plan indexes")
	}

	server := wireServer(db, mongoDB, planRepo, redisClient, nrApp, cfg, logger)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	mongoDB *app.MongoDB,
	planRepo *mongodb.PlanRepository,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *logrus.Logger,
) *http.Server {
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	riderRepo := postgres.NewRiderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)

	var surgeService *service.SurgeService
	if cfg.Pricing.SurgeEnabled {
		surgeCfg := service.DefaultSurgeConfig()
		surgeCfg.RadiusKm = cfg.Pricing.SurgeRadiusKm
		surgeService = service.NewSurgeService(locationStore, rideRepo, surgeCfg, logger.WithField("component", "surge"))
	}

	rideService := service.NewRideService(service.RideServiceDeps{
		Rides:          rideRepo,
		Drivers:        driverRepo,
		Tx:             postgres.NewTxManager(db),
		Locks:          lockStore,
		Locations:      locationStore,
		EcoCache:       cacheStore,
		Surge:          surgeService,
		Notifier:       service.NewNotificationService(logger.WithField("component", "notifier")),
		Logger:         logger.WithField("component", "rides"),
		BookingLockTTL: cfg.Pricing.BookingLockTTL,
	})
	driverService := service.NewDriverService(locationStore, driverRepo, logger.WithField("component", "drivers"))
	planService := service.NewPlanService(planRepo, riderRepo, rideRepo, logger.WithField("component", "plans"), nil)

	router := app.NewRouter(app.RouterDeps{
		RiderHandler:  handler.NewRiderHandler(riderRepo),
		DriverHandler: handler.NewDriverHandler(driverService, driverRepo),
		RideHandler:   handler.NewRideHandler(rideService),
		PlanHandler:   handler.NewPlanHandler(planService),
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
		Logger:        logger,
		HealthChecks: map[string]app.HealthChecker{
			"postgres": db.PingContext,
			"mongodb":  mongoDB.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
