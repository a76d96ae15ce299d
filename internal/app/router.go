package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ecoride/internal/handler"
	"ecoride/internal/middleware"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether a backing store is reachable.
type HealthChecker func(ctx context.Context) error

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RiderHandler  *handler.RiderHandler
	DriverHandler *handler.DriverHandler
	RideHandler   *handler.RideHandler
	PlanHandler   *handler.PlanHandler
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
	Logger        logrus.FieldLogger
	HealthChecks  map[string]HealthChecker
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	var responses middleware.ResponseStore
	if deps.RedisClient != nil {
		responses = deps.RedisClient
	}
	router.Use(middleware.IdempotencyMiddleware(responses, deps.Logger))

	router.GET("/health", healthHandler(deps.HealthChecks))

	v1 := router.Group("/v1")
	{
		riders := v1.Group("/riders")
		{
			riders.POST("/register", deps.RiderHandler.Register)
			riders.GET("/:id", deps.RiderHandler.GetRider)
			riders.GET("/:id/rides", deps.RideHandler.GetHistory)
			riders.GET("/:id/rides/active", deps.RideHandler.GetActiveRide)
			riders.GET("/:id/eco-stats", deps.RideHandler.GetEcoStats)
			riders.GET("/:id/recommended-plan", deps.PlanHandler.Recommend)
		}

		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}

		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.GET("/:id/receipt", deps.RideHandler.Receipt)
			rides.POST("/:id/searching", deps.RideHandler.MarkSearching)
			rides.POST("/:id/assign", deps.RideHandler.AssignDriver)
			rides.POST("/:id/arriving", deps.RideHandler.MarkDriverArriving)
			rides.POST("/:id/arrived", deps.RideHandler.MarkDriverArrived)
			rides.POST("/:id/start", deps.RideHandler.StartRide)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.PUT("/:id/distance", deps.RideHandler.UpdateActualDistance)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/fail", deps.RideHandler.FailRide)
			rides.POST("/:id/location", deps.RideHandler.RecordLocation)
			rides.POST("/:id/rating", deps.RideHandler.RateRide)
			rides.POST("/:id/sos", deps.RideHandler.ActivateSOS)
		}

		plans := v1.Group("/plans")
		{
			plans.POST("", deps.PlanHandler.CreatePlan)
			plans.GET("", deps.PlanHandler.ListAvailable)
			plans.GET("/:id", deps.PlanHandler.GetPlan)
			plans.GET("/:id/price", deps.PlanHandler.Quote)
			plans.GET("/:id/eligibility/:riderId", deps.PlanHandler.CheckEligibility)
			plans.POST("/:id/subscribers", deps.PlanHandler.AddSubscriber)
			plans.DELETE("/:id/subscribers", deps.PlanHandler.RemoveSubscriber)
			plans.PUT("/:id/recommended", deps.PlanHandler.SetRecommended)
			plans.POST("/:id/redeem", deps.PlanHandler.RedeemDiscount)
			plans.PUT("/:id/rates", deps.PlanHandler.UpdateRates)
		}
	}

	return router
}

// healthHandler reports 503 when any backing store is down.
func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "components": components})
	}
}

// requestLogger logs one structured line per request.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
