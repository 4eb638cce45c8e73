package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler   *handler.OrderHandler
	TripHandler    *handler.TripHandler
	VehicleHandler *handler.VehicleHandler
	WalletHandler  *handler.WalletHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Order and dispatch routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("", deps.OrderHandler.GetAll)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.POST("/:id/dispatch", deps.OrderHandler.DispatchOrder)
			orders.POST("/:id/accept", deps.OrderHandler.AcceptOrder)
			orders.POST("/:id/cancel", deps.OrderHandler.CancelOrder)

			orders.POST("/:id/trip/start", deps.TripHandler.StartTrip)
			orders.POST("/:id/trip/arrive", deps.TripHandler.ArriveTrip)
			orders.POST("/:id/trip/board", deps.TripHandler.BoardTrip)
			orders.POST("/:id/trip/complete", deps.TripHandler.CompleteTrip)
		}

		// Driver chat replies.
		v1.POST("/dispatch/replies", deps.OrderHandler.SubmitReply)

		// Vehicle fleet routes.
		vehicles := v1.Group("/vehicles")
		{
			vehicles.POST("", deps.VehicleHandler.RegisterVehicle)
			vehicles.GET("", deps.VehicleHandler.GetAll)
			vehicles.GET("/:id", deps.VehicleHandler.GetVehicle)
			vehicles.PUT("/:id/location", deps.VehicleHandler.ReportLocation)
			vehicles.POST("/:id/offline", deps.VehicleHandler.GoOffline)

			vehicles.GET("/:id/wallet", deps.WalletHandler.GetBalance)
			vehicles.GET("/:id/wallet/logs", deps.WalletHandler.GetLogs)
			vehicles.POST("/:id/wallet/topup", deps.WalletHandler.Topup)
		}
	}

	return router
}
