package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	"dispatch/internal/maps"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, scheduler := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	// Park in-flight dispatch runs so a restart can pick them up.
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// dispatch scheduler (the latter needs its own shutdown).
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.DispatchScheduler) {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	orderRepo := postgres.NewOrderRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)
	walletRepo := postgres.NewWalletRepository(db)

	// Initialize services.
	fareEngine := service.NewFareEngine(cfg.Fare, cfg.Dispatch)
	planSource := service.NewStaticPlanSource(cfg.Plan)
	var estimator service.Estimator
	if cfg.Maps.APIKey != "" {
		est, err := maps.NewEstimator(cfg.Maps.APIKey)
		if err != nil {
			log.Printf("google maps estimator unavailable, falling back to haversine: %v", err)
			estimator = service.NewHaversineEstimator(cfg.Fare)
		} else {
			estimator = est
		}
	} else {
		estimator = service.NewHaversineEstimator(cfg.Fare)
	}

	ledger := service.NewWalletLedger(walletRepo)
	notifier := service.NewLogNotifier()
	events := service.NewEventBus()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, cfg.Dispatch)
	penalty := service.NewPenaltyTracker(vehicleRepo, cfg.Dispatch)
	scheduler := service.NewDispatchScheduler(
		orderRepo, vehicleRepo, selector, penalty, ledger, fareEngine,
		notifier, events, lockStore, cacheStore, db, cfg.Dispatch,
	)
	orderService := service.NewOrderService(orderRepo, fareEngine, estimator, planSource, cacheStore)
	tripService := service.NewTripService(
		orderRepo, vehicleRepo, ledger, fareEngine, estimator, planSource,
		notifier, events, cacheStore, db,
	)
	fleetService := service.NewFleetService(vehicleRepo, locationStore, cacheStore)

	// Initialize handlers.
	orderHandler := handler.NewOrderHandler(orderService, scheduler)
	tripHandler := handler.NewTripHandler(tripService)
	vehicleHandler := handler.NewVehicleHandler(fleetService)
	walletHandler := handler.NewWalletHandler(ledger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OrderHandler:   orderHandler,
		TripHandler:    tripHandler,
		VehicleHandler: vehicleHandler,
		WalletHandler:  walletHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	// Create HTTP server.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, scheduler
}
