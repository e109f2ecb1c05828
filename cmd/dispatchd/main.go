package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transport-dispatch-backend/config"
	"transport-dispatch-backend/internal/api"
	"transport-dispatch-backend/internal/cache"
	"transport-dispatch-backend/internal/db"
	"transport-dispatch-backend/internal/dispatch"
	"transport-dispatch-backend/internal/geo"
	"transport-dispatch-backend/internal/notification"
	"transport-dispatch-backend/internal/store"
	"transport-dispatch-backend/internal/tracker"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "dispatch-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notification fan-out consumes the events the store publishes on commit.
	dispatcher := notification.NewDispatcher(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	dispatcher.Start(ctx)

	requestCache := cache.New(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	appStore := store.New(gormDB, requestCache, dispatcher)
	logger.Println("data store initialized")

	// Poll the fleet feed in the background.
	trackerSvc := tracker.NewService(cfg)
	if cfg.Tracker.Enabled {
		go trackerSvc.Run(ctx)
	}

	geocoder := geo.NewHTTPGeocoder(cfg.Geocoder.URL, time.Duration(cfg.Geocoder.TimeoutSeconds)*time.Second)
	coordinator := dispatch.NewCoordinator(appStore, geocoder, trackerSvc, dispatch.Options{
		Candidates:      cfg.Dispatch.Candidates,
		ServiceDuration: time.Duration(cfg.Dispatch.ServiceDurationMinutes) * time.Minute,
		AverageSpeedKmh: cfg.Dispatch.AverageSpeedKmh,
	})

	// Initialize router
	router := api.NewRouter(&cfg.Server, appStore, coordinator, trackerSvc, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
