package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/quickhop/quickhop/internal/cache"
	"github.com/quickhop/quickhop/internal/config"
	"github.com/quickhop/quickhop/internal/database"
	"github.com/quickhop/quickhop/internal/events"
	"github.com/quickhop/quickhop/internal/handler"
	"github.com/quickhop/quickhop/internal/middleware"
	"github.com/quickhop/quickhop/internal/notify"
	"github.com/quickhop/quickhop/internal/repository"
	"github.com/quickhop/quickhop/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else {
			log.Println("New Relic initialized successfully")
			if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
				log.Printf("Warning: New Relic connection timeout: %v", err)
			}
		}
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgres(
		cfg.DatabaseURL,
		cfg.DBMaxConnections,
		cfg.DBMaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis
	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	// Initialize cache and change feed
	riderCache := cache.NewRiderStateCache(redis.Client)
	publisher := events.NewPublisher(redis.Client)

	// Initialize email notifier
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.EmailEnabled {
		notifier, err = notify.NewSESNotifier(context.Background(), cfg.AWSRegion, cfg.EmailFrom, cfg.TrackingURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize SES notifier: %v", err)
			notifier = notify.NopNotifier{}
		}
	}

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(db.DB)
	deliveryRepo := repository.NewDeliveryRepository(db.DB)
	dropOffRepo := repository.NewDropOffRepository(db.DB)
	requestRepo := repository.NewRequestRepository(db.DB)
	responseRepo := repository.NewResponseRepository(db.DB)
	claimStore := repository.NewClaimStore(db.DB, requestRepo, responseRepo, deliveryRepo, profileRepo)

	// Initialize services
	claimService := service.NewClaimService(
		claimStore,
		requestRepo,
		responseRepo,
		deliveryRepo,
		dropOffRepo,
		profileRepo,
		riderCache,
		publisher,
		time.Duration(cfg.RequestExpiryMinutes)*time.Minute,
	)
	deliveryService := service.NewDeliveryService(
		deliveryRepo,
		dropOffRepo,
		profileRepo,
		requestRepo,
		riderCache,
		notifier,
		publisher,
	)
	riderService := service.NewRiderService(profileRepo, deliveryRepo, dropOffRepo, riderCache)

	// Initialize handlers
	profileHandler := handler.NewProfileHandler(profileRepo)
	deliveryHandler := handler.NewDeliveryHandler(deliveryService, claimService)
	requestHandler := handler.NewRequestHandler(claimService)
	riderHandler := handler.NewRiderHandler(riderService)
	trackHandler := handler.NewTrackHandler(deliveryService)
	sseHandler := handler.NewSSEHandler(redis.Client)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// New Relic middleware
	if nrApp != nil {
		r.Use(middleware.NewRelicMiddleware(nrApp))
	}

	// Rate limiter (100 requests per minute per IP)
	rateLimiter := middleware.NewRateLimiter(redis.Client, 100, time.Minute)
	r.Use(rateLimiter.Handler)

	// Idempotency middleware
	idempotencyMw := middleware.NewIdempotencyMiddleware(redis.Client)
	r.Use(idempotencyMw.Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}

		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		profileHandler.RegisterRoutes(r)
		deliveryHandler.RegisterRoutes(r)
		requestHandler.RegisterRoutes(r)
		riderHandler.RegisterRoutes(r)
		trackHandler.RegisterRoutes(r)
		sseHandler.RegisterRoutes(r)
	})

	// Expiry sweep: unclaimed requests past their window become expired
	// so riders stop seeing them.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				expired, err := claimService.ExpireOverdueRequests(sweepCtx)
				if err != nil {
					log.Printf("Expiry sweep failed: %v", err)
					continue
				}
				if expired > 0 {
					log.Printf("Expired %d overdue delivery requests", expired)
				}
			}
		}
	}()

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST /v1/profiles                   - Create profile")
	log.Println("  POST /v1/deliveries                 - Create delivery + broadcast request")
	log.Println("  GET  /v1/requests                   - List open requests")
	log.Println("  POST /v1/requests/{id}/accept       - Claim a request")
	log.Println("  POST /v1/requests/{id}/reject       - Decline a request")
	log.Println("  GET  /v1/riders/{id}/delivery       - Rider's active delivery")
	log.Println("  POST /v1/drop-offs/{id}/delivered   - Mark drop-off delivered")
	log.Println("  GET  /v1/track/{trackingNumber}     - Public tracking")
	log.Println("  GET  /v1/events                     - SSE change feed")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
