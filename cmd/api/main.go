package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/api"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/archive"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/awsconf"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cascade"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cleanup"
	appconfig "github.com/amitayhanson-cloud/salon-platform-sub007/internal/config"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/inbound"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/messaging"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/observability/metrics"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/session"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/tenant"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salon platform API server", "env", cfg.Env, "port", cfg.Port)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconf.Load(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := awsconf.NewDynamoClient(awsCfg)

	// Stores
	bookingRepo := booking.NewRepository(dynamoClient, cfg.BookingsTable)
	sessionStore := session.NewStore(dynamoClient, cfg.SessionsTable, cfg.SessionTTL)
	siteStore := tenant.NewStore(dynamoClient, cfg.SitesTable)
	archiveStore := archive.NewStore(dynamoClient, cfg.ArchiveTable)

	// Services
	platformMetrics := metrics.NewPlatformMetrics(nil)
	candidateResolver := booking.NewResolver(bookingRepo, siteStore, logger)
	cascadeResolver := cascade.NewResolver(bookingRepo, cascade.TimeWindowStrategy{Window: cfg.CascadeWindow}, logger)
	lifecycleEngine := cleanup.NewEngine(cleanup.Config{
		Bookings:        bookingRepo,
		Archives:        archiveStore,
		Sites:           siteStore,
		Logger:          logger,
		PurgeBatchSize:  cfg.PurgeBatchSize,
		DefaultTimezone: cfg.CleanupTimezone,
	})
	interpreter := inbound.NewInterpreter(inbound.InterpreterConfig{
		Resolver:     candidateResolver,
		Sessions:     sessionStore,
		Bookings:     bookingRepo,
		Cascades:     cascadeResolver,
		MaxSelection: cfg.MaxSelectionSize,
		Logger:       logger,
	})
	sender := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)

	// Handlers
	webhookHandler := messaging.NewWebhookHandler(messaging.WebhookConfig{
		Interpreter:    interpreter,
		AuthToken:      cfg.TwilioWebhookSecret,
		WebhookURL:     cfg.PublicWebhookURL,
		DefaultCountry: cfg.DefaultCountryCode,
		Metrics:        platformMetrics,
		Logger:         logger,
	})
	adminHandler := api.NewAdminHandler(api.AdminConfig{
		Cascades:       cascadeResolver,
		Lifecycle:      lifecycleEngine,
		Bookings:       bookingRepo,
		Messenger:      sender,
		Metrics:        platformMetrics,
		MaxOccurrences: cfg.MaxOccurrences,
		Logger:         logger,
	})

	router := api.NewRouter(&api.RouterConfig{
		Logger:          logger,
		WebhookHandler:  webhookHandler,
		AdminHandler:    adminHandler,
		Sites:           siteStore,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
		WebhookRate:     cfg.WebhookRatePerSec,
		WebhookBurst:    cfg.WebhookRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
