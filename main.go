package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventspark/backend-booking/internal/gateway"
	"github.com/eventspark/backend-booking/internal/handler"
	"github.com/eventspark/backend-booking/internal/metrics"
	"github.com/eventspark/backend-booking/internal/repository"
	"github.com/eventspark/backend-booking/internal/service"
	"github.com/eventspark/backend-booking/pkg/config"
	"github.com/eventspark/backend-booking/pkg/database"
	"github.com/eventspark/backend-booking/pkg/logger"
	"github.com/eventspark/backend-booking/pkg/middleware"
	pkgredis "github.com/eventspark/backend-booking/pkg/redis"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       logLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting booking service", zap.String("version", cfg.App.Version))

	ctx := context.Background()

	// Telemetry
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if err := metrics.Init(); err != nil {
		appLog.Warn("failed to initialize metrics", zap.Error(err))
	}

	// Database
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("database connected",
		zap.Int32("min_conns", cfg.Database.MinConns),
		zap.Int32("max_conns", cfg.Database.MaxConns),
	)

	// Redis (idempotency store)
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLog.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()
	appLog.Info("redis connected")

	// Kafka notifier, falling back to no-op when unavailable
	var notifier service.Notifier
	notifier, err = service.NewKafkaNotifier(ctx, &service.KafkaNotifierConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn("kafka connection failed, using no-op notifier", zap.Error(err))
		notifier = service.NewNoOpNotifier()
	} else {
		appLog.Info("kafka notifier connected", zap.String("topic", cfg.Kafka.Topic))
	}
	defer notifier.Close()

	// Payment gateway
	var paymentGateway gateway.PaymentGateway
	if cfg.Stripe.UseMock {
		appLog.Warn("using mock payment gateway")
		paymentGateway = gateway.NewMockGateway()
	} else {
		paymentGateway, err = gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.Stripe.SuccessURL,
			CancelURL:     cfg.Stripe.CancelURL,
		})
		if err != nil {
			appLog.Fatal("failed to initialize stripe gateway", zap.Error(err))
		}
	}

	// Repositories
	bookingRepo := repository.NewPostgresBookingRepository(db.Pool())
	inventoryRepo := repository.NewPostgresInventoryRepository(db.Pool())

	// Services
	checkoutService := service.NewCheckoutService(bookingRepo, inventoryRepo, paymentGateway, notifier, &service.CheckoutServiceConfig{
		MaxAttempts:     cfg.Booking.CheckoutMaxAttempts,
		Backoff:         cfg.Booking.CheckoutBackoff,
		SuccessURL:      cfg.Stripe.SuccessURL,
		CancelURL:       cfg.Stripe.CancelURL,
		DefaultCurrency: cfg.Booking.DefaultCurrency,
	})
	reconcilerService := service.NewReconcilerService(bookingRepo, inventoryRepo, paymentGateway, notifier)
	cancellationService := service.NewCancellationService(bookingRepo, inventoryRepo, paymentGateway, notifier, &service.CancellationServiceConfig{
		Deadline: cfg.Booking.CancellationDeadline,
	})

	// Handlers
	bookingHandler := handler.NewBookingHandler(checkoutService, reconcilerService, cancellationService, bookingRepo)
	webhookHandler := handler.NewWebhookHandler(reconcilerService, cfg.Stripe.WebhookSecret)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient.Client())
	idempotent := middleware.IdempotencyMiddleware(idempotencyConfig)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", idempotent, bookingHandler.StartCheckout)
		v1.POST("/checkout/:id/retry", bookingHandler.RetryCheckout)

		bookings := v1.Group("/bookings")
		{
			bookings.POST("/:id/confirm", bookingHandler.ConfirmBooking)
			bookings.POST("/:id/cancel", idempotent, bookingHandler.CancelBooking)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.GET("/reference/:ref", bookingHandler.GetBookingByReference)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info("booking service listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal("server forced to shutdown", zap.Error(err))
	}

	appLog.Info("server exited gracefully")
}
