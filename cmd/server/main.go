package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yemba/grocery-core/config"
	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/catalog"
	"github.com/yemba/grocery-core/internal/idempotency"
	idemRepoPkg "github.com/yemba/grocery-core/internal/idempotency/repository"
	"github.com/yemba/grocery-core/internal/order"
	"github.com/yemba/grocery-core/internal/platform/broker"
	"github.com/yemba/grocery-core/internal/platform/cache"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"

	invH "github.com/yemba/grocery-core/internal/inventory/handler"
	invRepoPkg "github.com/yemba/grocery-core/internal/inventory/repository"
	invUCPkg "github.com/yemba/grocery-core/internal/inventory/usecase"

	ordEvents "github.com/yemba/grocery-core/internal/order/events"
	ordH "github.com/yemba/grocery-core/internal/order/handler"
	ordListenerPkg "github.com/yemba/grocery-core/internal/order/listener"
	ordRepoPkg "github.com/yemba/grocery-core/internal/order/repository"
	ordUCPkg "github.com/yemba/grocery-core/internal/order/usecase"

	procH "github.com/yemba/grocery-core/internal/procurement/handler"
	procRepoPkg "github.com/yemba/grocery-core/internal/procurement/repository"
	procUCPkg "github.com/yemba/grocery-core/internal/procurement/usecase"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     false,
		DisableStacktrace: false,
	}
	if cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	txManager := postgres.NewTxManager(db)

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka
	orderProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.OrdersTopic,
	})
	defer orderProducer.Close()

	courierConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.CourierTopic,
		GroupID: cfg.Kafka.CourierGroup,
	})
	defer courierConsumer.Close()
	appLogger.Info("Connected to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("orders_topic", cfg.Kafka.OrdersTopic),
		zap.String("courier_topic", cfg.Kafka.CourierTopic))

	// 6. Initialize Repositories
	invRepo := invRepoPkg.NewPGRepository(db)
	ordRepo := ordRepoPkg.NewPGRepository(db)
	procRepo := procRepoPkg.NewPGRepository(db)
	idemRepo := idemRepoPkg.NewPGRepository(db)

	// 7. Initialize UseCases
	invUC := invUCPkg.NewInventoryUseCase(invRepo, txManager, redisClient, appLogger)
	guard := idempotency.NewGuard(idemRepo, txManager)
	eventPublisher := ordEvents.NewPublisher(orderProducer, appLogger)
	ordUC := ordUCPkg.NewOrderUseCase(
		ordRepo,
		invUC,
		guard,
		txManager,
		catalog.NewPGPriceProvider(db),
		catalog.NewPGFeeProvider(db, cfg.Orders.DeliveryFee),
		nil,
		eventPublisher,
		appLogger,
	)
	procUC := procUCPkg.NewProcurementUseCase(procRepo, invUC, txManager, appLogger)

	// 8. Background work: courier listener and the stale-order sweep
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	courierListener := ordListenerPkg.NewCourierListener(courierConsumer, ordUC, redisClient, appLogger)
	go courierListener.Start(ctx)

	go runStaleOrderSweep(ctx, ordUC, cfg.Orders, appLogger)

	// 9. HTTP Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	invH.NewHTTPHandler(invUC, appLogger).Register(mux)
	ordH.NewHTTPHandler(ordUC, appLogger).Register(mux)
	procH.NewHTTPHandler(procUC, appLogger).Register(mux)

	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	server := &http.Server{
		Addr:         port,
		Handler:      auth.Middleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	appLogger.Info("Starting HTTP server", zap.String("port", port))

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// runStaleOrderSweep cancels orders stuck in PENDING_CONFIRMATION past the
// configured timeout until ctx is done.
func runStaleOrderSweep(ctx context.Context, ordUC order.UseCase, cfg config.OrdersConfig, log logger.ZapLogger) {
	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	timeout := time.Duration(cfg.ConfirmationTimeoutMinutes) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ordUC.CancelStalePending(ctx, timeout, cfg.SweepBatchSize)
			if err != nil {
				log.Error("stale order sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("stale order sweep cancelled orders", zap.Int("count", n))
			}
		}
	}
}
