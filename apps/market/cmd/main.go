package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/api"
	"nftmarket/apps/market/internal/chain"
	"nftmarket/apps/market/internal/config"
	"nftmarket/apps/market/internal/event_publisher"
	"nftmarket/apps/market/internal/order"
	"nftmarket/apps/market/internal/repository"
)

func main() {
	// Initialize zap logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration from environment variables
	cfg := config.NewConfig()

	logger.Info("Starting application with configuration",
		zap.String("kafka_broker", cfg.KafkaBroker),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("exchange", cfg.ExchangeAddress.Hex()),
		zap.String("proxy_registry", cfg.ProxyRegistryAddress.Hex()),
		zap.String("payment_token", cfg.PaymentTokenAddress.Hex()),
		zap.Duration("chain_call_timeout", cfg.ChainCallTimeout),
		zap.Int("chain_max_attempts", cfg.ChainMaxAttempts),
		zap.Int("api_port", cfg.APIPort),
		zap.Duration("api_request_timeout", cfg.APIRequestTimeout),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	db, err := sql.Open("postgres", cfg.DbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize database tables
	if err := repository.InitMigration(ctx, db); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	orderRepository := repository.NewOrderRepository(db, logger)
	outboxRepository := repository.NewOutboxRepository(db, cfg.OutboxClaimLease, logger)

	client, err := ethclient.Dial(cfg.RpcURL)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum client", zap.Error(err))
	}
	defer client.Close()

	chainReader, err := chain.NewReader(client, chain.Options{
		ExchangeAddress:      cfg.ExchangeAddress,
		ProxyRegistryAddress: cfg.ProxyRegistryAddress,
		CallTimeout:          cfg.ChainCallTimeout,
		MaxAttempts:          cfg.ChainMaxAttempts,
		InitialBackoff:       cfg.ChainBackoffInitial,
		MaxBackoff:           cfg.ChainBackoffMax,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create chain reader", zap.Error(err))
	}

	builder, err := order.NewBuilder(cfg.ExchangeAddress, cfg.PaymentTokenAddress)
	if err != nil {
		logger.Fatal("Failed to create order builder", zap.Error(err))
	}
	service := order.NewService(orderRepository, chainReader, builder, logger)

	// Create event publisher
	eventPublisher, err := event_publisher.NewEventPublisher(cfg.KafkaBroker, cfg.KafkaTopic, cfg.OutboxPollInterval, logger, outboxRepository)
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer eventPublisher.Close()

	// Start event publisher in background
	go eventPublisher.StartPublishing(ctx)

	// Create and start API server
	apiServer := api.NewServer(cfg.APIPort, cfg.APIRequestTimeout, service, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Received shutdown signal, starting graceful shutdown...")
	stop()

	// Create a context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown API server gracefully
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}

	logger.Info("Application shutdown complete")
}
