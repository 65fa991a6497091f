package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/attestream/indexer/internal/adapter"
	"github.com/attestream/indexer/internal/api/middleware"
	"github.com/attestream/indexer/internal/api/server"
	"github.com/attestream/indexer/internal/block"
	"github.com/attestream/indexer/internal/config"
	"github.com/attestream/indexer/internal/decoder"
	"github.com/attestream/indexer/internal/live"
	"github.com/attestream/indexer/internal/logger"
	"github.com/attestream/indexer/internal/poller"
	"github.com/attestream/indexer/internal/preview"
	"github.com/attestream/indexer/internal/projection"
	"github.com/attestream/indexer/internal/providers/eas"
	"github.com/attestream/indexer/internal/resolver"
	"github.com/attestream/indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "indexer",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Attestream Indexer")

	// Resolve schema set
	schemas, err := cfg.Schemas.SchemaSet()
	if err != nil {
		logger.FatalCtx(ctx, "Invalid schema configuration", zap.Error(err))
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("dsn", cfg.Database.DSN()))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize stores
	dataStore := store.NewPGStore(db)
	checkpoints := store.NewCheckpointStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(30 * time.Second)
	ethDialer := adapter.NewEthClientDialer()

	registryContract := common.HexToAddress(cfg.Ethereum.RegistryContract)

	// RPC client serves the poll path: log range filters and point lookups
	rpcEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err), zap.String("rpc_url", cfg.Ethereum.RPCURL))
	}
	rpcClient := eas.NewClient(registryContract, rpcEthClient)
	defer rpcClient.Close()

	// WebSocket client serves the live tail subscription
	wsEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.WebSocketURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum WebSocket", zap.Error(err), zap.String("websocket_url", cfg.Ethereum.WebSocketURL))
	}
	wsClient := eas.NewClient(registryContract, wsEthClient)
	defer wsClient.Close()
	logger.InfoCtx(ctx, "Connected to Ethereum", zap.String("registry", registryContract.Hex()))

	// Initialize block head provider
	headProvider := block.NewBlockHeadProvider(
		eas.NewBlockFetcher(rpcEthClient),
		block.Config{
			TTL:         cfg.Ethereum.BlockHeadTTL,
			StaleWindow: cfg.Ethereum.BlockHeadStaleWindow,
		},
		clockAdapter,
	)

	// Initialize resolution and projection pipeline
	attestationResolver := resolver.NewResolver(rpcClient, resolver.Config{
		RetryInterval: cfg.Resolver.RetryInterval,
		MaxAttempts:   cfg.Resolver.MaxAttempts,
	})
	payloadDecoder, err := decoder.NewDecoder(schemas)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to build schema decoder", zap.Error(err))
	}

	previewWorker := preview.NewWorker(ctx, dataStore, httpClient, cfg.Preview.Workers, cfg.Preview.QueueSize)
	defer previewWorker.Stop()

	proj := projection.NewProjection(dataStore, payloadDecoder, schemas, previewWorker)

	// Initialize poller and live tail
	eventPoller := poller.NewPoller(rpcClient, headProvider, attestationResolver, proj, checkpoints, schemas, poller.Config{
		Parallelism: cfg.Poller.Parallelism,
		StartBlock:  cfg.Ethereum.StartBlock,
	})
	liveTail := live.NewTail(wsClient, attestationResolver, proj, checkpoints, schemas)

	// Trigger server exposes the manual poll endpoint alongside the read API
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	authConfig := middleware.AuthConfig{
		JWTPublicKey: cfg.Auth.JWTPublicKey,
		APIKeys:      cfg.Auth.APIKeys,
	}
	srv := server.New(serverConfig, dataStore, eventPoller, authConfig)

	errCh := make(chan error, 2)

	// Start the live tail
	go func() {
		if err := liveTail.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("live tail stopped: %w", err)
		}
	}()

	// Start the trigger server
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("server stopped: %w", err)
		}
	}()

	// Wait for shutdown signal or component error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "indexer"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("component", "server"))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("Attestream Indexer stopped")
}
