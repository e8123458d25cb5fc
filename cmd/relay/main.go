package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/api"
	grpcserver "chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run owns every resource so deferred cleanup happens before the process exits.
// Cancelling ctx starts the graceful shutdown.
func run(ctx context.Context, args []string) (int, error) {
	// 1. Flags, configuration & logger
	var envFile string
	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "optional .env file loaded before reading the environment")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, nil
		}
		return exitConfig, err
	}

	config, err := internal.LoadConfig(envFile)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (in-memory Badger, Bluge)
	db, err := repositories.OpenInMemory()
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	if config.DebugPort > 0 {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, repositories.InspectMapper)
	}

	users, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = users.Close() }()

	index, err := repositories.NewUserIndex()
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	messages, closeMessages, err := openMessageLog(config, db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer closeMessages()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewCollector(registry)

	// 4. Supervision & orchestration
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, sup, runtime.NewRegistry(), users, messages, metrics,
		config.CommandBufferSize, config.SinkTimeout).
		WithQueueSampling(config.MetricInterval, config.LowCapacityThreshold)

	errChan := make(chan error, 3)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 5. HTTP: account API, websocket gateway, static files
	tokens := auth.NewTokens(config.JwtSecret, config.AuthTokenDuration)
	chat := services.NewChatService(orchestrator)
	accounts := services.NewAccountService(logger, users, index, tokens, orchestrator, config.AvatarMaxBytes)
	gateway := ws.NewGateway(logger, chat, ws.Options{
		AllowedOrigins: config.Origins(),
		MaxMessageSize: config.MaxMessageSize,
		BufferSize:     config.ConnectionBufferSize,
		PingInterval:   config.PingInterval,
		PongTimeout:    config.PongTimeout,
	})
	httpServer := &http.Server{
		Addr: config.Address(),
		Handler: api.NewRouter(logger, api.RouterDeps{
			Accounts:       accounts,
			Tokens:         tokens,
			Gateway:        gateway,
			Metrics:        observability.Handler(registry),
			Statuses:       metrics,
			AllowedOrigins: config.Origins(),
			StaticDir:      config.StaticDir,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. gRPC health
	var health *grpcserver.HealthServer
	if config.GrpcPort > 0 {
		address := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
		grpcListener, err := net.Listen("tcp", address)
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
		}
		health = grpcserver.NewHealthServer(logger)
		go func() {
			if err := health.Serve(grpcListener); err != nil {
				errChan <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
		health.SetServing(true)
	}

	// 7. Wait for stop or error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	if health != nil {
		health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")
	return code, runErr
}

func openMessageLog(config internal.Config, db *badger.DB, logger *slog.Logger) (contract.IMessageLog, func(), error) {
	if config.MessageLogBackend == internal.BackendMemory {
		logger.Info("Message log kept in process memory")
		return repositories.NewMessageLog(), func() {}, nil
	}
	repository, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return nil, nil, err
	}
	return repository, func() { _ = repository.Close() }, nil
}
