package main

import (
	"chat-rooms/auth"
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/infrastructure/grpc/server"
	"chat-rooms/infrastructure/rest"
	"chat-rooms/infrastructure/ws"
	"chat-rooms/internal"
	"chat-rooms/moderation"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"chat-rooms/runtime/workers"
	"chat-rooms/services"
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

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal or a listener failure,
// then shuts down. Returning instead of exiting lets the defers close the stores.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, repositories.InspectRow)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	messageStore, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageStore.Close() }()
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = userRepository.Close() }()
	searchIndex := repositories.NewSearchIndex(blugeWriter, logger)
	messageRepository := repositories.NewIndexedMessageRepository(messageStore, searchIndex, logger)

	// 3. Identity
	issuer := auth.NewTokenIssuer(config.JwtSecret, config.AuthTokenDuration)
	gate := auth.NewIdentityGate(issuer, userRepository)
	authService := services.NewAuthService(logger, userRepository, issuer)
	if config.AdminSeed() {
		err := authService.SeedAdmin(ctx, auth.RegisterRequest{
			Username: config.AdminUsername,
			Email:    config.AdminEmail,
			Password: config.AdminPassword,
		})
		if err != nil {
			return exitConfig, fmt.Errorf("admin seed failed: %w", err)
		}
	}

	// 4. Chat runtime
	var moderator contract.IModerator
	if config.EnableModeration {
		m, err := buildModerator(logger, charReplacement)
		if err != nil {
			return exitRuntime, err
		}
		moderator = m
	}
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(logger, registry, config.SendTimeout)
	history := runtime.NewHistory(logger, messageRepository)
	ingest := runtime.NewIngest(logger, messageRepository, broadcaster, moderator, config.MaxContentLength)
	sessions := runtime.NewSessions(logger, gate, registry, broadcaster, history, ingest, config.HistoryLimit)

	// 5. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewRoomStatsWorker(logger, registry, config.MetricInterval),
		workers.NewValueLogGCWorker(logger, db, config.GcInterval),
	)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// Error (HTTP & gRPC)
	errChan := make(chan error, 2)

	// 6. gRPC health
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	healthServer := server.NewHealthServer(logger)
	go func() {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		if err := healthServer.Serve(grpcListener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. HTTP + WebSocket
	chatService := services.NewChatService(logger, messageRepository, userRepository, searchIndex, auth.Authorizer{}, config.MaxPageSize)
	live := ws.NewHandler(logger, sessions, config.Origins(), ws.Options{
		WriteWait:    config.SendTimeout,
		PongWait:     config.PongWait,
		PingInterval: config.PingInterval,
		MaxFrameSize: config.MaxFrameSize,
	})
	api := rest.NewAPI(logger, authService, chatService, gate, config.Origins())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           api.Handler(live),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	healthServer.Drain()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	closeSessions(shutdownCtx, logger, registry)
	healthServer.Stop()
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// closeSessions asks every live connection to go away and waits for the
// sessions to leave their rooms. Hijacked connections are not tracked by
// http.Server.Shutdown.
func closeSessions(ctx context.Context, logger *slog.Logger, registry *runtime.Registry) {
	bindings := registry.Bindings()
	logger.Info("Closing live connections", "count", len(bindings))
	for _, binding := range bindings {
		_ = binding.Conn.Close(chat.CloseGoingAway, "server shutting down")
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for registry.Stats().Connections > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("Sessions still bound at shutdown", "connections", registry.Stats().Connections)
			return
		case <-ticker.C:
		}
	}
}

func buildModerator(logger *slog.Logger, charReplacement rune) (*moderation.Moderator, error) {
	data, err := moderation.NewCensoredLoader(moderation.CensoredFolder).LoadAll("censored")
	if err != nil {
		return nil, fmt.Errorf("failed to load censored words: %w", err)
	}
	logger.Info("Moderation enabled", "words", len(data.Words), "languages", data.Languages)
	return moderation.NewModerator(data.Words, charReplacement, logger)
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
