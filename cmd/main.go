package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/httpserver"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"chat-relay/transport"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a fatal error.
// Returning instead of exiting lets the deferred closes flush badger and bluge.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	clock := clockwork.NewRealClock()

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

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	userRepository, err := repositories.NewUserRepository(db, clock)
	if err != nil {
		return exitRuntime, fmt.Errorf("user repository: %w", err)
	}
	defer func() { _ = userRepository.Close() }()
	roomRepository, err := repositories.NewRoomRepository(db, clock)
	if err != nil {
		return exitRuntime, fmt.Errorf("room repository: %w", err)
	}
	defer func() { _ = roomRepository.Close() }()
	messageRepository := repositories.NewMessageRepository(db, logger, clock, config.LimitMessages)
	fileRepository := repositories.NewFileRepository(db)
	messageIndex := repositories.NewMessageIndex(blugeWriter, logger, config.SearchPageSize)

	fileStore, err := storage.NewDiskStore(config.UploadDir, config.PublicBaseURL, config.MaxUploadSize, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("upload directory: %w", err)
	}

	// 3. Moderation
	var censor *moderation.Moderator
	if config.ModerationEnabled {
		words, err := moderation.NewEmbeddedLoader().LoadAll(moderation.DefaultDictionary)
		if err != nil {
			return exitConfig, fmt.Errorf("censored dictionary: %w", err)
		}
		censor, err = moderation.NewModerator(words.Words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("moderator: %w", err)
		}
	}

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)
	stats := observability.NewStatsRecorder()

	// 5. Relay core
	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration, clock)
	hub := transport.NewHub(logger, transport.Config{
		SendBufferSize: config.SendBufferSize,
		MaxFrameSize:   config.MaxFrameSize,
		WriteWait:      writeWait,
		PongWait:       pongWait,
		RateBurst:      config.RateLimitBurst,
		RateInterval:   config.RateLimitInterval,
		AllowedOrigins: config.Origins(),
	})
	sessions := runtime.NewSessionRegistry()
	membership := runtime.NewMembership()
	broadcaster := runtime.NewBroadcaster(logger, sessions, membership, hub, metrics)
	controller := runtime.NewController(logger, sessions, membership, broadcaster, hub,
		auth.NewTokenAuthenticator(tokens, userRepository),
		repositories.NewChatStore(roomRepository, messageRepository),
		censorOrNil(censor), messageIndex, clock, metrics,
		runtime.Policy{
			ExcludeSenderOnSend: config.ExcludeSenderOnSend,
			MaxContentLength:    config.MaxContentLength,
		})
	hub.Bind(controller)

	// 6. HTTP surface
	server := httpserver.NewServer(logger, httpserver.Config{
		Addr:           config.Addr(),
		AllowedOrigins: config.Origins(),
		RatePerSecond:  config.APIRateLimit,
		RateBurst:      config.APIRateBurst,
		MaxUploadSize:  config.MaxUploadSize,
	}, httpserver.Deps{
		Auth:          services.NewAuthService(userRepository, tokens, logger),
		Users:         services.NewUserService(userRepository),
		Rooms:         services.NewRoomService(roomRepository, messageRepository, userRepository, messageIndex, controller, logger),
		Conversations: services.NewConversationService(roomRepository, messageRepository, userRepository, logger),
		Uploads:       services.NewUploadService(fileStore, fileRepository, clock, logger),
		Files:         fileStore,
		Tokens:        tokens,
		WebSocket:     hub,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthChecks: []httpserver.HealthCheck{
			{Name: "badger", Check: badgerCheck(db)},
		},
		Stats: stats,
	})

	// 7. Workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(logger, server, config.ShutdownTimeout),
		workers.NewValueLogGCWorker(logger, db, clock, config.GCInterval),
		workers.NewProcessStatsWorker(logger, clock, config.StatsInterval, metrics, stats, hub.Count),
	)
	logger.Info("Relay started", "addr", config.Addr(), "moderation", config.ModerationEnabled)
	sup.Run(ctx)

	// 8. Final Cleanup
	// Hijacked sockets outlive the HTTP server shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Closing connections timed out", "error", err)
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

// censorOrNil keeps a nil *Moderator from becoming a non-nil interface.
func censorOrNil(m *moderation.Moderator) contract.Censor {
	if m == nil {
		return nil
	}
	return m
}

func badgerCheck(db *badger.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db.IsClosed() {
			return errors.New("database closed")
		}
		return db.View(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte("seq:user"))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		})
	}
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
