package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/repositories"
	"chat-relay/repositories/sqlite"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/server"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the relay process.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until SIGINT or SIGTERM.
// Deferred cleanups (store close) run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	store, err := openStore(ctx, config, log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Closing store failed", "error", err)
		}
	}()

	// 4. Moderation, optional
	var moderator *moderation.Moderator
	if config.CensoredWordsDir != "" {
		moderator, err = newModerator(config, log)
		if err != nil {
			return exitConfig, err
		}
	}

	// 5. Relay
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry(log, store)
	authService := services.NewAuthService(log, store, auth.DefaultParams)
	router := server.NewRouter(log, store, registry, authService, moderator, metrics, config.HistoryLimit)

	var health *observability.HealthServer
	if addr := config.HealthAddress(); addr != "" {
		health = observability.NewHealthServer(log, addr)
	}
	relay := server.NewServer(log, config.Address(), router, metrics, health, server.SessionConfig{
		Codec:        protocol.NewCodec(config.MaxFrameSize),
		BufferSize:   config.ConnectionBufferSize,
		IdleTimeout:  config.ReadIdleTimeout,
		WriteTimeout: config.WriteTimeout,
	}, config.MaxConnections)

	// 6. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(relay, workers.NewStatsReporter(log, metrics, registry, config.StatsInterval))
	if addr := config.AdminAddress(); addr != "" {
		sup.Add(observability.NewAdminServer(log, addr, metrics, registry))
	}
	if health != nil {
		sup.Add(health)
	}

	log.Info("Starting chat relay", "address", config.Address(), "store", config.StoreDriver)
	sup.Run(ctx)
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

func openStore(ctx context.Context, config internal.Config, log *slog.Logger) (contract.Store, error) {
	switch config.StoreDriver {
	case internal.StoreSQLite:
		return sqlite.Open(ctx, config.SQLiteFilepath, log)
	default:
		return repositories.OpenBadgerStore(config.BadgerFilepath, log)
	}
}

func newModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	dictionary, err := moderation.LoadDictionary(os.DirFS(config.CensoredWordsDir), ".")
	if err != nil {
		return nil, fmt.Errorf("loading censored words from %s: %w", config.CensoredWordsDir, err)
	}
	log.Info("Moderation enabled", "languages", dictionary.Languages, "words", len(dictionary.Words))
	return moderation.NewModerator(dictionary.Words, replacement, log)
}
