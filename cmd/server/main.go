package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-chat/auth"
	"market-chat/internal"
	"market-chat/moderation"
	"market-chat/projection"
	"market-chat/repositories"
	"market-chat/runtime"
	"market-chat/runtime/workers"
	"market-chat/search"
	"market-chat/services"
	"market-chat/transport/httpapi"
	"market-chat/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Search index (Bluge)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 4. Moderation
	censored, err := moderation.LoadDefault()
	if err != nil {
		return fmt.Errorf("censored word lists: %w", err)
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(censored.Words, replacement)
	if err != nil {
		return fmt.Errorf("moderator init failed: %w", err)
	}
	log.Info("Censored words loaded", "words", len(censored.Words), "languages", censored.Languages)

	// 5. Registries, dispatcher and persistence
	presence := runtime.NewPresence()
	channels := runtime.NewChannels()
	dispatcher := runtime.NewDispatcher(log, config.BufferSize, config.DeliveryTimeout)
	store := repositories.NewStore(db, log, config.LimitMessages)
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)

	// 6. Sinks & Services
	index := search.NewIndex(writer, log)
	stats := projection.NewStats()

	directory := services.NewDirectoryService(store, presence, dispatcher, log)
	requests := services.NewRequestService(store, directory, presence, dispatcher, log)
	conversation := services.NewConversationService(store, channels, dispatcher,
		moderator, index, config.MaxContentLength, log)
	authn := services.NewAuthService(store, tokens)

	// 7. Supervision
	counts := func() (int, int, int, int) {
		identities, connections := presence.Counts()
		convChannels, subscriptions := channels.Counts()
		return identities, connections, convChannels, subscriptions
	}
	sup := workers.NewSupervisor(log, config.RestartInterval).Add(
		workers.NewSinkFanout(log, dispatcher.SinkEvents(), config.SinkTimeout, index, stats),
		workers.NewHealthMonitoring(log, config.MetricInterval, counts),
	)

	// 8. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sup.Run(ctx)

	// 9. HTTP & WebSocket surface
	router := mux.NewRouter()
	api := httpapi.NewAPI(authn, requests, conversation, directory, log)
	api.Register(router, tokens)
	router.Handle("/ws", ws.NewGateway(tokens, presence, requests, conversation,
		config.ConnectionBufferSize, log))

	if config.DebugPort != 0 {
		internal.StartDebugServer(db, config.DebugPort, "/inspect",
			internal.DefaultMapper, stats.Snapshot)
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 11. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
