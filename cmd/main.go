package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/mama165/sdk-go/logs"

	"order-sync/auth"
	"order-sync/backbone"
	"order-sync/contract"
	"order-sync/gateway"
	"order-sync/moderation"
	"order-sync/repositories"
	"order-sync/runtime"
	"order-sync/runtime/workers"
	"order-sync/server"
	"order-sync/services"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Broadcast core
	registry := runtime.NewRegistry()
	local := runtime.NewBroadcaster(log, registry, config.SinkTimeout)
	var broadcaster contract.IBroadcaster = local

	sup := workers.NewSupervisor(log, config.RestartInterval)
	if config.BackboneEnabled {
		instanceID := config.InstanceID
		if instanceID == "" {
			instanceID, _ = os.Hostname()
		}
		bridge := backbone.NewBridge(log, local,
			config.BackboneURL, config.BackboneExchange, instanceID)
		defer bridge.Close()
		broadcaster = bridge
		sup.Add(backbone.NewConsumerWorker(bridge))
	}

	// 4. Domain services
	replacement, err := config.CharacterRune()
	if err != nil {
		return err
	}
	filter, err := moderation.NewNoteFilter(config.BlockedWordList(), replacement)
	if err != nil {
		return fmt.Errorf("note filter: %w", err)
	}
	store := repositories.NewOrderRepository(db, log)
	service := services.NewOrderService(log, store, broadcaster, filter,
		func(unitPrice int64, quantity int) int64 {
			return unitPrice * int64(quantity)
		})

	// 5. Access & gateway
	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenDuration)
	gw := gateway.NewGateway(log, registry, tokens, config.HandshakeTimeout, config.QueueSize)

	entries, err := config.StaffEntries()
	if err != nil {
		return err
	}
	staff := make(map[string]server.StaffAccount, len(entries))
	for _, entry := range entries {
		hash, err := auth.HashPassword(entry.Password, config.BcryptCost)
		if err != nil {
			return fmt.Errorf("hashing staff password: %w", err)
		}
		staff[entry.Username] = server.StaffAccount{PasswordHash: hash, Role: entry.Role}
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 7. HTTP server
	e := echo.New()
	e.HideBanner = true
	server.NewServer(log, service, tokens, gw, staff).Register(e)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
