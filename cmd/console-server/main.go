// Package main is the entry point for the haunted console server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hollowsignal/haunted-console/server/internal/engine"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/ghost"
	"github.com/hollowsignal/haunted-console/server/internal/infra/storage"
	"github.com/hollowsignal/haunted-console/server/internal/network"
	"github.com/hollowsignal/haunted-console/server/internal/platform/config"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/platform/metrics"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

func openBackend(cfg *config.Config, appLogger *logger.Logger) (storage.KV, error) {
	switch cfg.KVBackend {
	case config.BackendMemory:
		appLogger.Info("Using in-memory store. Nothing survives power-off.")
		return storage.NewMemoryKV(), nil
	case config.BackendSQLite:
		appLogger.Info("Opening SQLite store at %s", cfg.SQLitePath)
		return storage.OpenSQLiteKV(cfg.SQLitePath)
	case config.BackendBolt:
		appLogger.Info("Opening bbolt store at %s", cfg.BoltPath)
		return storage.OpenBoltKV(cfg.BoltPath)
	case config.BackendRedis:
		appLogger.Info("Connecting to redis at %s", cfg.RedisAddr)
		return storage.NewRedisKV(cfg.RedisAddr, "haunt")
	default:
		return storage.NewMemoryKV(), nil
	}
}

func main() {
	log.Println("[CONSOLE-SERVER] Initializing haunted console core...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[CONSOLE-SERVER] Bad configuration: %v", err)
	}

	appLogger := logger.NewLogger()
	bus := events.NewBus(appLogger)
	store := state.NewStore(appLogger)

	kv, err := openBackend(cfg, appLogger)
	if err != nil {
		appLogger.Error("Storage backend failed to open: %v", err)
		os.Exit(1)
	}
	defer kv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping persistence gateway...")
	gateway := storage.NewGateway(kv, store, bus, appLogger)
	gateway.Attach()
	gateway.Load(ctx)

	appLogger.Info("Bootstrapping possession timeline...")
	progression := engine.NewProgression(bus, store, appLogger, gateway)
	ambient := engine.NewAmbient(bus, store, appLogger)

	appLogger.Info("Bootstrapping the entity...")
	agent := ghost.NewAgent(bus, store, appLogger, gateway)
	agent.Attach()

	appLogger.Info("Bootstrapping WebSocket hub...")
	hub := network.NewHub(bus, store, appLogger)
	hub.Attach()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", metrics.Get().Handler())
	if cfg.DebugHooks {
		appLogger.Warn("Debug hooks enabled. Do not ship like this.")
		network.NewDebugAPI(bus, store, progression, gateway, agent, appLogger).Mount(mux)
	}

	// Power on: the session clock starts here.
	store.Set(state.FieldPowerOn, true)
	bus.Publish(events.SystemPowerOn, nil)

	progression.Start(cfg.CheckInterval)
	ambient.Start(0)
	agent.Start(cfg.ThinkInterval)
	gateway.StartAutoSave(cfg.AutoSaveInterval)

	go func() {
		log.Printf("[CONSOLE-SERVER] HTTP API & WS listening on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[CONSOLE-SERVER] The console is on. Press Ctrl+C to pull the plug.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[CONSOLE-SERVER] Powering off...")
	store.Set(state.FieldPowerOn, false)
	bus.Publish(events.SystemPowerOff, nil)

	agent.Stop()
	ambient.Stop()
	progression.Stop()
	cancel()
	log.Println("[CONSOLE-SERVER] It is never really off.")
}
