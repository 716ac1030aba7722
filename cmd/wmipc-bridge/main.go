package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/wmipc/internal/bridge"
	"github.com/bryanchriswhite/wmipc/internal/config"
	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/bryanchriswhite/wmipc/internal/x11"
)

func main() {
	log := logger.WithComponent("main")

	// Initialize configuration manager
	configMgr, err := config.NewManager(os.Getenv("WMIPC_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config manager")
	}
	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log = logger.WithComponent("main")
	log.Info().Str("path", configMgr.GetConfigPath()).Msg("Configuration loaded")

	socket, err := x11.ResolveSocketPath(cfg.SocketPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate the window manager socket")
	}

	server, err := bridge.NewServer(socket, cfg.Bridge)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize bridge")
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(cfg.Bridge.Listen); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info().
		Str("listen", cfg.Bridge.Listen).
		Str("socket", socket).
		Msg("Bridge is running, press Ctrl+C to stop")

	<-sigChan

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}
