package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/config"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (overrides the search paths)")
	flag.Parse()

	// Load .env if present, deployed environments set variables directly
	_ = godotenv.Load()

	ctx := context.Background()

	// Bootstrap logger until the configured one is available
	log := logger.NewProduction("relayd", relay.Version)
	log.InfoContext(ctx, "starting wireguard relay daemon", "version", relay.Version)

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadWithPath(*configPath)
	} else {
		cfg, err = config.NewLoader().Load()
	}
	if err != nil {
		log.ErrorCtx(ctx, "failed to load configuration", err)
		os.Exit(1)
	}

	// Rebuild the logger with the configured level and format
	log = logger.New(logger.LoggerConfig{
		Level:     logger.LogLevel(cfg.Log.Level),
		Format:    logger.OutputFormat(cfg.Log.Format),
		Component: "relayd",
		Version:   relay.Version,
	})
	log.DebugContext(ctx, "configuration loaded")

	service, err := relay.NewService(cfg, log)
	if err != nil {
		log.ErrorCtx(ctx, "failed to create service", err)
		os.Exit(1)
	}

	if err := service.Start(ctx); err != nil {
		log.ErrorCtx(ctx, "failed to start service", err)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if stopErr := service.Stop(shutdownCtx); stopErr != nil {
			log.ErrorCtx(ctx, "failed to clean up after startup failure", stopErr)
		}
		os.Exit(1)
	}

	log.InfoContext(ctx, "service started, waiting for shutdown signal")

	// Blocks until SIGINT/SIGTERM completes a graceful shutdown
	service.WaitForShutdown()

	log.InfoContext(ctx, "relayd exiting")
}
