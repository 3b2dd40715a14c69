package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imago/internal/common"
	"github.com/ternarybob/imago/internal/scrapers"
	"github.com/ternarybob/imago/internal/server"
	"github.com/ternarybob/imago/internal/telemetry"
)

var (
	configFile   = flag.String("config", "", "Configuration file path (optional; environment overrides)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	logger arbor.ILogger
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Imago version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence: config -> logger -> banner -> telemetry -> server.
	config, err := common.LoadConfig(*configFile)
	if err != nil {
		// The original service falls back to defaults rather than
		// refusing to start on a bad environment.
		tempLogger := arbor.NewLogger()
		tempLogger.Error().Err(err).Msg("Could not load config, continuing with defaults")
		config = common.NewDefaultConfig()
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	logger.Info().Str("log_level", config.LogLevel).Msg("Logger configured")

	flushTelemetry, err := telemetry.Init(config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer flushTelemetry()
	if config.SentryURL != "" {
		logger.Info().Msg("Sentry error telemetry enabled")
	}

	scrapeService, err := scrapers.NewService(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize scrape service")
	}

	srv := server.New(config, scrapeService, logger)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s", config.ListenOn)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
