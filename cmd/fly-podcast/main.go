package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/app"
	"github.com/wangwingzero/fly-podcast/internal/platform/config"
)

func main() {
	mode := flag.String("mode", "run", "Pipeline mode (rank, compose, verify, run, daemon)")
	day := flag.String("date", "", "Digest date as YYYY-MM-DD (defaults to today)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	// Health and metrics stay up for the duration of the run.
	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	if err := runMode(ctx, application, *mode, *day); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode, day string) error {
	switch mode {
	case "rank":
		return application.RunRank(ctx, day)
	case "compose":
		return application.RunCompose(ctx, day)
	case "verify":
		return application.RunVerify(ctx, day)
	case "run":
		return application.RunAll(ctx, day)
	case "daemon":
		return application.RunDaemon(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[rank|compose|verify|run|daemon]", os.Args[0])

		return nil
	}
}
