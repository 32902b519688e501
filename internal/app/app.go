// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes one method per
// operational mode:
//
//   - Rank mode: score and filter the day's raw candidates
//   - Compose mode: select and write the day's digest entries
//   - Verify mode: run the quality gate over the composed digest
//   - Run mode: all three stages in sequence
//   - Daemon mode: run the full pipeline at a scheduled time every day
//
// Each stage persists its snapshot, so modes can run in separate invocations
// against the same data directory.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/links"
	"github.com/wangwingzero/fly-podcast/internal/core/llm"
	"github.com/wangwingzero/fly-podcast/internal/platform/config"
	"github.com/wangwingzero/fly-podcast/internal/platform/observability"
	"github.com/wangwingzero/fly-podcast/internal/platform/schedule"
	"github.com/wangwingzero/fly-podcast/internal/platform/worker"
	"github.com/wangwingzero/fly-podcast/internal/process/compose"
	"github.com/wangwingzero/fly-podcast/internal/process/pipeline"
	"github.com/wangwingzero/fly-podcast/internal/storage"
)

const dayFormat = "2006-01-02"

// App holds the application dependencies and provides methods to run the
// pipeline modes.
type App struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   *zerolog.Logger
}

// New wires the application together. The completion client and the content
// enricher are optional capabilities: without an API key the pipeline runs
// fully deterministic, and with enrichment disabled thin candidates are
// composed from their ingested text as-is.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	keywords, err := config.LoadKeywords(cfg.Keywords)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var client llm.Client
	if cfg.LLMConfigured() {
		client = llm.NewOpenAI(cfg, logger)
		logger.Info().Str("model", cfg.LLMModel).Msg("completion client configured")
	} else {
		logger.Warn().Msg("no LLM API key, selection and composition run deterministic")
	}

	var enricher compose.Enricher
	if cfg.ThinContentEnrichment {
		enricher = links.NewEnricher(links.NewFetcher(cfg.WebFetchRPS, cfg.WebFetchTimeout), logger)
	}

	return &App{
		cfg:      cfg,
		pipeline: pipeline.New(cfg, keywords, store, client, enricher, logger),
		logger:   logger,
	}, nil
}

// StartHealthServer blocks serving /healthz and /metrics until ctx ends.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.ServeHealth(ctx, a.cfg.HealthPort)
}

// RunRank executes the rank stage for the given day.
func (a *App) RunRank(ctx context.Context, day string) error {
	_, err := a.pipeline.Rank(ctx, normalizeDay(day))
	return err
}

// RunCompose executes the compose stage for the given day.
func (a *App) RunCompose(ctx context.Context, day string) error {
	_, err := a.pipeline.Compose(ctx, normalizeDay(day))
	return err
}

// RunVerify executes the quality gate for the given day.
func (a *App) RunVerify(ctx context.Context, day string) error {
	_, err := a.pipeline.Verify(ctx, normalizeDay(day))
	return err
}

// RunAll executes the full pipeline for the given day.
func (a *App) RunAll(ctx context.Context, day string) error {
	return a.pipeline.Run(ctx, normalizeDay(day))
}

// RunDaemon blocks, executing the full pipeline at the configured local
// time every day until ctx is cancelled.
func (a *App) RunDaemon(ctx context.Context) error {
	sched, err := schedule.New(a.cfg.DigestTimezone, a.cfg.DigestTime)
	if err != nil {
		return fmt.Errorf("digest schedule: %w", err)
	}

	loop := &worker.Daily{
		Name: "digest",
		Next: sched.NextRun,
		Run: func(ctx context.Context) error {
			return a.pipeline.Run(ctx, time.Now().Format(dayFormat))
		},
		Logger: a.logger,
	}

	return loop.Loop(ctx)
}

func normalizeDay(day string) string {
	if day == "" {
		return time.Now().Format(dayFormat)
	}

	return day
}
