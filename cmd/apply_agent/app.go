package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/db"
	"github.com/jonathan/apply-agent/internal/fetch"
	"github.com/jonathan/apply-agent/internal/llm"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/rendering"
	"github.com/jonathan/apply-agent/internal/resolve"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// loadConfig builds the effective configuration: config file, then
// environment, then explicitly set CLI flags, then built-in defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg.ApplyEnv()

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-dev") {
		cfg.LogDevelopment = logDevelopment
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		OutputPaths: []string{"stderr"},
	})
}

// app holds the wired components shared by the serve and run commands.
type app struct {
	cfg         config.Config
	log         logger.Logger
	db          *db.DB
	redis       *redis.Client
	resolver    *resolve.Resolver
	broadcaster *workflow.Broadcaster
	service     *workflow.Service
	closers     []io.Closer
}

// newApp connects backing services and wires the workflow.
func newApp(ctx context.Context, cfg config.Config, log logger.Logger) (*app, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or database_url config is required")
	}

	a := &app{cfg: cfg, log: log, broadcaster: workflow.NewBroadcaster()}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = database
	if err := database.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	resolver, err := a.newResolver(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.resolver = resolver

	completer := llm.Unavailable()
	if cfg.APIKey != "" {
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.closers = append(a.closers, client)
		completer = llm.NewCompleter(client, llm.TierStandard, cfg.TailoringBudgetDuration())
	} else {
		log.Warn("GEMINI_API_KEY not set - resume tailoring and deep match are disabled")
	}

	renderer, err := rendering.New(cfg.ResumeFormat, cfg.OutputDir, cfg.TemplatePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create resume renderer: %w", err)
	}
	tailor := tailoring.NewService(completer, renderer, database, tailoring.Options{
		Enabled: cfg.ResumeTailoringEnabled,
		Budget:  cfg.TailoringBudgetDuration(),
	})

	driver := apply.NewDriver(apply.Deps{
		Sessions: &fetch.BrowserFactory{},
		Tailor:   tailor,
		Apps:     database,
		Issues:   database,
		Guard:    resolver,
	}, apply.Config{
		Headless:  !cfg.ShowBrowser,
		StatePath: cfg.StatePath,
		StepDelay: cfg.StepDelayDuration(),
	})

	coordinator := workflow.NewCoordinator(database, resolver, driver, workflow.Options{
		Scorer:           &workflow.MatchScorer{Completer: completer, Deep: cfg.DeepMatch},
		RetryBackoff:     cfg.RetryBackoffDuration(),
		TailoringEnabled: cfg.ResumeTailoringEnabled,
		OnProgress:       a.broadcaster.Publish,
	})
	a.service = workflow.NewService(database, coordinator, workflow.ServiceConfig{
		DefaultMinScore: cfg.DefaultMinScore,
	})

	log.Info("Agent wired",
		logger.Bool("tailoring", cfg.ResumeTailoringEnabled),
		logger.Bool("deep_match", cfg.DeepMatch),
		logger.Bool("shared_cache", a.redis != nil),
		logger.Float64("default_min_score", cfg.DefaultMinScore))
	return a, nil
}

// newResolver builds the apply-target resolver, sharing its cache through
// Redis when configured.
func (a *app) newResolver(ctx context.Context) (*resolve.Resolver, error) {
	var cache resolve.Cache
	if a.cfg.RedisURL != "" {
		rdb, err := resolve.ConnectRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
		a.closers = append(a.closers, rdb)
		cache = resolve.NewRedisCache(rdb, "")
	}
	return resolve.New(fetch.NewClient(fetch.DefaultOptions()), cache, resolve.Config{
		CacheTTL: a.cfg.ResolverCacheTTLDuration(),
	}), nil
}

// drain waits for background runs, bounded by timeout.
func (a *app) drain(timeout time.Duration) {
	if a.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.service.Wait(ctx); err != nil {
		a.log.Warn("Background runs did not finish before shutdown", logger.Error(err))
	}
}

// Close releases every connection the app opened.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Error closing resources", logger.Error(err))
	}
}
