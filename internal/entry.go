// Package internal provides the pipeline runner and its configuration.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/starford/vaultfix/internal/journal"
	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

// Run executes the configured pipeline steps in order. Per-file problems are
// recorded in each step's report; the first step-level error stops the run.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		out := app.logOutput
		if out == nil {
			out = os.Stdout
		}
		logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	steps := app.steps
	if len(steps) == 0 {
		steps = cfg.Pipeline.Steps
	}
	for _, s := range steps {
		if !slices.Contains(AllSteps, s) {
			return fmt.Errorf("unknown step %q", s)
		}
	}

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("map_path", cfg.Truncation.MapPath),
		slog.String("log_dir", cfg.App.LogDir),
		slog.String("journal_path", cfg.Journal.Path),
		slog.Any("steps", steps),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	var db *journal.DB
	if cfg.Journal.Enabled() {
		db, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("init journal: %w", err)
		}
		defer db.Close()
	}

	for _, name := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runStep(ctx, name, stepEnv{cfg: cfg, store: store, logger: logger, db: db}); err != nil {
			logger.Error("Step failed", slog.String("step", name), slog.String("error", err.Error()))
			return fmt.Errorf("step %s: %w", name, err)
		}
	}

	logger.Info("Pipeline finished", slog.Int("steps", len(steps)))
	return nil
}

// stepEnv is what every step receives.
type stepEnv struct {
	cfg    *Config
	store  storage.Provider
	logger *slog.Logger
	db     *journal.DB
	rep    *report.Report
}

func runStep(ctx context.Context, name string, env stepEnv) error {
	def := stepDefs[name]
	env.rep = report.New(def.title,
		report.WithPath(env.cfg.App.ReportPath(def.logFile)),
		report.WithVerbose(env.cfg.App.Verbose),
		report.WithLogger(env.logger.With(slog.String("step", name))),
	)

	started := time.Now()
	var runID int64
	if env.db != nil {
		id, err := env.db.BeginRun(name, env.store.Root(), started)
		if err != nil {
			env.logger.Warn("journal begin failed", slog.String("error", err.Error()))
		} else {
			runID = id
		}
	}

	env.logger.Info("Step started", slog.String("step", name))
	stats, stepErr := def.run(ctx, env)
	if stepErr != nil {
		env.rep.Logf("step aborted: %v", stepErr)
	}

	if err := env.rep.Save(); err != nil {
		env.logger.Warn("report save failed", slog.String("step", name), slog.String("error", err.Error()))
	}
	if runID != 0 {
		if err := env.db.AddEvents(runID, env.rep.Events()); err != nil {
			env.logger.Warn("journal events failed", slog.String("error", err.Error()))
		}
		if err := env.db.FinishRun(runID, stats, time.Now()); err != nil {
			env.logger.Warn("journal finish failed", slog.String("error", err.Error()))
		}
	}
	if stepErr != nil {
		return stepErr
	}

	attrs := []any{slog.String("step", name), slog.Duration("took", time.Since(started))}
	for _, k := range slices.Sorted(maps.Keys(stats)) {
		attrs = append(attrs, slog.Int(k, stats[k]))
	}
	env.logger.Info("Step finished", attrs...)
	return nil
}
