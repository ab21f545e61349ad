package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultfix/internal"
	"github.com/starford/vaultfix/internal/journal"
	pkgconfig "github.com/starford/vaultfix/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}

	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	if cmd.Bool("verbose") {
		cfg.App.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runSteps(ctx context.Context, cmd *cli.Command, steps ...string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if len(steps) > 0 {
		opts = append(opts, internal.WithSteps(steps...))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runPipeline(ctx context.Context, cmd *cli.Command) error {
	return runSteps(ctx, cmd, cmd.StringSlice("step")...)
}

func step(name string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return runSteps(ctx, cmd, name)
	}
}

func history(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled() {
		return fmt.Errorf("journal is disabled: set journal.path in the config")
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("invalid --limit %d: must be positive", limit)
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.String("step"), limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		finished := "unfinished"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("#%d %-11s %s %s events=%d %s\n",
			r.ID, r.Step, r.StartedAt.Format(time.DateTime), finished, r.Events, formatStats(r.Stats))
	}
	return nil
}

func formatStats(stats map[string]int) string {
	parts := make([]string, 0, len(stats))
	for k, v := range stats {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, v))
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}

func main() {
	cmd := &cli.Command{
		Name:   "vaultfix",
		Usage:  "Repair an Obsidian-style Markdown vault and give truncated note titles stable uid names",
		Action: runPipeline,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "vaultfix.yaml",
				Value:       "vaultfix.yaml",
				Sources:     cli.EnvVars("VAULTFIX_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory, overrides vault.path",
				Sources: cli.EnvVars("VAULTFIX_VAULT"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Echo every report line to the log",
			},
			&cli.StringSliceFlag{
				Name:  "step",
				Usage: "Run only the named steps (repeatable)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the pipeline, all configured steps unless --step is given",
				Action: runPipeline,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "step",
						Usage: "Run only the named steps (repeatable)",
					},
				},
			},
			{
				Name:   "check",
				Usage:  "Report filenames with invalid trailing characters and empty notes",
				Action: step(internal.StepCheck),
			},
			{
				Name:   "uid",
				Usage:  "Detect truncated titles and assign uid filenames",
				Action: step(internal.StepUID),
			},
			{
				Name:   "alias",
				Usage:  "Rewrite wiki links to truncated notes as uid links",
				Action: step(internal.StepAlias),
			},
			{
				Name:   "history",
				Usage:  "List past runs recorded in the journal",
				Action: history,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "step",
						Usage: "Only runs of this step",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
