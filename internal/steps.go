package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/vaultfix/internal/aliaslink"
	"github.com/starford/vaultfix/internal/apperr"
	"github.com/starford/vaultfix/internal/fixup"
	"github.com/starford/vaultfix/internal/resolver"
	"github.com/starford/vaultfix/internal/storage"
	"github.com/starford/vaultfix/internal/truncmap"
)

type stepDef struct {
	title   string
	logFile string
	run     func(ctx context.Context, env stepEnv) (map[string]int, error)
}

var stepDefs = map[string]stepDef{
	StepCheck:       {"Invalid filename report", "invalid_filenames.log", runCheck},
	StepFilenames:   {"Rename phase", "rename_phase.log", runFilenames},
	StepFrontmatter: {"YAML preprocessing", "yaml_preprocess.log", runFrontmatter},
	StepMDLinks:     {"Link conversion", "link_conversion.log", runMDLinks},
	StepWebLinks:    {"Web link fix", "web_link_fix.log", runWebLinks},
	StepIndent:      {"Indentation fix", "indent_fix.log", runIndent},
	StepUID:         {"Truncated title UID map", "truncation_detect.log", runUID},
	StepAlias:       {"UID link rewrite", "uid_link_rewrite.log", runAlias},
}

func runCheck(ctx context.Context, env stepEnv) (map[string]int, error) {
	res, err := fixup.Check(ctx, env.store, env.rep)
	return res.Fields(), err
}

func runFilenames(ctx context.Context, env stepEnv) (map[string]int, error) {
	res, err := fixup.FixFilenames(ctx, env.store, env.rep, env.cfg.App.RenameMapPath())
	return res.Fields(), err
}

func runFrontmatter(ctx context.Context, env stepEnv) (map[string]int, error) {
	res, err := fixup.RepairFrontmatter(ctx, env.store, env.rep)
	return res.Fields(), err
}

func runMDLinks(ctx context.Context, env stepEnv) (map[string]int, error) {
	renamed, err := fixup.LoadRenameMap(env.cfg.App.RenameMapPath())
	if err != nil {
		env.rep.Logf("rename map ignored: %v", err)
		renamed = fixup.RenameMap{}
	}
	res, err := fixup.ConvertMarkdownLinks(ctx, env.store, env.rep, renamed)
	return res.Fields(), err
}

func runWebLinks(ctx context.Context, env stepEnv) (map[string]int, error) {
	res, err := fixup.FixWebLinks(ctx, env.store, env.rep)
	return res.Fields(), err
}

func runIndent(ctx context.Context, env stepEnv) (map[string]int, error) {
	c := env.cfg.Indent
	hist, err := fixup.AnalyzeIndent(ctx, env.store, c.TabSize)
	if err != nil {
		return nil, err
	}
	env.rep.Log("indent deltas before the fix:")
	for _, line := range hist.Lines() {
		env.rep.Log("  " + line)
	}
	res, err := fixup.Reindent(ctx, env.store, env.rep, fixup.IndentOptions{
		TabSize:         c.TabSize,
		IndentUnit:      c.IndentUnit,
		SpacesPerIndent: c.SpacesPerIndent,
	})
	return res.Fields(), err
}

func runUID(ctx context.Context, env stepEnv) (map[string]int, error) {
	mapPath := env.cfg.Truncation.MapPath
	m, err := loadMap(env, mapPath)
	if err != nil {
		return nil, err
	}

	r := resolver.New(env.store, m,
		resolver.WithThreshold(env.cfg.Truncation.ThresholdBytes),
		resolver.WithReport(env.rep),
	)
	stats, err := r.Run(ctx)
	if err != nil {
		return stats.Fields(), err
	}
	if err := truncmap.Save(mapPath, m); err != nil {
		return stats.Fields(), err
	}
	env.rep.Logf("map saved to %s (%d entries)", mapPath, m.Len())
	return stats.Fields(), nil
}

func runAlias(ctx context.Context, env stepEnv) (map[string]int, error) {
	m, err := loadMap(env, env.cfg.Truncation.MapPath)
	if err != nil {
		return nil, err
	}
	res, err := aliaslink.New(env.store, m, env.cfg.Links.MarkSymbol, env.rep).Run(ctx)
	return res.Fields(), err
}

// loadMap loads the truncation map for a step. A corrupt file is moved
// aside rather than overwritten, and the step continues with an empty map.
func loadMap(env stepEnv, mapPath string) (*truncmap.Map, error) {
	m, err := truncmap.Load(mapPath)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrCorruptMap):
		aside := fmt.Sprintf("%s.corrupt-%s", mapPath, time.Now().Format("20060102-150405"))
		if mvErr := os.Rename(storage.SafePath(mapPath), storage.SafePath(aside)); mvErr != nil {
			return nil, fmt.Errorf("keep corrupt map: %w", mvErr)
		}
		env.rep.Logf("map unreadable, continuing with an empty map; original kept at %s: %v", aside, err)
	case errors.Is(err, apperr.ErrConflict):
		env.rep.Logf("map loaded with inconsistencies: %v", err)
	default:
		return nil, err
	}
	return m, nil
}
