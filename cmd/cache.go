package main

import (
	"context"

	"github.com/desertthunder/tempox/internal/formatter"
	"github.com/desertthunder/tempox/internal/repositories"
	"github.com/urfave/cli/v3"
)

// CacheStats shows how many audio features are cached.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	stats, err := repositories.NewFeatureRepository(db).Stats(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.FormatFeatureStats(stats))
}

// CacheClear deletes every cached audio feature.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	n, err := repositories.NewFeatureRepository(db).Clear(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("feature cache cleared", "rows", n)
	return r.writePlain("✓ Removed %d cached tracks\n", n)
}

// Runs lists recent organize runs, newest first.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	runs, err := repositories.NewRunRepository(db).List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	return r.writePlain("%s", formatter.FormatRuns(runs, r.palette))
}
