package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tempox/internal/formatter"
	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/repositories"
	"github.com/desertthunder/tempox/internal/services"
	"github.com/desertthunder/tempox/internal/shared"
	"github.com/desertthunder/tempox/internal/tasks"
	"github.com/desertthunder/tempox/internal/tempo"
	"github.com/urfave/cli/v3"
)

type rangeJSON struct {
	Low  int    `json:"low"`
	High int    `json:"high"`
	Name string `json:"name"`
}

// Ranges prints the partition built from the tempo settings.
func (r *Runner) Ranges(ctx context.Context, cmd *cli.Command) error {
	partition, err := tempo.BuildPartition(r.config.Tempo.Params())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]rangeJSON, 0, len(partition.Ranges()))
		for _, rg := range partition.Ranges() {
			out = append(out, rangeJSON{Low: rg.Low, High: rg.High, Name: rg.Name})
		}
		return r.writeJSON(out, true)
	}

	return r.writePlain("%s", formatter.FormatPartition(partition, r.palette))
}

// Organize collects tracks from the user's playlists, buckets them by tempo and reconciles the
// tempo playlists. Each run is recorded in the database when one is available.
func (r *Runner) Organize(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	settings := r.config.Tempo
	if cmd.Bool("skip-out-of-range") {
		settings.SkipOutOfRange = true
	}
	opts := tasks.RunOpts{
		DryRun: cmd.Bool("dry-run"),
		Prune:  settings.PruneEmpty && !cmd.Bool("no-prune"),
	}
	useJSON := cmd.Bool("json")

	remote, err := r.remoteService(ctx)
	if err != nil {
		return err
	}

	run := models.NewRun(shared.GenerateID(), opts.DryRun)
	logger := shared.WithLogger(r.logger, "run_id", run.ID)

	runs, cache := r.stores(logger, cmd.Bool("no-cache"))
	organizer, err := tasks.NewOrganizer(remote, tasks.OrganizerOpts{
		Tempo:     settings,
		BatchSize: r.config.Spotify.FeatureBatchSize,
		Cache:     cache,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if runs != nil {
		if err := runs.Create(ctx, run); err != nil {
			logger.Warn("failed to record run", "err", err)
			runs = nil
		}
	}

	logger.Info("organizing playlists", "dry_run", opts.DryRun, "prune", opts.Prune)

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.showProgress(update, useJSON, logger)
		}
	}()

	report, runErr := organizer.Run(ctx, opts, progress)
	close(progress)
	<-done

	run.Finish(runErr)
	if report != nil {
		report.Record(run)
	}
	if runs != nil {
		if err := runs.Update(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("failed to update run", "err", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("organize complete",
		"created", report.PlaylistsCreated(), "added", report.TracksAdded(), "pruned", len(report.Pruned))

	if path := cmd.String("csv"); path != "" {
		data, err := formatter.ReportToCSV(report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		logger.Info("report saved", "file", path)
	}

	if useJSON {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}
	return r.writePlainln("%s", formatter.FormatReport(report, r.palette))
}

// stores opens the run history and, unless disabled, the feature cache. A database that cannot
// be opened only costs history and caching, so the error is logged and both are nil.
func (r *Runner) stores(logger *log.Logger, noCache bool) (*repositories.RunRepository, tasks.FeatureCacher) {
	db, err := r.database()
	if err != nil {
		logger.Warn("database unavailable, run history and feature cache disabled", "err", err)
		return nil, nil
	}

	var cache tasks.FeatureCacher
	if r.config.Spotify.CacheFeatures && !noCache {
		cache = repositories.NewFeatureRepository(db)
	}
	return repositories.NewRunRepository(db), cache
}

func (r *Runner) showProgress(update tasks.ProgressUpdate, quiet bool, logger *log.Logger) {
	if quiet {
		logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		return
	}

	switch update.Phase {
	case tasks.ReconcilePlaylists, tasks.PrunePlaylists:
		r.writePlain("→ %s\n", update.Message)
	default:
		r.writePlain("%s\n", r.palette.Help(update.Message))
	}
}

// Prune unfollows every empty playlist owned by the user.
func (r *Runner) Prune(ctx context.Context, cmd *cli.Command) error {
	remote, err := r.remoteService(ctx)
	if err != nil {
		return err
	}

	owned, err := remote.ListUserPlaylists(ctx, services.ListOptions{OwnedOnly: true})
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		empty := tasks.EmptyPlaylists(owned)
		r.writePlain("%s\n", r.palette.Title(fmt.Sprintf("%d empty playlists would be unfollowed", len(empty))))
		for _, pl := range empty {
			r.writePlain("  %s (%s)\n", pl.Name, pl.ID)
		}
		return nil
	}

	organizer, err := tasks.NewOrganizer(remote, tasks.OrganizerOpts{Tempo: r.config.Tempo, Logger: r.logger})
	if err != nil {
		return err
	}

	pruned, err := organizer.PruneEmpty(ctx, owned, nil)
	for _, pl := range pruned {
		r.writePlain("%s %s\n", r.palette.OK("✓"), pl.Name)
	}
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	return r.writePlainln("Unfollowed %d empty playlists", len(pruned))
}
