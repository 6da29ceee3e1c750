package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/tempox/internal/models"
)

// RunRepository persists the history of organize runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run. The run must already carry its id.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, started_at, finished_at, status, dry_run, source_playlists,
			tracks_classified, tracks_skipped, playlists_created, tracks_added,
			playlists_pruned, error
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		nullTime(run),
		string(run.Status),
		run.DryRun,
		run.SourcePlaylists,
		run.TracksClassified,
		run.TracksSkipped,
		run.PlaylistsCreated,
		run.TracksAdded,
		run.PlaylistsPruned,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Update stores the status, counters and finish time of an existing run.
func (r *RunRepository) Update(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE runs
		SET finished_at = ?, status = ?, source_playlists = ?, tracks_classified = ?,
			tracks_skipped = ?, playlists_created = ?, tracks_added = ?,
			playlists_pruned = ?, error = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullTime(run),
		string(run.Status),
		run.SourcePlaylists,
		run.TracksClassified,
		run.TracksSkipped,
		run.PlaylistsCreated,
		run.TracksAdded,
		run.PlaylistsPruned,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, run.ID)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT
			id, started_at, finished_at, status, dry_run, source_playlists,
			tracks_classified, tracks_skipped, playlists_created, tracks_added,
			playlists_pruned, error
		FROM runs
		WHERE id = ?
	`

	run, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return run, err
}

// List returns the most recent runs first. A limit of 0 returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.Run, error) {
	query := `
		SELECT
			id, started_at, finished_at, status, dry_run, source_playlists,
			tracks_classified, tracks_skipped, playlists_created, tracks_added,
			playlists_pruned, error
		FROM runs
		ORDER BY started_at DESC
	`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scan(row scanner) (*models.Run, error) {
	var (
		run        models.Run
		status     string
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.StartedAt, &finishedAt, &status, &run.DryRun, &run.SourcePlaylists,
		&run.TracksClassified, &run.TracksSkipped, &run.PlaylistsCreated, &run.TracksAdded,
		&run.PlaylistsPruned, &run.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

func nullTime(run *models.Run) sql.NullTime {
	if run.FinishedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *run.FinishedAt, Valid: true}
}
