package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/shared"
)

// FeatureStats summarizes the feature cache.
type FeatureStats struct {
	Count       int        `json:"count"`
	LastFetched *time.Time `json:"last_fetched,omitempty"`
}

// FeatureRepository caches audio features by track id.
//
// Features of a track do not change, so entries never expire; [FeatureRepository.Clear] empties
// the cache.
type FeatureRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewFeatureRepository creates a new FeatureRepository with the given database connection
func NewFeatureRepository(db *sql.DB) *FeatureRepository {
	return &FeatureRepository{db: db, now: time.Now}
}

// GetFeatures returns the cached features for ids. Ids without an entry are absent from the map.
func (r *FeatureRepository) GetFeatures(ctx context.Context, ids []string) (map[string]models.TrackAudioFeatures, error) {
	features := make(map[string]models.TrackAudioFeatures, len(ids))

	for _, batch := range shared.Chunk(ids, maxQueryVars) {
		query := fmt.Sprintf(`
			SELECT track_id, tempo, energy
			FROM audio_features
			WHERE track_id IN (%s)
		`, placeholders(len(batch)))

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		if err := r.queryInto(ctx, features, query, args); err != nil {
			return nil, err
		}
	}

	return features, nil
}

func (r *FeatureRepository) queryInto(ctx context.Context, dst map[string]models.TrackAudioFeatures, query string, args []any) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query audio features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.TrackAudioFeatures
		if err := rows.Scan(&f.ID, &f.Tempo, &f.Energy); err != nil {
			return fmt.Errorf("failed to scan audio features: %w", err)
		}
		dst[f.ID] = f
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

// PutFeatures inserts or replaces features in a single transaction.
func (r *FeatureRepository) PutFeatures(ctx context.Context, features []models.TrackAudioFeatures) error {
	if len(features) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audio_features (track_id, tempo, energy, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			tempo = excluded.tempo,
			energy = excluded.energy,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC()
	for _, f := range features {
		if f.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, f.ID, f.Tempo, f.Energy, now); err != nil {
			return fmt.Errorf("failed to insert audio features for %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audio features: %w", err)
	}
	return nil
}

// Stats returns the number of cached entries and the time of the latest fetch.
func (r *FeatureRepository) Stats(ctx context.Context) (*FeatureStats, error) {
	stats := &FeatureStats{}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audio_features").Scan(&stats.Count); err != nil {
		return nil, fmt.Errorf("failed to count audio features: %w", err)
	}

	var last time.Time
	err := r.db.QueryRowContext(ctx, "SELECT fetched_at FROM audio_features ORDER BY fetched_at DESC LIMIT 1").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read last fetch time: %w", err)
	default:
		stats.LastFetched = &last
	}

	return stats, nil
}

// Clear deletes every cached entry and returns how many were removed.
func (r *FeatureRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM audio_features")
	if err != nil {
		return 0, fmt.Errorf("failed to clear audio features: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
