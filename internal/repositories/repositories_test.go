package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestFeatureRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Put and Get", func(t *testing.T) {
		repo := NewFeatureRepository(setupTestDB(t))

		err := repo.PutFeatures(ctx, []models.TrackAudioFeatures{
			{ID: "t1", Tempo: 128, Energy: 0.8},
			{ID: "t2", Tempo: 90, Energy: 0.4},
			{ID: "", Tempo: 1, Energy: 1},
		})
		if err != nil {
			t.Fatalf("failed to put features: %v", err)
		}

		got, err := repo.GetFeatures(ctx, []string{"t1", "t2", "t3"})
		if err != nil {
			t.Fatalf("failed to get features: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 cached features, got %d", len(got))
		}
		if got["t1"].Tempo != 128 || got["t2"].Energy != 0.4 {
			t.Errorf("unexpected features %+v", got)
		}
		if _, ok := got["t3"]; ok {
			t.Error("unknown id must be absent")
		}
	})

	t.Run("Put replaces existing entries", func(t *testing.T) {
		repo := NewFeatureRepository(setupTestDB(t))

		_ = repo.PutFeatures(ctx, []models.TrackAudioFeatures{{ID: "t1", Tempo: 100, Energy: 0.5}})
		if err := repo.PutFeatures(ctx, []models.TrackAudioFeatures{{ID: "t1", Tempo: 101, Energy: 0.6}}); err != nil {
			t.Fatalf("failed to replace features: %v", err)
		}

		got, _ := repo.GetFeatures(ctx, []string{"t1"})
		if got["t1"].Tempo != 101 || got["t1"].Energy != 0.6 {
			t.Errorf("expected replaced values, got %+v", got["t1"])
		}
	})

	t.Run("Get spans several queries", func(t *testing.T) {
		repo := NewFeatureRepository(setupTestDB(t))

		n := maxQueryVars*2 + 7
		features := make([]models.TrackAudioFeatures, n)
		ids := make([]string, n)
		for i := range features {
			ids[i] = fmt.Sprintf("t%04d", i)
			features[i] = models.TrackAudioFeatures{ID: ids[i], Tempo: float64(60 + i%100), Energy: 0.5}
		}
		if err := repo.PutFeatures(ctx, features); err != nil {
			t.Fatalf("failed to put features: %v", err)
		}

		got, err := repo.GetFeatures(ctx, ids)
		if err != nil {
			t.Fatalf("failed to get features: %v", err)
		}
		if len(got) != n {
			t.Errorf("expected %d features, got %d", n, len(got))
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		repo := NewFeatureRepository(setupTestDB(t))

		if err := repo.PutFeatures(ctx, nil); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		got, err := repo.GetFeatures(ctx, nil)
		if err != nil || len(got) != 0 {
			t.Errorf("expected empty result, got %v, %v", got, err)
		}
	})

	t.Run("Stats and Clear", func(t *testing.T) {
		repo := NewFeatureRepository(setupTestDB(t))

		stats, err := repo.Stats(ctx)
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats.Count != 0 || stats.LastFetched != nil {
			t.Errorf("expected empty stats, got %+v", stats)
		}

		fetched := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
		repo.now = func() time.Time { return fetched }
		_ = repo.PutFeatures(ctx, []models.TrackAudioFeatures{{ID: "t1", Tempo: 1}, {ID: "t2", Tempo: 2}})

		stats, err = repo.Stats(ctx)
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats.Count != 2 {
			t.Errorf("expected 2 entries, got %d", stats.Count)
		}
		if stats.LastFetched == nil || !stats.LastFetched.Equal(fetched) {
			t.Errorf("expected last fetch %v, got %v", fetched, stats.LastFetched)
		}

		removed, err := repo.Clear(ctx)
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 removed, got %d", removed)
		}
		if got, _ := repo.GetFeatures(ctx, []string{"t1"}); len(got) != 0 {
			t.Error("expected cache to be empty")
		}
	})

	t.Run("Closed database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewFeatureRepository(db)
		db.Close()

		if _, err := repo.GetFeatures(ctx, []string{"t1"}); err == nil {
			t.Error("expected error from closed database")
		}
		if err := repo.PutFeatures(ctx, []models.TrackAudioFeatures{{ID: "t1"}}); err == nil {
			t.Error("expected error from closed database")
		}
	})
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(shared.GenerateID(), true)

		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunStatusRunning || !got.DryRun {
			t.Errorf("unexpected run %+v", got)
		}
		if !got.StartedAt.Equal(run.StartedAt) {
			t.Errorf("expected started_at %v, got %v", run.StartedAt, got.StartedAt)
		}
		if got.FinishedAt != nil {
			t.Error("running run must not have finished_at")
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(shared.GenerateID(), false)
		_ = repo.Create(ctx, run)

		run.SourcePlaylists = 3
		run.TracksClassified = 42
		run.TracksSkipped = 1
		run.PlaylistsCreated = 9
		run.TracksAdded = 40
		run.PlaylistsPruned = 5
		run.Finish(errors.New("boom"))

		if err := repo.Update(ctx, run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunStatusFailed || got.Error != "boom" {
			t.Errorf("expected failed run with error, got %+v", got)
		}
		if got.TracksClassified != 42 || got.TracksAdded != 40 || got.PlaylistsPruned != 5 {
			t.Errorf("unexpected counters %+v", got)
		}
		if got.FinishedAt == nil || !got.FinishedAt.Equal(*run.FinishedAt) {
			t.Errorf("expected finished_at %v, got %v", run.FinishedAt, got.FinishedAt)
		}
	})

	t.Run("List newest first with limit", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		for i := range 3 {
			run := models.NewRun(fmt.Sprintf("run-%d", i), false)
			run.StartedAt = base.Add(time.Duration(i) * time.Hour)
			if err := repo.Create(ctx, run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 || runs[0].ID != "run-2" || runs[2].ID != "run-0" {
			t.Errorf("expected newest first, got %v", runIDs(runs))
		}

		runs, _ = repo.List(ctx, 2)
		if len(runs) != 2 {
			t.Errorf("expected 2 runs, got %d", len(runs))
		}
	})

	t.Run("Errors", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		if err := repo.Create(ctx, &models.Run{Status: models.RunStatusRunning}); err == nil {
			t.Error("expected validation error for missing id")
		}

		run := models.NewRun("dup", false)
		_ = repo.Create(ctx, run)
		if err := repo.Create(ctx, run); err == nil {
			t.Error("expected error for duplicate id")
		}

		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Update(ctx, models.NewRun("missing", false)); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.n); got != tt.want {
			t.Errorf("placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func runIDs(runs []*models.Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
