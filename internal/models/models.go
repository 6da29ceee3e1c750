package models

import (
	"errors"
	"time"
)

// PlaylistSummary is a playlist as listed for the current user.
type PlaylistSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerID    string `json:"owner_id"`
	TrackCount int    `json:"track_count"`
	Public     bool   `json:"public"`
}

// Track is a single track item of a playlist.
type Track struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
}

// TrackAudioFeatures holds the audio analysis values used for classification.
type TrackAudioFeatures struct {
	ID     string  `json:"id"`
	Tempo  float64 `json:"tempo"`  // BPM, rounded to the nearest integer
	Energy float64 `json:"energy"` // 0.0 - 1.0
}

// CreatedPlaylist is the result of creating a playlist.
type CreatedPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records a single organize invocation.
type Run struct {
	ID               string     `json:"id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Status           RunStatus  `json:"status"`
	DryRun           bool       `json:"dry_run"`
	SourcePlaylists  int        `json:"source_playlists"`
	TracksClassified int        `json:"tracks_classified"`
	TracksSkipped    int        `json:"tracks_skipped"`
	PlaylistsCreated int        `json:"playlists_created"`
	TracksAdded      int        `json:"tracks_added"`
	PlaylistsPruned  int        `json:"playlists_pruned"`
	Error            string     `json:"error,omitempty"`
}

// NewRun returns a running [Run] started now.
func NewRun(id string, dryRun bool) *Run {
	return &Run{ID: id, StartedAt: time.Now().UTC(), Status: RunStatusRunning, DryRun: dryRun}
}

// Finish marks the run as finished, failed when err is non-nil.
func (r *Run) Finish(err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusSucceeded
}

// Validate checks the fields required for persistence.
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	switch r.Status {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
	default:
		return errors.New("invalid run status: " + string(r.Status))
	}
	return nil
}
