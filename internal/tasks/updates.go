package tasks

import (
	"fmt"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/tempo"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ListPlaylists Phase = iota
	FetchTracks
	FetchFeatures
	ClassifyTracks
	ReconcilePlaylists
	PrunePlaylists
)

func (p Phase) String() string {
	switch p {
	case ListPlaylists:
		return "list_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case FetchFeatures:
		return "fetch_features"
	case ClassifyTracks:
		return "classify_tracks"
	case ReconcilePlaylists:
		return "reconcile_playlists"
	case PrunePlaylists:
		return "prune_playlists"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func listPlaylistsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d source playlists", count),
	}
}

func fetchTracksUpdate(step, total int, pl models.PlaylistSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks: %s", step, total, pl.Name),
		Data:    pl,
	}
}

func fetchFeaturesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features...", step, total),
	}
}

func classifyUpdate(classified, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClassifyTracks,
		Step:    classified,
		Total:   total,
		Message: fmt.Sprintf("Classified %d of %d tracks", classified, total),
	}
}

func reconcileUpdate(step, total int, r *tempo.Range) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%d tracks)", step, total, r.Name, len(r.Members)),
		Data:    r,
	}
}

func pruneUpdate(step, total int, pl models.PlaylistSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrunePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Unfollowing empty playlist: %s", step, total, pl.Name),
		Data:    pl,
	}
}
