// package services defines interface Remote for interacting with music streaming HTTP APIs
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/shared"
)

// ListOptions filters [Remote.ListUserPlaylists].
type ListOptions struct {
	OwnedOnly bool     // only playlists owned by the current user
	Exclude   []string // playlist names or ids to leave out
}

// Excludes reports whether a playlist is filtered out by id or name.
func (o ListOptions) Excludes(p models.PlaylistSummary) bool {
	return slices.Contains(o.Exclude, p.ID) || slices.Contains(o.Exclude, p.Name)
}

// Remote is the playlist capability the organizer drives.
type Remote interface {
	// ListUserPlaylists returns every playlist in the user's library, filtered by opts.
	ListUserPlaylists(ctx context.Context, opts ListOptions) ([]models.PlaylistSummary, error)

	// GetTracks returns the track items of a playlist. Episodes and local files are excluded.
	GetTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// GetAudioFeatures looks up features for at most [shared.MaxFeatureBatch] ids.
	// Unknown ids are dropped from the result.
	GetAudioFeatures(ctx context.Context, trackIDs []string) ([]models.TrackAudioFeatures, error)

	// CreatePlaylist creates a playlist for the current user.
	CreatePlaylist(ctx context.Context, name string, public bool, description string) (*models.CreatedPlaylist, error)

	// AddTracks appends tracks to a playlist. Callers pass only ids not already present.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// UnfollowPlaylist removes a playlist from the user's library. For owned playlists this is
	// the only form of deletion the service offers.
	UnfollowPlaylist(ctx context.Context, playlistID string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// RemoteError wraps a failed call to a [Remote].
type RemoteError struct {
	Op     string
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%v: %s: status %d: %v", shared.ErrAPIRequest, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", shared.ErrAPIRequest, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case shared.ErrAPIRequest:
		return true
	case shared.ErrTokenExpired:
		return e.Status == http.StatusUnauthorized
	case shared.ErrPlaylistNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// IsRemoteError reports whether err came from a [Remote] call.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
