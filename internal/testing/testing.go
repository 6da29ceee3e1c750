// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/services"
	"github.com/desertthunder/tempox/internal/shared"
)

// FakeUserID owns every playlist created through [FakeRemote].
const FakeUserID = "me"

// FakePlaylist is a playlist held by [FakeRemote].
type FakePlaylist struct {
	ID      string
	Name    string
	OwnerID string
	Tracks  []string
}

// FakeRemote is an in-memory [services.Remote] that records every mutating call.
//
// Set Errs[op] to make an operation fail, where op is one of "list", "tracks", "features",
// "create", "add" or "unfollow".
type FakeRemote struct {
	mu        sync.Mutex
	playlists []*FakePlaylist
	features  map[string]models.TrackAudioFeatures
	nextID    int

	Errs           map[string]error
	Created        []string            // names passed to CreatePlaylist
	Added          map[string][]string // playlist id to every id passed to AddTracks
	AddCalls       int
	Unfollowed     []string // playlist ids
	FeatureBatches [][]string
	TrackFetches   map[string]int
}

// NewFakeRemote returns an empty [FakeRemote].
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		features:     make(map[string]models.TrackAudioFeatures),
		Errs:         make(map[string]error),
		Added:        make(map[string][]string),
		TrackFetches: make(map[string]int),
	}
}

// AddPlaylist stores a playlist owned by [FakeUserID] and returns its id.
func (f *FakeRemote) AddPlaylist(name string, tracks ...string) string {
	return f.AddForeignPlaylist(FakeUserID, name, tracks...)
}

// AddForeignPlaylist stores a playlist owned by ownerID and returns its id.
func (f *FakeRemote) AddForeignPlaylist(ownerID, name string, tracks ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(ownerID, name, tracks)
}

func (f *FakeRemote) addLocked(ownerID, name string, tracks []string) string {
	f.nextID++
	id := fmt.Sprintf("pl-%d", f.nextID)
	f.playlists = append(f.playlists, &FakePlaylist{ID: id, Name: name, OwnerID: ownerID, Tracks: slices.Clone(tracks)})
	return id
}

// SetFeatures registers audio features for a track.
func (f *FakeRemote) SetFeatures(id string, tempo, energy float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.features[id] = models.TrackAudioFeatures{ID: id, Tempo: tempo, Energy: energy}
}

// Playlist returns the stored playlist named name, or nil.
func (f *FakeRemote) Playlist(name string) *FakePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.playlists {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Reset clears the recorded calls but keeps playlists and features.
func (f *FakeRemote) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = nil
	f.Added = make(map[string][]string)
	f.AddCalls = 0
	f.Unfollowed = nil
	f.FeatureBatches = nil
	f.TrackFetches = make(map[string]int)
}

func (f *FakeRemote) fail(op string) error {
	if err := f.Errs[op]; err != nil {
		return &services.RemoteError{Op: op, Status: http.StatusInternalServerError, Err: err}
	}
	return nil
}

func (f *FakeRemote) find(id string) *FakePlaylist {
	for _, p := range f.playlists {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *FakeRemote) ListUserPlaylists(ctx context.Context, opts services.ListOptions) ([]models.PlaylistSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("list"); err != nil {
		return nil, err
	}

	out := []models.PlaylistSummary{}
	for _, p := range f.playlists {
		s := models.PlaylistSummary{ID: p.ID, Name: p.Name, OwnerID: p.OwnerID, TrackCount: len(p.Tracks)}
		if opts.Excludes(s) || (opts.OwnedOnly && p.OwnerID != FakeUserID) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *FakeRemote) GetTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("tracks"); err != nil {
		return nil, err
	}
	f.TrackFetches[playlistID]++

	p := f.find(playlistID)
	if p == nil {
		return nil, &services.RemoteError{Op: "get tracks", Status: http.StatusNotFound, Err: errors.New("not found")}
	}
	tracks := make([]models.Track, len(p.Tracks))
	for i, id := range p.Tracks {
		tracks[i] = models.Track{ID: id}
	}
	return tracks, nil
}

func (f *FakeRemote) GetAudioFeatures(ctx context.Context, trackIDs []string) ([]models.TrackAudioFeatures, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("features"); err != nil {
		return nil, err
	}
	if len(trackIDs) > shared.MaxFeatureBatch {
		return nil, fmt.Errorf("%w: %d ids", shared.ErrTooManyIDs, len(trackIDs))
	}
	f.FeatureBatches = append(f.FeatureBatches, slices.Clone(trackIDs))

	out := []models.TrackAudioFeatures{}
	for _, id := range trackIDs {
		if feat, ok := f.features[id]; ok {
			out = append(out, feat)
		}
	}
	return out, nil
}

func (f *FakeRemote) CreatePlaylist(ctx context.Context, name string, public bool, description string) (*models.CreatedPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create"); err != nil {
		return nil, err
	}
	f.Created = append(f.Created, name)
	id := f.addLocked(FakeUserID, name, nil)
	return &models.CreatedPlaylist{ID: id, Name: name}, nil
}

func (f *FakeRemote) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("add"); err != nil {
		return err
	}
	p := f.find(playlistID)
	if p == nil {
		return &services.RemoteError{Op: "add tracks", Status: http.StatusNotFound, Err: errors.New("not found")}
	}
	f.AddCalls++
	f.Added[playlistID] = append(f.Added[playlistID], trackIDs...)
	p.Tracks = append(p.Tracks, trackIDs...)
	return nil
}

func (f *FakeRemote) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("unfollow"); err != nil {
		return err
	}
	f.Unfollowed = append(f.Unfollowed, playlistID)
	f.playlists = slices.DeleteFunc(f.playlists, func(p *FakePlaylist) bool { return p.ID == playlistID })
	return nil
}

func (f *FakeRemote) Name() string { return "fake" }

// MemoryFeatureCache is a map-backed feature cache.
type MemoryFeatureCache struct {
	Features map[string]models.TrackAudioFeatures
	Err      error
	Puts     int
}

func NewMemoryFeatureCache() *MemoryFeatureCache {
	return &MemoryFeatureCache{Features: make(map[string]models.TrackAudioFeatures)}
}

func (c *MemoryFeatureCache) GetFeatures(ctx context.Context, ids []string) (map[string]models.TrackAudioFeatures, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	out := make(map[string]models.TrackAudioFeatures)
	for _, id := range ids {
		if f, ok := c.Features[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (c *MemoryFeatureCache) PutFeatures(ctx context.Context, features []models.TrackAudioFeatures) error {
	if c.Err != nil {
		return c.Err
	}
	c.Puts++
	for _, f := range features {
		c.Features[f.ID] = f
	}
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
