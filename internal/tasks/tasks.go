package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/services"
	"github.com/desertthunder/tempox/internal/shared"
	"github.com/desertthunder/tempox/internal/tempo"
)

// FeatureCacher persists audio features between runs.
// Implemented by repositories.FeatureRepository.
type FeatureCacher interface {
	// GetFeatures returns the cached features for ids. Missing ids are absent from the map.
	GetFeatures(ctx context.Context, ids []string) (map[string]models.TrackAudioFeatures, error)
	PutFeatures(ctx context.Context, features []models.TrackAudioFeatures) error
}

// OrganizerOpts configures an [Organizer].
type OrganizerOpts struct {
	Tempo     shared.TempoConfig
	BatchSize int           // audio feature ids per remote call, defaults to [shared.MaxFeatureBatch]
	Cache     FeatureCacher // optional
	Logger    *log.Logger   // optional, discards output when nil
}

// Organizer buckets tracks from the user's playlists into tempo-range playlists.
type Organizer struct {
	remote    services.Remote
	tempo     shared.TempoConfig
	batchSize int
	cache     FeatureCacher
	logger    *log.Logger
}

// SkippedTrack is a track left out because its tempo reached the maximum.
type SkippedTrack struct {
	TrackID string  `json:"track_id"`
	Tempo   float64 `json:"tempo"`
}

// Collection is the outcome of [Organizer.Collect].
type Collection struct {
	Partition       *tempo.Partition
	SourcePlaylists []models.PlaylistSummary
	Tracks          int            // distinct track ids found
	Classified      int            // tracks assigned to a range
	MissingFeatures []string       // ids the remote returned no features for
	Unassigned      []string       // effective tempo fell between integer ranges
	Skipped         []SkippedTrack // out of range, only when skipping is enabled
}

// NewOrganizer validates the tempo settings before any remote call is made.
func NewOrganizer(remote services.Remote, opts OrganizerOpts) (*Organizer, error) {
	if remote == nil {
		return nil, fmt.Errorf("%w: remote not initialized", shared.ErrServiceUnavailable)
	}
	if err := opts.Tempo.Validate(); err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 || opts.BatchSize > shared.MaxFeatureBatch {
		opts.BatchSize = shared.MaxFeatureBatch
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Organizer{
		remote:    remote,
		tempo:     opts.Tempo,
		batchSize: opts.BatchSize,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}, nil
}

// Partition builds a fresh, empty partition from the configured parameters.
func (o *Organizer) Partition() (*tempo.Partition, error) {
	return tempo.BuildPartition(o.tempo.Params())
}

// Collect lists the user's own playlists (excluding the tempo playlists), fetches their tracks
// and audio features, and classifies every distinct track into a new partition.
func (o *Organizer) Collect(ctx context.Context, progress chan<- ProgressUpdate) (*Collection, error) {
	partition, err := o.Partition()
	if err != nil {
		return nil, err
	}

	playlists, err := o.remote.ListUserPlaylists(ctx, services.ListOptions{
		OwnedOnly: true,
		Exclude:   partition.Names(),
	})
	if err != nil {
		return nil, err
	}
	sendProgress(progress, listPlaylistsUpdate(len(playlists)))
	o.logger.Info("collecting tracks", "playlists", len(playlists))

	result := &Collection{Partition: partition, SourcePlaylists: playlists}

	var ids []string
	seen := make(map[string]struct{})
	for i, pl := range playlists {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sendProgress(progress, fetchTracksUpdate(i+1, len(playlists), pl))

		tracks, err := o.remote.GetTracks(ctx, pl.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tracks {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			ids = append(ids, t.ID)
		}
		o.logger.Debug("fetched tracks", "playlist", pl.Name, "tracks", len(tracks))
	}
	result.Tracks = len(ids)

	features, err := o.fetchFeatures(ctx, ids, progress)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		f, ok := features[id]
		if !ok {
			result.MissingFeatures = append(result.MissingFeatures, id)
			continue
		}

		r, err := o.classify(partition, f)
		if errors.Is(err, tempo.ErrTempoOutOfRange) && o.tempo.SkipOutOfRange {
			o.logger.Warn("skipping track", "err", err)
			result.Skipped = append(result.Skipped, SkippedTrack{TrackID: f.ID, Tempo: f.Tempo})
			continue
		}
		if err != nil {
			return nil, err
		}
		if r == nil {
			o.logger.Info("unassigned track", "track", f.ID, "tempo", f.Tempo, "energy", f.Energy)
			result.Unassigned = append(result.Unassigned, f.ID)
			continue
		}
		result.Classified++
	}
	sendProgress(progress, classifyUpdate(result.Classified, result.Tracks))

	o.logger.Info("classified tracks",
		"tracks", result.Tracks,
		"classified", result.Classified,
		"skipped", len(result.Skipped),
		"unassigned", len(result.Unassigned),
		"missing_features", len(result.MissingFeatures),
	)
	return result, nil
}

func (o *Organizer) classify(p *tempo.Partition, f models.TrackAudioFeatures) (*tempo.Range, error) {
	if o.tempo.EnergyCorrection {
		return p.Classify(f.ID, f.Tempo, f.Energy, o.tempo.EnergyThreshold)
	}
	return p.ClassifyRaw(f.ID, f.Tempo)
}

// fetchFeatures resolves features for ids from the cache first, then from the remote in
// batches of at most batchSize ids.
func (o *Organizer) fetchFeatures(ctx context.Context, ids []string, progress chan<- ProgressUpdate) (map[string]models.TrackAudioFeatures, error) {
	features := make(map[string]models.TrackAudioFeatures, len(ids))

	if o.cache != nil && len(ids) > 0 {
		cached, err := o.cache.GetFeatures(ctx, ids)
		if err != nil {
			o.logger.Warn("feature cache read failed", "err", err)
		}
		for id, f := range cached {
			features[id] = f
		}
		o.logger.Debug("feature cache", "hits", len(cached), "lookups", len(ids))
	}

	misses := slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
		_, ok := features[id]
		return ok
	})

	batches := shared.Chunk(misses, o.batchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sendProgress(progress, fetchFeaturesUpdate(i+1, len(batches)))

		fetched, err := o.remote.GetAudioFeatures(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, f := range fetched {
			if f.ID == "" {
				continue
			}
			features[f.ID] = f
		}

		if o.cache != nil && len(fetched) > 0 {
			if err := o.cache.PutFeatures(ctx, fetched); err != nil {
				o.logger.Warn("feature cache write failed", "err", err)
			}
		}
	}

	return features, nil
}
