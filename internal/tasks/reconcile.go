package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/services"
	"github.com/desertthunder/tempox/internal/tempo"
)

// PlaylistRecord describes what reconciliation did (or would do) for one range.
type PlaylistRecord struct {
	Name       string   `json:"name"`
	Low        int      `json:"low"`
	High       int      `json:"high"`
	PlaylistID string   `json:"playlist_id,omitempty"` // empty for a planned creation
	Created    bool     `json:"created"`
	Members    int      `json:"members"`
	Added      []string `json:"added,omitempty"`
}

// Report is the outcome of [Organizer.Run].
type Report struct {
	DryRun     bool                     `json:"dry_run"`
	Collection *Collection              `json:"-"`
	Playlists  []PlaylistRecord         `json:"playlists"`
	Pruned     []models.PlaylistSummary `json:"pruned"`
}

// TracksAdded sums the tracks added across every playlist.
func (r *Report) TracksAdded() int {
	n := 0
	for _, p := range r.Playlists {
		n += len(p.Added)
	}
	return n
}

// PlaylistsCreated counts the playlists that were (or would be) created.
func (r *Report) PlaylistsCreated() int {
	n := 0
	for _, p := range r.Playlists {
		if p.Created {
			n++
		}
	}
	return n
}

// Record copies the counters of the report into run.
func (r *Report) Record(run *models.Run) {
	if c := r.Collection; c != nil {
		run.SourcePlaylists = len(c.SourcePlaylists)
		run.TracksClassified = c.Classified
		run.TracksSkipped = len(c.Skipped)
	}
	run.PlaylistsCreated = r.PlaylistsCreated()
	run.TracksAdded = r.TracksAdded()
	run.PlaylistsPruned = len(r.Pruned)
}

// RunOpts selects the parts of [Organizer.Run] to perform.
type RunOpts struct {
	DryRun bool
	Prune  bool
}

// ByName indexes playlists by name. When names repeat the first playlist wins.
func ByName(playlists []models.PlaylistSummary) map[string]models.PlaylistSummary {
	m := make(map[string]models.PlaylistSummary, len(playlists))
	for _, p := range playlists {
		if _, ok := m[p.Name]; !ok {
			m[p.Name] = p
		}
	}
	return m
}

// Reconcile creates a playlist for every range without one in existing and adds each range's
// missing members. Ranges receive the id of their remote playlist. Remote errors are returned as is.
func (o *Organizer) Reconcile(
	ctx context.Context,
	partition *tempo.Partition,
	existing map[string]models.PlaylistSummary,
	progress chan<- ProgressUpdate,
) ([]PlaylistRecord, error) {
	return o.reconcile(ctx, partition, existing, false, progress)
}

// Plan computes what [Organizer.Reconcile] would do without creating playlists or adding tracks.
// Existing playlists are still read to compute their missing tracks.
func (o *Organizer) Plan(
	ctx context.Context,
	partition *tempo.Partition,
	existing map[string]models.PlaylistSummary,
	progress chan<- ProgressUpdate,
) ([]PlaylistRecord, error) {
	return o.reconcile(ctx, partition, existing, true, progress)
}

func (o *Organizer) reconcile(
	ctx context.Context,
	partition *tempo.Partition,
	existing map[string]models.PlaylistSummary,
	dryRun bool,
	progress chan<- ProgressUpdate,
) ([]PlaylistRecord, error) {
	ranges := partition.Ranges()
	records := make([]PlaylistRecord, 0, len(ranges))

	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		sendProgress(progress, reconcileUpdate(i+1, len(ranges), r))

		rec := PlaylistRecord{Name: r.Name, Low: r.Low, High: r.High, Members: len(r.Members)}
		logger := o.logger.With("playlist", r.Name)

		pl, found := existing[r.Name]
		switch {
		case found:
			logger.Info("playlist already exists", "id", pl.ID)
			r.ID = pl.ID
		case dryRun:
			logger.Info("would create playlist")
			rec.Created = true
		default:
			created, err := o.remote.CreatePlaylist(ctx, r.Name, o.tempo.Public, o.tempo.Description)
			if err != nil {
				return records, err
			}
			logger.Info("created playlist", "id", created.ID)
			r.ID = created.ID
			rec.Created = true
		}
		rec.PlaylistID = r.ID

		if len(r.Members) > 0 {
			missing, err := o.missingTracks(ctx, r, rec.Created)
			if err != nil {
				return records, err
			}

			switch {
			case len(missing) == 0:
				logger.Info("all tracks already in playlist")
			case dryRun:
				logger.Info("would add tracks", "count", len(missing))
			default:
				logger.Info("adding tracks", "count", len(missing))
				if err := o.remote.AddTracks(ctx, r.ID, missing); err != nil {
					return records, err
				}
			}
			rec.Added = missing
		}

		records = append(records, rec)
	}

	return records, nil
}

// missingTracks returns the members of r not yet in its remote playlist, in ascending order.
// A playlist created during this pass is known to be empty and is not fetched.
func (o *Organizer) missingTracks(ctx context.Context, r *tempo.Range, created bool) ([]string, error) {
	if created {
		return r.TrackIDs(), nil
	}

	current, err := o.remote.GetTracks(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(current))
	for _, t := range current {
		present[t.ID] = struct{}{}
	}

	var missing []string
	for _, id := range r.TrackIDs() {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// EmptyPlaylists returns the playlists with a track count of 0.
func EmptyPlaylists(playlists []models.PlaylistSummary) []models.PlaylistSummary {
	var empty []models.PlaylistSummary
	for _, p := range playlists {
		if p.TrackCount == 0 {
			empty = append(empty, p)
		}
	}
	return empty
}

// PruneEmpty unfollows every playlist in playlists whose track count is 0, whether or not it is a
// tempo playlist. It returns the playlists that were unfollowed.
func (o *Organizer) PruneEmpty(ctx context.Context, playlists []models.PlaylistSummary, progress chan<- ProgressUpdate) ([]models.PlaylistSummary, error) {
	empty := EmptyPlaylists(playlists)
	pruned := make([]models.PlaylistSummary, 0, len(empty))

	for i, pl := range empty {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		sendProgress(progress, pruneUpdate(i+1, len(empty), pl))

		o.logger.Info("unfollowing empty playlist", "playlist", pl.Name, "id", pl.ID)
		if err := o.remote.UnfollowPlaylist(ctx, pl.ID); err != nil {
			return pruned, err
		}
		pruned = append(pruned, pl)
	}

	return pruned, nil
}

// ownedPlaylists lists every playlist owned by the current user.
func (o *Organizer) ownedPlaylists(ctx context.Context) ([]models.PlaylistSummary, error) {
	return o.remote.ListUserPlaylists(ctx, services.ListOptions{OwnedOnly: true})
}

// Run collects and classifies tracks, reconciles the tempo playlists, and, when opts.Prune is set,
// unfollows every empty owned playlist. With opts.DryRun nothing on the remote is modified and
// the report describes the planned changes.
func (o *Organizer) Run(ctx context.Context, opts RunOpts, progress chan<- ProgressUpdate) (*Report, error) {
	report := &Report{DryRun: opts.DryRun}

	collection, err := o.Collect(ctx, progress)
	if err != nil {
		return nil, err
	}
	report.Collection = collection

	owned, err := o.ownedPlaylists(ctx)
	if err != nil {
		return report, err
	}

	if opts.DryRun {
		report.Playlists, err = o.Plan(ctx, collection.Partition, ByName(owned), progress)
	} else {
		report.Playlists, err = o.Reconcile(ctx, collection.Partition, ByName(owned), progress)
	}
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}

	if !opts.Prune {
		return report, nil
	}

	if opts.DryRun {
		report.Pruned = plannedPrune(owned, report.Playlists)
		return report, nil
	}

	// Counts changed during reconciliation, so list again before sweeping.
	owned, err = o.ownedPlaylists(ctx)
	if err != nil {
		return report, err
	}
	report.Pruned, err = o.PruneEmpty(ctx, owned, progress)
	if err != nil {
		return report, fmt.Errorf("prune: %w", err)
	}
	return report, nil
}

// plannedPrune returns the playlists a real run would leave empty: existing empty playlists that
// receive no tracks, and planned playlists without members.
func plannedPrune(owned []models.PlaylistSummary, records []PlaylistRecord) []models.PlaylistSummary {
	filled := make(map[string]bool, len(records))
	var pruned []models.PlaylistSummary
	for _, rec := range records {
		if len(rec.Added) > 0 {
			filled[rec.PlaylistID] = true
			continue
		}
		if rec.Created && rec.Members == 0 {
			pruned = append(pruned, models.PlaylistSummary{Name: rec.Name})
		}
	}

	for _, p := range EmptyPlaylists(owned) {
		if !filled[p.ID] {
			pruned = append(pruned, p)
		}
	}
	return pruned
}
