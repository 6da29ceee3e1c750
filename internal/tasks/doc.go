// Package tasks organizes a user's playlists into tempo-range playlists with real-time progress reporting.
//
// # Core Operations
//
// [Organizer] drives a [services.Remote] through three phases:
//
//  1. [Organizer.Collect] : Build the partition and classify every track
//     - Lists the user's own playlists, leaving out the tempo playlists themselves
//     - Fetches track ids and audio features in batches of at most 100
//     - Classifies each track by its energy-corrected tempo
//
//  2. [Organizer.Reconcile] : Make the remote match the partition
//     - Reuses a playlist whose name matches the range, otherwise creates one
//     - Adds only the tracks the playlist does not already hold
//
//  3. [Organizer.PruneEmpty] : Unfollow every owned playlist with no tracks
//     - This sweeps the whole library, not only the playlists of this run
//
// [Organizer.Run] performs all three, and [Organizer.Plan] computes the same changes without
// mutating the remote.
//
// # Progress Reporting
//
// All operations accept a channel for [ProgressUpdate] values. Sends use select with default so
// reporting never blocks the run.
//
// # Feature Caching
//
// The optional [FeatureCacher] interface stores audio features between runs. Cache failures are
// logged and otherwise ignored.
//
// # Errors
//
// Remote failures propagate unchanged to the caller; nothing here retries. A track whose tempo
// reaches the maximum aborts the run with a [*tempo.TempoOutOfRangeError] unless
// skip_out_of_range is set, in which case the track is logged and counted as skipped.
package tasks
