// Package models defines the typed records exchanged between the tempo organizer and a music service.
//
// Boundary records (decoded from service responses, never untyped maps):
//   - [PlaylistSummary] : playlist id, name, owner and track count
//   - [Track] : a playlist item that is a track (episodes excluded)
//   - [TrackAudioFeatures] : tempo (rounded BPM) and energy for one track
//   - [CreatedPlaylist] : identifier and name of a newly created playlist
//
// Persistent records:
//   - [Run] : one organize run with its counters and final status
package models
