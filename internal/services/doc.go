// Package services defines the [Remote] capability the tempo organizer needs from a music
// streaming service and implements it for Spotify.
//
// # Remote Interface
//
// [Remote] covers exactly what organizing by tempo requires: listing the user's playlists, reading
// a playlist's tracks, looking up audio features, creating playlists, adding tracks and
// unfollowing playlists. Responses are decoded into the typed records of package models.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 with automatic token refresh. A callback registered with
// [SpotifyService.SetTokenRefreshCallback] observes refreshed tokens so they can be persisted.
//
// Pagination is followed internally. [SpotifyService.AddTracks] sends at most 100 URIs per request
// and [SpotifyService.GetAudioFeatures] rejects more than 100 ids per call, as the Web API does.
// Requests are paced client side by a [rate.Limiter] when a rate is configured.
//
// # Error Handling
//
// Every failed call returns a [*RemoteError] naming the operation. It matches:
//   - [shared.ErrAPIRequest] : any failed request
//   - [shared.ErrTokenExpired] : HTTP 401, reauthorization needed
//   - [shared.ErrPlaylistNotFound] : HTTP 404
//   - [shared.ErrNotAuthenticated] : no token configured
//
// Nothing is retried here; callers decide how to react.
package services
