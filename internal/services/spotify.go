// Spotify API implementation of [Remote]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/tempox/internal/models"
	"github.com/desertthunder/tempox/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAccountsURL = "https://accounts.spotify.com"
	spotifyBaseURL     = "https://api.spotify.com/v1"

	playlistPageSize = 50
	itemsPageSize    = 100
	maxAddPerRequest = 100
)

// SpotifyScopes are the scopes needed to read the library and modify playlists.
var SpotifyScopes = []string{
	"user-library-read",
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackTotal struct {
	Total int `json:"total"`
}

type spotifySimplePlaylist struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Owner  spotifyOwner `json:"owner"`
	Public *bool        `json:"public"`
	Tracks trackTotal   `json:"tracks"`
}

type spotifyPlaylistPage struct {
	Items []*spotifySimplePlaylist `json:"items"`
	Next  *string                  `json:"next"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	ID      *string         `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	IsLocal bool            `json:"is_local"`
	Artists []spotifyArtist `json:"artists"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyItemsPage struct {
	Items []spotifyPlaylistItem `json:"items"`
	Next  *string               `json:"next"`
}

type spotifyAudioFeatures struct {
	ID     string  `json:"id"`
	Tempo  float64 `json:"tempo"`
	Energy float64 `json:"energy"`
}

type spotifyAudioFeaturesResponse struct {
	AudioFeatures []*spotifyAudioFeatures `json:"audio_features"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Public      bool   `json:"public"`
	Description string `json:"description"`
}

type spotifyCreatedPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

// SpotifyOpts configures optional behavior of [SpotifyService].
type SpotifyOpts struct {
	HTTPClient  *http.Client // base transport, wrapped by the OAuth2 client
	BaseURL     string       // API root, defaults to the public Web API
	AccountsURL string       // authorize and token root, defaults to the accounts service
	RateLimit   float64      // requests per second, 0 disables client-side limiting
}

// SpotifyService implements [Remote] for the Spotify Web API.
type SpotifyService struct {
	config         *oauth2.Config
	baseClient     *http.Client
	httpClient     *http.Client
	tokenSource    oauth2.TokenSource
	baseURL        string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)

	mu     sync.Mutex
	userID string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts SpotifyOpts) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:8888/callback"
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.AccountsURL == "" {
		opts.AccountsURL = spotifyAccountsURL
	}
	accounts := strings.TrimSuffix(opts.AccountsURL, "/")

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  accounts + "/authorize",
				TokenURL: accounts + "/api/token",
			},
		},
		baseClient: opts.HTTPClient,
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		limiter:    limiter,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// GetOAuthConfig exposes the OAuth2 configuration for the callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to be called whenever a new access token is issued.
// Must be called before authenticating.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate expects either an "access_token" or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		})
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(s.oauthContext(ctx), authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs token. Expired tokens are refreshed transparently when a refresh token is present.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrNotAuthenticated)
	}

	oauthCtx := s.oauthContext(context.WithoutCancel(ctx))
	var source oauth2.TokenSource = s.config.TokenSource(oauthCtx, token)
	if s.onTokenRefresh != nil {
		source = &refreshableTokenSource{source: source, callback: s.onTokenRefresh}
	}

	s.tokenSource = oauth2.ReuseTokenSource(token, source)
	s.httpClient = oauth2.NewClient(oauthCtx, s.tokenSource)
	return nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
}

// refreshableTokenSource reports each distinct access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// doRequest performs an authenticated JSON request. endpoint is a path below the API root or an
// absolute URL returned by the API (pagination links).
func (s *SpotifyService) doRequest(ctx context.Context, op, method, endpoint string, body, result any) error {
	if s.tokenSource == nil {
		return &RemoteError{Op: op, Err: shared.ErrNotAuthenticated}
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return &RemoteError{Op: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RemoteError{Op: op, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}

// CurrentUserID returns the id of the authenticated user, fetched once.
func (s *SpotifyService) CurrentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != "" {
		return s.userID, nil
	}

	var user spotifyUser
	if err := s.doRequest(ctx, "current user", http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}
	s.userID = user.ID
	return s.userID, nil
}

// ListUserPlaylists walks every page of /me/playlists.
func (s *SpotifyService) ListUserPlaylists(ctx context.Context, opts ListOptions) ([]models.PlaylistSummary, error) {
	var ownerID string
	if opts.OwnedOnly {
		id, err := s.CurrentUserID(ctx)
		if err != nil {
			return nil, err
		}
		ownerID = id
	}

	playlists := []models.PlaylistSummary{}
	next := fmt.Sprintf("/me/playlists?limit=%d", playlistPageSize)
	for next != "" {
		var page spotifyPlaylistPage
		if err := s.doRequest(ctx, "list playlists", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			if sp == nil {
				continue
			}
			p := models.PlaylistSummary{
				ID:         sp.ID,
				Name:       sp.Name,
				OwnerID:    sp.Owner.ID,
				TrackCount: sp.Tracks.Total,
				Public:     sp.Public != nil && *sp.Public,
			}
			if opts.Excludes(p) || (opts.OwnedOnly && p.OwnerID != ownerID) {
				continue
			}
			playlists = append(playlists, p)
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return playlists, nil
}

// GetTracks walks every page of a playlist's items, keeping only tracks with an id.
func (s *SpotifyService) GetTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(itemsPageSize))
	params.Set("additional_types", "track")
	params.Set("fields", "items(track(id,name,type,is_local,artists(name))),next")

	tracks := []models.Track{}
	next := fmt.Sprintf("/playlists/%s/tracks?%s", url.PathEscape(playlistID), params.Encode())
	for next != "" {
		var page spotifyItemsPage
		if err := s.doRequest(ctx, "get tracks", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			t := item.Track
			// additional_types is not honored for every playlist, so filter episodes here
			if t == nil || t.Type != "track" || t.IsLocal || t.ID == nil || *t.ID == "" {
				continue
			}
			track := models.Track{ID: *t.ID, Name: t.Name}
			if len(t.Artists) > 0 {
				track.Artist = t.Artists[0].Name
			}
			tracks = append(tracks, track)
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return tracks, nil
}

// GetAudioFeatures fetches features for up to [shared.MaxFeatureBatch] tracks. Tempo is rounded to
// the nearest integer. Null entries for unknown ids are skipped.
func (s *SpotifyService) GetAudioFeatures(ctx context.Context, trackIDs []string) ([]models.TrackAudioFeatures, error) {
	if len(trackIDs) == 0 {
		return []models.TrackAudioFeatures{}, nil
	}
	if len(trackIDs) > shared.MaxFeatureBatch {
		return nil, fmt.Errorf("%w: %d audio feature ids, maximum %d", shared.ErrTooManyIDs, len(trackIDs), shared.MaxFeatureBatch)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(trackIDs, ","))

	var response spotifyAudioFeaturesResponse
	if err := s.doRequest(ctx, "get audio features", http.MethodGet, "/audio-features?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	features := make([]models.TrackAudioFeatures, 0, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f == nil || f.ID == "" {
			continue
		}
		features = append(features, models.TrackAudioFeatures{
			ID:     f.ID,
			Tempo:  math.Round(f.Tempo),
			Energy: f.Energy,
		})
	}

	return features, nil
}

// CreatePlaylist creates a playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string, public bool, description string) (*models.CreatedPlaylist, error) {
	userID, err := s.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var created spotifyCreatedPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := createPlaylistRequest{Name: name, Public: public, Description: description}
	if err := s.doRequest(ctx, "create playlist", http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &models.CreatedPlaylist{ID: created.ID, Name: created.Name}, nil
}

// AddTracks appends tracks in requests of at most 100 URIs.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for _, batch := range shared.Chunk(trackIDs, maxAddPerRequest) {
		uris := make([]string, len(batch))
		for i, id := range batch {
			uris[i] = "spotify:track:" + id
		}
		if err := s.doRequest(ctx, "add tracks", http.MethodPost, endpoint, addTracksRequest{URIs: uris}, nil); err != nil {
			return err
		}
	}

	return nil
}

// UnfollowPlaylist removes a playlist from the user's library.
func (s *SpotifyService) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	return s.doRequest(ctx, "unfollow playlist", http.MethodDelete, endpoint, nil, nil)
}
