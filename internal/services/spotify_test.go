package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tempox/internal/shared"
	"golang.org/x/oauth2"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
}

// fakeSpotify serves canned Web API responses and records requests.
type fakeSpotify struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{t: t, routes: map[string]http.HandlerFunc{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
			Auth:   r.Header.Get("Authorization"),
		})
		f.mu.Unlock()

		if h, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSpotify) handle(method, path string, h http.HandlerFunc) {
	f.routes[method+" "+path] = h
}

func (f *fakeSpotify) json(method, path string, v any) {
	f.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	})
}

func (f *fakeSpotify) recorded(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeSpotify) service(t *testing.T) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(testCredentials, SpotifyOpts{BaseURL: f.server.URL, HTTPClient: f.server.Client()})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "test_token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials, SpotifyOpts{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.baseURL != spotifyBaseURL {
				t.Errorf("expected default base URL, got %s", srv.baseURL)
			}
			if srv.limiter != nil {
				t.Error("expected no limiter without a rate")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "s"}, SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "c"}, SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Rate limit configures limiter", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials, SpotifyOpts{RateLimit: 2})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.limiter == nil || srv.limiter.Limit() != 2 {
				t.Errorf("expected limiter at 2 rps, got %v", srv.limiter)
			}
		})

		t.Run("Scopes allow playlist modification", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials, SpotifyOpts{})
			scopes := strings.Join(srv.GetOAuthConfig().Scopes, " ")
			if !strings.Contains(scopes, "playlist-modify-private") || !strings.Contains(scopes, "playlist-read-private") {
				t.Errorf("missing scopes: %s", scopes)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials, SpotifyOpts{})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL should contain %q: %s", want, authURL)
			}
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials, SpotifyOpts{})

		if err := srv.Authenticate(context.Background(), map[string]string{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if err := srv.OAuthenticate(context.Background(), nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Not authenticated", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials, SpotifyOpts{})

		_, err := srv.ListUserPlaylists(context.Background(), ListOptions{})
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if !IsRemoteError(err) {
			t.Errorf("expected RemoteError, got %T", err)
		}
	})

	t.Run("Remote interface", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials, SpotifyOpts{})
		var _ Remote = srv
	})
}

func TestSpotifyListUserPlaylists(t *testing.T) {
	f := newFakeSpotify(t)
	f.json(http.MethodGet, "/me", map[string]any{"id": "me"})
	f.handle(http.MethodGet, "/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"items":[
				{"id":"p3","name":"Road Trip","owner":{"id":"me"},"public":false,"tracks":{"total":0}},
				null
			],"next":null}`)
			return
		}
		fmt.Fprintf(w, `{"items":[
			{"id":"p1","name":"Workout","owner":{"id":"me"},"public":true,"tracks":{"total":12}},
			{"id":"p2","name":"Friend Mix","owner":{"id":"friend"},"public":null,"tracks":{"total":4}},
			{"id":"p4","name":"auto-playlist-by-tempo [0, 49]","owner":{"id":"me"},"tracks":{"total":3}}
		],"next":"%s/me/playlists?page=2"}`, f.server.URL)
	})
	srv := f.service(t)
	ctx := context.Background()

	t.Run("all playlists across pages", func(t *testing.T) {
		playlists, err := srv.ListUserPlaylists(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 4 {
			t.Fatalf("expected 4 playlists, got %d: %+v", len(playlists), playlists)
		}
		if playlists[0].TrackCount != 12 || !playlists[0].Public || playlists[0].OwnerID != "me" {
			t.Errorf("unexpected first playlist %+v", playlists[0])
		}
		if playlists[1].Public {
			t.Error("null public should map to false")
		}
	})

	t.Run("owned only with exclusions by name and id", func(t *testing.T) {
		playlists, err := srv.ListUserPlaylists(ctx, ListOptions{
			OwnedOnly: true,
			Exclude:   []string{"auto-playlist-by-tempo [0, 49]", "p3"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 1 || playlists[0].ID != "p1" {
			t.Errorf("expected only p1, got %+v", playlists)
		}
	})

	t.Run("current user is fetched once", func(t *testing.T) {
		if _, err := srv.ListUserPlaylists(ctx, ListOptions{OwnedOnly: true}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n := len(f.recorded(http.MethodGet, "/me")); n != 1 {
			t.Errorf("expected 1 /me request, got %d", n)
		}
	})

	t.Run("bearer token is sent", func(t *testing.T) {
		reqs := f.recorded(http.MethodGet, "/me/playlists")
		if len(reqs) == 0 || reqs[0].Auth != "Bearer test_token" {
			t.Errorf("expected bearer token, got %+v", reqs)
		}
	})
}

func TestSpotifyGetTracks(t *testing.T) {
	f := newFakeSpotify(t)
	f.handle(http.MethodGet, "/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "100" {
			fmt.Fprint(w, `{"items":[{"track":{"id":"t4","name":"Four","type":"track","artists":[]}}],"next":null}`)
			return
		}
		fmt.Fprintf(w, `{"items":[
			{"track":{"id":"t1","name":"One","type":"track","artists":[{"name":"A"},{"name":"B"}]}},
			{"track":{"id":"e1","name":"Episode","type":"episode"}},
			{"track":{"id":null,"name":"Local","type":"track","is_local":true}},
			{"track":null}
		],"next":"%s/playlists/p1/tracks?offset=100"}`, f.server.URL)
	})
	srv := f.service(t)

	tracks, err := srv.GetTracks(context.Background(), "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d: %+v", len(tracks), tracks)
	}
	if tracks[0].ID != "t1" || tracks[0].Artist != "A" {
		t.Errorf("unexpected first track %+v", tracks[0])
	}
	if tracks[1].ID != "t4" {
		t.Errorf("expected track from second page, got %+v", tracks[1])
	}

	reqs := f.recorded(http.MethodGet, "/playlists/p1/tracks")
	if !strings.Contains(reqs[0].Query, "additional_types=track") {
		t.Errorf("expected additional_types filter in query: %s", reqs[0].Query)
	}
}

func TestSpotifyGetAudioFeatures(t *testing.T) {
	f := newFakeSpotify(t)
	f.handle(http.MethodGet, "/audio-features", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"audio_features":[
			{"id":"t1","tempo":127.6,"energy":0.8},
			null,
			{"id":"t3","tempo":89.4,"energy":0.3}
		]}`)
	})
	srv := f.service(t)
	ctx := context.Background()

	t.Run("rounds tempo and skips nulls", func(t *testing.T) {
		features, err := srv.GetAudioFeatures(ctx, []string{"t1", "t2", "t3"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(features) != 2 {
			t.Fatalf("expected 2 features, got %d", len(features))
		}
		if features[0].Tempo != 128 || features[1].Tempo != 89 {
			t.Errorf("expected rounded tempos 128 and 89, got %v and %v", features[0].Tempo, features[1].Tempo)
		}
		if features[1].Energy != 0.3 {
			t.Errorf("expected energy 0.3, got %v", features[1].Energy)
		}

		reqs := f.recorded(http.MethodGet, "/audio-features")
		if !strings.Contains(reqs[0].Query, "ids=t1%2Ct2%2Ct3") {
			t.Errorf("unexpected query %s", reqs[0].Query)
		}
	})

	t.Run("rejects more than one batch", func(t *testing.T) {
		ids := make([]string, shared.MaxFeatureBatch+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d", i)
		}
		if _, err := srv.GetAudioFeatures(ctx, ids); !errors.Is(err, shared.ErrTooManyIDs) {
			t.Errorf("expected ErrTooManyIDs, got %v", err)
		}
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		before := len(f.recorded(http.MethodGet, "/audio-features"))
		features, err := srv.GetAudioFeatures(ctx, nil)
		if err != nil || len(features) != 0 {
			t.Errorf("expected empty result, got %v, %v", features, err)
		}
		if after := len(f.recorded(http.MethodGet, "/audio-features")); after != before {
			t.Error("expected no request for empty input")
		}
	})
}

func TestSpotifyMutations(t *testing.T) {
	f := newFakeSpotify(t)
	f.json(http.MethodGet, "/me", map[string]any{"id": "me"})
	f.json(http.MethodPost, "/users/me/playlists", map[string]any{"id": "new1", "name": "auto-playlist-by-tempo [0, 49]"})
	f.handle(http.MethodPost, "/playlists/new1/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"snapshot_id":"x"}`)
	})
	f.handle(http.MethodDelete, "/playlists/old/followers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := f.service(t)
	ctx := context.Background()

	t.Run("CreatePlaylist", func(t *testing.T) {
		created, err := srv.CreatePlaylist(ctx, "auto-playlist-by-tempo [0, 49]", false, "desc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.ID != "new1" {
			t.Errorf("expected id new1, got %s", created.ID)
		}

		var body createPlaylistRequest
		reqs := f.recorded(http.MethodPost, "/users/me/playlists")
		if err := json.Unmarshal([]byte(reqs[0].Body), &body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body.Name != "auto-playlist-by-tempo [0, 49]" || body.Public || body.Description != "desc" {
			t.Errorf("unexpected request body %+v", body)
		}
	})

	t.Run("AddTracks batches by 100", func(t *testing.T) {
		ids := make([]string, 150)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%03d", i)
		}
		if err := srv.AddTracks(ctx, "new1", ids); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		reqs := f.recorded(http.MethodPost, "/playlists/new1/tracks")
		if len(reqs) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(reqs))
		}
		var first, second addTracksRequest
		_ = json.Unmarshal([]byte(reqs[0].Body), &first)
		_ = json.Unmarshal([]byte(reqs[1].Body), &second)
		if len(first.URIs) != 100 || len(second.URIs) != 50 {
			t.Errorf("expected batches of 100 and 50, got %d and %d", len(first.URIs), len(second.URIs))
		}
		if first.URIs[0] != "spotify:track:t000" {
			t.Errorf("unexpected uri %s", first.URIs[0])
		}
	})

	t.Run("UnfollowPlaylist", func(t *testing.T) {
		if err := srv.UnfollowPlaylist(ctx, "old"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n := len(f.recorded(http.MethodDelete, "/playlists/old/followers")); n != 1 {
			t.Errorf("expected 1 delete request, got %d", n)
		}
	})
}

func TestSpotifyErrors(t *testing.T) {
	f := newFakeSpotify(t)
	f.handle(http.MethodGet, "/me", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":401,"message":"The access token expired"}}`, http.StatusUnauthorized)
	})
	f.handle(http.MethodPost, "/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := f.service(t)
	ctx := context.Background()

	t.Run("401 maps to token expired", func(t *testing.T) {
		_, err := srv.CreatePlaylist(ctx, "x", true, "")
		if !errors.Is(err, shared.ErrTokenExpired) || !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrTokenExpired and ErrAPIRequest, got %v", err)
		}
	})

	t.Run("404 maps to playlist not found", func(t *testing.T) {
		_, err := srv.GetTracks(ctx, "missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("500 is a remote error with status", func(t *testing.T) {
		err := srv.AddTracks(ctx, "p1", []string{"t1"})
		var re *RemoteError
		if !errors.As(err, &re) {
			t.Fatalf("expected RemoteError, got %v", err)
		}
		if re.Status != http.StatusInternalServerError || re.Op != "add tracks" {
			t.Errorf("unexpected error fields %+v", re)
		}
		if errors.Is(err, shared.ErrTokenExpired) {
			t.Error("500 must not look like an expired token")
		}
	})
}

type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback on first token fetch", func(t *testing.T) {
		var captured *oauth2.Token
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
			callback: func(token *oauth2.Token) { captured = token },
		}

		token, err := source.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if captured == nil || captured.AccessToken != "test_token" || token.AccessToken != "test_token" {
			t.Errorf("unexpected tokens: captured %v, returned %v", captured, token)
		}
	})

	t.Run("calls callback only when token changes", func(t *testing.T) {
		calls := 0
		mock := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
		source := &refreshableTokenSource{source: mock, callback: func(*oauth2.Token) { calls++ }}

		_, _ = source.Token()
		_, _ = source.Token()
		mock.token = &oauth2.Token{AccessToken: "token2"}
		_, _ = source.Token()

		if calls != 2 {
			t.Errorf("expected 2 callback calls, got %d", calls)
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		source := &refreshableTokenSource{
			source:   &mockTokenSource{err: errors.New("refresh failed")},
			callback: func(*oauth2.Token) { t.Error("callback must not run on error") },
		}
		if _, err := source.Token(); err == nil {
			t.Error("expected error")
		}
	})
}
