package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// testSpotifyClient builds an authenticated client pointed at a test server,
// with pacing and retries disabled.
func testSpotifyClient(t *testing.T, serverURL string) *SpotifyClient {
	t.Helper()

	client, err := NewSpotifyClient(shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	client.SetToken(&oauth2.Token{AccessToken: "test_access_token"})
	client.api.baseURL = serverURL
	client.api.limiter = rate.NewLimiter(rate.Inf, 0)
	client.api.retry = RetryPolicy{MaxAttempts: 1}
	return client
}

func spotifyTrackJSON(id, name, artist, album string) map[string]any {
	return map[string]any{
		"id":   id,
		"name": name,
		"artists": []map[string]any{
			{"id": "artist_" + id, "name": artist},
		},
		"album": map[string]any{"id": "album_" + id, "name": album},
		"uri":  "spotify:track:" + id,
	}
}

func TestSpotifyClient(t *testing.T) {
	t.Run("NewSpotifyClient", func(t *testing.T) {
		t.Run("with valid credentials", func(t *testing.T) {
			client, err := NewSpotifyClient(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if client.Name() != models.ServiceSpotify {
				t.Errorf("expected service spotify, got %s", client.Name())
			}
			if client.Authenticated() {
				t.Error("expected new client to be unauthenticated")
			}
		})

		t.Run("missing credentials", func(t *testing.T) {
			_, err := NewSpotifyClient(shared.SpotifyConfig{ClientID: "only_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("default redirect URI", func(t *testing.T) {
			client, err := NewSpotifyClient(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if client.config.RedirectURL != "http://localhost:8080/callback" {
				t.Errorf("expected default redirect URI, got %s", client.config.RedirectURL)
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		client, err := NewSpotifyClient(shared.SpotifyConfig{
			ClientID:     "test_client_id",
			ClientSecret: "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		authURL := client.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("SetToken", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); auth != "Bearer test_access_token" {
				t.Errorf("expected bearer token header, got %q", auth)
			}
			json.NewEncoder(w).Encode(SpotifyUser{ID: "user123"})
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		if !client.Authenticated() {
			t.Error("expected client to be authenticated after SetToken")
		}
		if client.Token().AccessToken != "test_access_token" {
			t.Errorf("expected stored token, got %s", client.Token().AccessToken)
		}

		if _, err := client.UserProfile(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("LikedTracks", func(t *testing.T) {
		t.Run("walks pagination", func(t *testing.T) {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				if r.URL.Path != "/me/tracks" {
					t.Errorf("expected path /me/tracks, got %s", r.URL.Path)
				}

				next := "next-page"
				page := map[string]any{
					"items": []map[string]any{
						{"added_at": "2024-03-02T10:00:00Z", "track": spotifyTrackJSON("sp1", "First Song", "Artist A", "Album A")},
						{"added_at": "2024-03-01T10:00:00Z", "track": spotifyTrackJSON("sp2", "Second Song", "Artist B", "Album B")},
					},
					"next": &next,
				}
				if r.URL.Query().Get("offset") != "0" {
					page = map[string]any{
						"items": []map[string]any{
							{"added_at": "2024-02-01T10:00:00Z", "track": spotifyTrackJSON("sp3", "Third Song", "Artist C", "Album C")},
						},
						"next": nil,
					}
				}
				json.NewEncoder(w).Encode(page)
			}))
			defer server.Close()

			client := testSpotifyClient(t, server.URL)
			tracks, err := client.LikedTracks(context.Background(), nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if requests != 2 {
				t.Errorf("expected 2 page requests, got %d", requests)
			}
			if len(tracks) != 3 {
				t.Fatalf("expected 3 tracks, got %d", len(tracks))
			}
			if tracks[0].ID != "sp1" || tracks[0].Title != "First Song" {
				t.Errorf("unexpected first track: %+v", tracks[0])
			}
			if tracks[0].Artist != "Artist A" || tracks[0].Album != "Album A" {
				t.Errorf("unexpected first track metadata: %+v", tracks[0])
			}
			if tracks[0].AddedAt.IsZero() {
				t.Error("expected added_at to be parsed")
			}
			if tracks[2].ID != "sp3" {
				t.Errorf("expected last track sp3, got %s", tracks[2].ID)
			}
		})

		t.Run("stops at the since cutoff", func(t *testing.T) {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				next := "next-page"
				json.NewEncoder(w).Encode(map[string]any{
					"items": []map[string]any{
						{"added_at": "2024-03-02T10:00:00Z", "track": spotifyTrackJSON("sp1", "New Song", "Artist A", "Album A")},
						{"added_at": "2024-01-01T10:00:00Z", "track": spotifyTrackJSON("sp2", "Old Song", "Artist B", "Album B")},
					},
					"next": &next,
				})
			}))
			defer server.Close()

			client := testSpotifyClient(t, server.URL)
			since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			tracks, err := client.LikedTracks(context.Background(), &since)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(tracks) != 1 {
				t.Fatalf("expected 1 track newer than the cutoff, got %d", len(tracks))
			}
			if tracks[0].ID != "sp1" {
				t.Errorf("expected sp1, got %s", tracks[0].ID)
			}
			if requests != 1 {
				t.Errorf("expected pagination to stop at the cutoff, got %d requests", requests)
			}
		})
	})

	t.Run("Playlists", func(t *testing.T) {
		meCalls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/me":
				meCalls++
				json.NewEncoder(w).Encode(SpotifyUser{ID: "user123"})
			case "/me/playlists":
				json.NewEncoder(w).Encode(map[string]any{
					"items": []map[string]any{
						{
							"id":     "pl_owned",
							"name":   "My Mix",
							"owner":  map[string]any{"id": "user123"},
							"tracks": map[string]any{"total": 12},
						},
						{
							"id":     "pl_followed",
							"name":   "Someone Else's Mix",
							"owner":  map[string]any{"id": "other_user"},
							"tracks": map[string]any{"total": 40},
						},
					},
					"next": nil,
				})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)

		t.Run("owned only by default", func(t *testing.T) {
			playlists, err := client.Playlists(context.Background(), false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(playlists) != 1 {
				t.Fatalf("expected 1 owned playlist, got %d", len(playlists))
			}
			if playlists[0].ID != "pl_owned" || !playlists[0].Owned {
				t.Errorf("unexpected playlist: %+v", playlists[0])
			}
			if playlists[0].TrackCount != 12 {
				t.Errorf("expected 12 tracks, got %d", playlists[0].TrackCount)
			}
		})

		t.Run("followed included on request", func(t *testing.T) {
			playlists, err := client.Playlists(context.Background(), true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(playlists) != 2 {
				t.Fatalf("expected 2 playlists, got %d", len(playlists))
			}
			if playlists[1].Owned {
				t.Error("expected followed playlist to be marked not owned")
			}
		})

		t.Run("caches the user id", func(t *testing.T) {
			if meCalls != 1 {
				t.Errorf("expected a single /me request across calls, got %d", meCalls)
			}
		})
	})

	t.Run("PlaylistTracks skips local files", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("expected path /playlists/pl1/tracks, got %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"added_at": "2024-03-02T10:00:00Z", "track": spotifyTrackJSON("sp1", "Kept", "Artist A", "Album A")},
					{"added_at": "2024-03-02T10:00:00Z", "track": map[string]any{"id": "", "name": "Local File"}},
				},
				"next": nil,
			})
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		tracks, err := client.PlaylistTracks(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(tracks) != 1 {
			t.Fatalf("expected local file to be skipped, got %d tracks", len(tracks))
		}
		if tracks[0].Title != "Kept" {
			t.Errorf("expected Kept, got %s", tracks[0].Title)
		}
	})

	t.Run("FavoriteAlbums", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/albums" {
				t.Errorf("expected path /me/albums, got %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"added_at": "2024-03-02T10:00:00Z",
						"album": map[string]any{
							"id":      "alb1",
							"name":    "The Album",
							"artists": []map[string]any{{"id": "art1", "name": "The Artist"}},
						},
					},
				},
				"next": nil,
			})
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		albums, err := client.FavoriteAlbums(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(albums) != 1 {
			t.Fatalf("expected 1 album, got %d", len(albums))
		}
		if albums[0].Name != "The Album" || albums[0].Artist != "The Artist" {
			t.Errorf("unexpected album: %+v", albums[0])
		}
	})

	t.Run("FavoriteArtists walks the cursor", func(t *testing.T) {
		var afterSeen []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("type") != "artist" {
				t.Errorf("expected type=artist, got %s", r.URL.Query().Get("type"))
			}
			afterSeen = append(afterSeen, r.URL.Query().Get("after"))

			next := "next-page"
			page := map[string]any{
				"artists": map[string]any{
					"items":   []map[string]any{{"id": "art1", "name": "Artist One"}},
					"next":    &next,
					"cursors": map[string]any{"after": "art1"},
				},
			}
			if r.URL.Query().Get("after") != "" {
				page = map[string]any{
					"artists": map[string]any{
						"items":   []map[string]any{{"id": "art2", "name": "Artist Two"}},
						"next":    nil,
						"cursors": map[string]any{"after": ""},
					},
				}
			}
			json.NewEncoder(w).Encode(page)
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		artists, err := client.FavoriteArtists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(artists) != 2 {
			t.Fatalf("expected 2 artists, got %d", len(artists))
		}
		if artists[1].Name != "Artist Two" {
			t.Errorf("expected Artist Two, got %s", artists[1].Name)
		}
		if len(afterSeen) != 2 || afterSeen[1] != "art1" {
			t.Errorf("expected second request to carry the cursor, got %v", afterSeen)
		}
	})

	t.Run("SearchTracks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("expected path /search, got %s", r.URL.Path)
			}
			if q := r.URL.Query().Get("q"); q != "hello world" {
				t.Errorf("expected query 'hello world', got %q", q)
			}
			if r.URL.Query().Get("type") != "track" {
				t.Errorf("expected type=track, got %s", r.URL.Query().Get("type"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"tracks": map[string]any{
					"items": []map[string]any{spotifyTrackJSON("sp1", "Hello World", "Artist A", "Album A")},
				},
			})
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		tracks, err := client.SearchTracks(context.Background(), "hello world")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(tracks) != 1 || tracks[0].Title != "Hello World" {
			t.Errorf("unexpected search results: %+v", tracks)
		}
	})

	t.Run("EnsureLiked", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("expected PUT method, got %s", r.Method)
			}
			if r.URL.Path != "/me/tracks" {
				t.Errorf("expected path /me/tracks, got %s", r.URL.Path)
			}
			if ids := r.URL.Query().Get("ids"); ids != "sp1" {
				t.Errorf("expected ids sp1, got %s", ids)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		if err := client.EnsureLiked(context.Background(), "sp1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("RemoveLiked batches ids", func(t *testing.T) {
		var batches []int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE method, got %s", r.Method)
			}
			batches = append(batches, len(strings.Split(r.URL.Query().Get("ids"), ",")))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ids := make([]string, 70)
		for i := range ids {
			ids[i] = fmt.Sprintf("sp%d", i)
		}

		client := testSpotifyClient(t, server.URL)
		if err := client.RemoveLiked(context.Background(), ids); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(batches) != 2 || batches[0] != 50 || batches[1] != 20 {
			t.Errorf("expected batches of 50 and 20, got %v", batches)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/me":
				json.NewEncoder(w).Encode(SpotifyUser{ID: "user123"})
			case "/users/user123/playlists":
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}

				var body map[string]any
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body["name"] != "Mirror" {
					t.Errorf("expected name Mirror, got %v", body["name"])
				}
				if body["public"] != false {
					t.Errorf("expected public false, got %v", body["public"])
				}

				json.NewEncoder(w).Encode(map[string]any{"id": "pl_new", "name": "Mirror"})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		playlist, err := client.CreatePlaylist(context.Background(), "Mirror")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if playlist.ID != "pl_new" || !playlist.Owned {
			t.Errorf("unexpected playlist: %+v", playlist)
		}
	})

	t.Run("AddPlaylistTracks sends uris", func(t *testing.T) {
		var uris []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("expected path /playlists/pl1/tracks, got %s", r.URL.Path)
			}

			var body struct {
				URIs []string `json:"uris"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			uris = append(uris, body.URIs...)
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := testSpotifyClient(t, server.URL)
		if err := client.AddPlaylistTracks(context.Background(), "pl1", []string{"sp1", "sp2"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(uris) != 2 || uris[0] != "spotify:track:sp1" {
			t.Errorf("expected spotify uris, got %v", uris)
		}
	})

	t.Run("Token Persistence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")

		token := &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		if err := SaveSpotifyToken(path, token); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		loaded, err := LoadSpotifyToken(path)
		if err != nil {
			t.Fatalf("failed to load token: %v", err)
		}

		if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" {
			t.Errorf("unexpected token: %+v", loaded)
		}
		if !loaded.Expiry.Equal(token.Expiry) {
			t.Errorf("expected expiry %v, got %v", token.Expiry, loaded.Expiry)
		}

		t.Run("missing file", func(t *testing.T) {
			if _, err := LoadSpotifyToken(filepath.Join(t.TempDir(), "absent.json")); err == nil {
				t.Error("expected error for missing token file")
			}
		})
	})

	t.Run("Client Interface", func(t *testing.T) {
		client, err := NewSpotifyClient(shared.SpotifyConfig{
			ClientID:     "test_client_id",
			ClientSecret: "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		var _ Client = client
	})
}
