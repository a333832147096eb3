// Spotify API implementation of [Client]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageLimit = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	URI         string          `json:"uri"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyTrackRef struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Owner  spotifyOwner    `json:"owner"`
	Public bool            `json:"public"`
	Tracks spotifyTrackRef `json:"tracks"`
	URI    string          `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySavedAlbum represents an album saved in the user's library.
type SpotifySavedAlbum struct {
	AddedAt string       `json:"added_at"`
	Album   SpotifyAlbum `json:"album"`
}

// spotifyPage is the offset-based pagination envelope.
type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// spotifyFollowedArtists is the cursor-based envelope of /me/following.
type spotifyFollowedArtists struct {
	Artists struct {
		Items   []SpotifyArtist `json:"items"`
		Next    *string         `json:"next"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Total int `json:"total"`
	} `json:"artists"`
}

// SpotifyClient implements [Client] for the Spotify Web API.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyClient struct {
	api    apiClient
	config *oauth2.Config
	token  *oauth2.Token
	userID string
}

// NewSpotifyClient creates a Spotify client from OAuth2 credentials. The
// client is unauthenticated until SetToken or Exchange is called.
func NewSpotifyClient(cfg shared.SpotifyConfig) (*SpotifyClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("spotify client_id and client_secret are required: %w", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-modify-private",
			"playlist-modify-public",
			"user-library-read",
			"user-library-modify",
			"user-follow-read",
			"user-follow-modify",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyClient{
		api: apiClient{
			service:    "spotify",
			baseURL:    spotifyBaseURL,
			httpClient: http.DefaultClient,
			limiter:    rate.NewLimiter(rate.Limit(10), 1),
			retry:      SpotifyRetryPolicy(),
		},
		config: config,
	}, nil
}

// Name returns the service this client talks to.
func (s *SpotifyClient) Name() models.Service {
	return models.ServiceSpotify
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyClient) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and authenticates the client.
func (s *SpotifyClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	s.SetToken(token)
	return token, nil
}

// SetToken authenticates the client with an existing token. Requests use an
// auto-refreshing transport, so an expired access token with a valid refresh
// token is fine.
func (s *SpotifyClient) SetToken(token *oauth2.Token) {
	s.token = token
	s.api.httpClient = s.config.Client(context.Background(), token)
}

// Authenticated reports whether the client holds a token.
func (s *SpotifyClient) Authenticated() bool {
	return s.token != nil
}

// Token returns the client's current token, nil when unauthenticated.
func (s *SpotifyClient) Token() *oauth2.Token {
	return s.token
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyClient) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.api.do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// currentUserID returns the authenticated user's id, fetching it once.
func (s *SpotifyClient) currentUserID(ctx context.Context) (string, error) {
	if s.userID != "" {
		return s.userID, nil
	}

	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}

	s.userID = user.ID
	return s.userID, nil
}

// LikedTracks retrieves the user's saved tracks, newest first. Spotify
// returns saves in reverse chronological order, so a non-nil since lets the
// pagination stop at the first track liked at or before that instant.
func (s *SpotifyClient) LikedTracks(ctx context.Context, since *time.Time) ([]Track, error) {
	var tracks []Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", spotifyPageLimit, offset)

		var page spotifyPage[SpotifySavedTrack]
		if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			addedAt := parseSpotifyTime(item.AddedAt)
			if since != nil && !addedAt.After(*since) {
				return tracks, nil
			}
			tracks = append(tracks, spotifyTrackDTO(item.Track, addedAt))
		}

		if page.Next == nil {
			break
		}
		offset += spotifyPageLimit
	}

	return tracks, nil
}

// Playlists retrieves the user's playlists. Playlists owned by other users
// are skipped unless includeFollowed is set.
func (s *SpotifyClient) Playlists(ctx context.Context, includeFollowed bool) ([]Playlist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var playlists []Playlist
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", spotifyPageLimit, offset)

		var page spotifyPage[SpotifySimplePlaylist]
		if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			owned := sp.Owner.ID == userID
			if !owned && !includeFollowed {
				continue
			}
			playlists = append(playlists, Playlist{
				ID:         sp.ID,
				Title:      sp.Name,
				TrackCount: sp.Tracks.Total,
				Owned:      owned,
			})
		}

		if page.Next == nil {
			break
		}
		offset += spotifyPageLimit
	}

	return playlists, nil
}

// PlaylistTracks retrieves a playlist's full ordered track listing.
func (s *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var tracks []Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, spotifyPageLimit, offset)

		var page spotifyPage[SpotifySavedTrack]
		if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			// Local files and removed tracks come back with an empty id
			if item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, spotifyTrackDTO(item.Track, parseSpotifyTime(item.AddedAt)))
		}

		if page.Next == nil {
			break
		}
		offset += spotifyPageLimit
	}

	return tracks, nil
}

// FavoriteAlbums retrieves the user's saved albums.
func (s *SpotifyClient) FavoriteAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/albums?limit=%d&offset=%d", spotifyPageLimit, offset)

		var page spotifyPage[SpotifySavedAlbum]
		if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			albums = append(albums, spotifyAlbumDTO(item.Album))
		}

		if page.Next == nil {
			break
		}
		offset += spotifyPageLimit
	}

	return albums, nil
}

// FavoriteArtists retrieves the user's followed artists via cursor pagination.
func (s *SpotifyClient) FavoriteArtists(ctx context.Context) ([]Artist, error) {
	var artists []Artist
	after := ""

	for {
		endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", spotifyPageLimit)
		if after != "" {
			endpoint += "&after=" + url.QueryEscape(after)
		}

		var page spotifyFollowedArtists
		if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, sa := range page.Artists.Items {
			artists = append(artists, Artist{ID: sa.ID, Name: sa.Name})
		}

		if page.Artists.Next == nil || page.Artists.Cursors.After == "" {
			break
		}
		after = page.Artists.Cursors.After
	}

	return artists, nil
}

// SearchTracks returns ranked track candidates for a free-text query.
func (s *SpotifyClient) SearchTracks(ctx context.Context, query string) ([]Track, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=10", url.QueryEscape(query))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var tracks []Track
	for _, st := range response.Tracks.Items {
		tracks = append(tracks, spotifyTrackDTO(st, time.Time{}))
	}
	return tracks, nil
}

// SearchAlbums returns ranked album candidates for a free-text query.
func (s *SpotifyClient) SearchAlbums(ctx context.Context, query string) ([]Album, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=album&limit=10", url.QueryEscape(query))

	var response struct {
		Albums struct {
			Items []SpotifyAlbum `json:"items"`
		} `json:"albums"`
	}
	if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var albums []Album
	for _, sa := range response.Albums.Items {
		albums = append(albums, spotifyAlbumDTO(sa))
	}
	return albums, nil
}

// SearchArtists returns ranked artist candidates for a free-text query.
func (s *SpotifyClient) SearchArtists(ctx context.Context, query string) ([]Artist, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=artist&limit=10", url.QueryEscape(query))

	var response struct {
		Artists struct {
			Items []SpotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := s.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var artists []Artist
	for _, sa := range response.Artists.Items {
		artists = append(artists, Artist{ID: sa.ID, Name: sa.Name})
	}
	return artists, nil
}

// EnsureLiked adds a track to the user's saved tracks. Saving an already
// saved track is a no-op on Spotify's side.
func (s *SpotifyClient) EnsureLiked(ctx context.Context, trackID string) error {
	endpoint := "/me/tracks?ids=" + url.QueryEscape(trackID)
	return s.api.do(ctx, http.MethodPut, endpoint, nil, nil)
}

// RemoveLiked removes tracks from the user's saved tracks, batching by the
// API's 50 id ceiling.
func (s *SpotifyClient) RemoveLiked(ctx context.Context, trackIDs []string) error {
	for start := 0; start < len(trackIDs); start += spotifyPageLimit {
		end := min(start+spotifyPageLimit, len(trackIDs))
		endpoint := "/me/tracks?ids=" + url.QueryEscape(strings.Join(trackIDs[start:end], ","))
		if err := s.api.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// EnsureAlbumSaved adds an album to the user's saved albums.
func (s *SpotifyClient) EnsureAlbumSaved(ctx context.Context, albumID string) error {
	endpoint := "/me/albums?ids=" + url.QueryEscape(albumID)
	return s.api.do(ctx, http.MethodPut, endpoint, nil, nil)
}

// EnsureArtistFollowed adds an artist to the user's followed artists.
func (s *SpotifyClient) EnsureArtistFollowed(ctx context.Context, artistID string) error {
	endpoint := "/me/following?type=artist&ids=" + url.QueryEscape(artistID)
	return s.api.do(ctx, http.MethodPut, endpoint, nil, nil)
}

// CreatePlaylist creates a new private playlist with the given title.
func (s *SpotifyClient) CreatePlaylist(ctx context.Context, title string) (Playlist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return Playlist{}, err
	}

	body := map[string]any{"name": title, "public": false}

	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", userID)
	if err := s.api.do(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return Playlist{}, err
	}

	return Playlist{ID: created.ID, Title: created.Name, Owned: true}, nil
}

// AddPlaylistTracks appends tracks to the end of a playlist, batching by the
// API's 100 uri ceiling.
func (s *SpotifyClient) AddPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	const batchSize = 100

	for start := 0; start < len(trackIDs); start += batchSize {
		end := min(start+batchSize, len(trackIDs))

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}

		endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
		if err := s.api.do(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil); err != nil {
			return err
		}
	}

	return nil
}

// LoadSpotifyToken reads a persisted OAuth2 token from disk.
func LoadSpotifyToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &token, nil
}

// SaveSpotifyToken persists an OAuth2 token to disk, readable only by the owner.
func SaveSpotifyToken(path string, token *oauth2.Token) error {
	data, err := shared.MarshalJSON(token, true)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// parseSpotifyTime parses the RFC3339 timestamps Spotify uses, returning the
// zero time for missing or malformed values.
func parseSpotifyTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// spotifyTrackDTO converts a wire track into the service-neutral DTO.
func spotifyTrackDTO(st SpotifyTrack, addedAt time.Time) Track {
	track := Track{
		ID:      st.ID,
		Title:   st.Name,
		Album:   st.Album.Name,
		AddedAt: addedAt,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	return track
}

// spotifyAlbumDTO converts a wire album into the service-neutral DTO.
func spotifyAlbumDTO(sa SpotifyAlbum) Album {
	album := Album{ID: sa.ID, Name: sa.Name}
	if len(sa.Artists) > 0 {
		album.Artist = sa.Artists[0].Name
	}
	return album
}
