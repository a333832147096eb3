// Yandex Music API implementation of [Client]
//
// Communicates with the public REST API used by the official clients. Every
// response arrives wrapped in a {"result": ...} envelope, and authentication
// is a static OAuth token in the Authorization header.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
	"golang.org/x/time/rate"
)

const defaultYandexBaseURL = "https://api.music.yandex.net"

// YandexArtist represents an artist in Yandex Music responses.
type YandexArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// YandexAlbum represents an album in Yandex Music responses.
type YandexAlbum struct {
	ID      int64          `json:"id"`
	Title   string         `json:"title"`
	Artists []YandexArtist `json:"artists"`
}

// YandexTrack represents a full track object in Yandex Music responses.
type YandexTrack struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Artists []YandexArtist `json:"artists"`
	Albums  []YandexAlbum  `json:"albums"`
}

// yandexLibraryRow is one entry of the liked tracks library: a bare id pair
// plus the like timestamp. Full track objects require a separate hydration
// request.
type yandexLibraryRow struct {
	ID        string `json:"id"`
	AlbumID   string `json:"albumId"`
	Timestamp string `json:"timestamp"`
}

// YandexPlaylist represents a playlist header in Yandex Music responses.
// Playlists are identified by their kind, unique per user.
type YandexPlaylist struct {
	Kind       int64               `json:"kind"`
	Title      string              `json:"title"`
	TrackCount int                 `json:"trackCount"`
	Revision   int64               `json:"revision"`
	Tracks     []yandexTrackInList `json:"tracks"`
}

type yandexTrackInList struct {
	ID      int64        `json:"id"`
	AlbumID int64        `json:"albumId"`
	Track   *YandexTrack `json:"track"`
}

// YandexClient implements [Client] for the Yandex Music API.
type YandexClient struct {
	api apiClient
	uid int64
}

// NewYandexClient creates a Yandex Music client authenticated by a static
// OAuth token.
func NewYandexClient(cfg shared.YandexConfig, token string) (*YandexClient, error) {
	if token == "" {
		return nil, fmt.Errorf("yandex OAuth token is required: %w", shared.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultYandexBaseURL
	}

	return &YandexClient{
		api: apiClient{
			service:    "yandex",
			baseURL:    baseURL,
			httpClient: http.DefaultClient,
			limiter:    rate.NewLimiter(rate.Limit(5), 1),
			retry:      YandexRetryPolicy(),
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "OAuth "+token)
			},
		},
	}, nil
}

// Name returns the service this client talks to.
func (y *YandexClient) Name() models.Service {
	return models.ServiceYandex
}

// accountUID returns the authenticated user's uid, fetching it once.
func (y *YandexClient) accountUID(ctx context.Context) (int64, error) {
	if y.uid != 0 {
		return y.uid, nil
	}

	var response struct {
		Result struct {
			Account struct {
				UID int64 `json:"uid"`
			} `json:"account"`
		} `json:"result"`
	}
	if err := y.api.do(ctx, http.MethodGet, "/account/status", nil, &response); err != nil {
		return 0, err
	}
	if response.Result.Account.UID == 0 {
		return 0, fmt.Errorf("yandex account status returned no uid: %w", shared.ErrNotAuthenticated)
	}

	y.uid = response.Result.Account.UID
	return y.uid, nil
}

// LikedTracks retrieves the user's liked tracks, newest first. The library
// endpoint returns bare id pairs, so kept rows are hydrated into full track
// objects in batches. A non-nil since drops rows liked at or before that
// instant before hydration.
func (y *YandexClient) LikedTracks(ctx context.Context, since *time.Time) ([]Track, error) {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return nil, err
	}

	var response struct {
		Result struct {
			Library struct {
				Tracks []yandexLibraryRow `json:"tracks"`
			} `json:"library"`
		} `json:"result"`
	}
	endpoint := fmt.Sprintf("/users/%d/likes/tracks", uid)
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var kept []yandexLibraryRow
	for _, row := range response.Result.Library.Tracks {
		if since != nil {
			likedAt := parseYandexTime(row.Timestamp)
			if !likedAt.After(*since) {
				continue
			}
		}
		kept = append(kept, row)
	}

	return y.hydrateLibraryRows(ctx, kept)
}

// hydrateLibraryRows fetches full track objects for library rows, batching by
// the API's id ceiling. Result order follows the input rows.
func (y *YandexClient) hydrateLibraryRows(ctx context.Context, rows []yandexLibraryRow) ([]Track, error) {
	const batchSize = 100

	var tracks []Track
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := rows[start:end]

		ids := make([]string, 0, len(batch))
		for _, row := range batch {
			ids = append(ids, yandexCompositeID(row.ID, row.AlbumID))
		}

		form := url.Values{"track-ids": {strings.Join(ids, ",")}}

		var response struct {
			Result []YandexTrack `json:"result"`
		}
		if err := y.api.do(ctx, http.MethodPost, "/tracks", form, &response); err != nil {
			return nil, err
		}

		for i, yt := range response.Result {
			track := yandexTrackDTO(yt)
			if i < len(batch) {
				track.AddedAt = parseYandexTime(batch[i].Timestamp)
			}
			tracks = append(tracks, track)
		}
	}

	return tracks, nil
}

// Playlists retrieves the user's playlists. Yandex playlist listings only
// ever contain the user's own playlists, so includeFollowed changes nothing.
func (y *YandexClient) Playlists(ctx context.Context, includeFollowed bool) ([]Playlist, error) {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return nil, err
	}

	var response struct {
		Result []YandexPlaylist `json:"result"`
	}
	endpoint := fmt.Sprintf("/users/%d/playlists/list", uid)
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var playlists []Playlist
	for _, yp := range response.Result {
		playlists = append(playlists, Playlist{
			ID:         strconv.FormatInt(yp.Kind, 10),
			Title:      yp.Title,
			TrackCount: yp.TrackCount,
			Owned:      true,
		})
	}

	return playlists, nil
}

// fetchPlaylist retrieves one playlist with its track rows.
func (y *YandexClient) fetchPlaylist(ctx context.Context, kind string) (*YandexPlaylist, error) {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return nil, err
	}

	var response struct {
		Result YandexPlaylist `json:"result"`
	}
	endpoint := fmt.Sprintf("/users/%d/playlists/%s", uid, url.PathEscape(kind))
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response.Result, nil
}

// PlaylistTracks retrieves a playlist's full ordered track listing. Rows that
// arrive without a nested track object are hydrated separately.
func (y *YandexClient) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	playlist, err := y.fetchPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	var (
		tracks    = make([]Track, 0, len(playlist.Tracks))
		bare      []yandexLibraryRow
		positions []int
	)

	for _, row := range playlist.Tracks {
		if row.Track != nil {
			tracks = append(tracks, yandexTrackDTO(*row.Track))
			continue
		}
		bare = append(bare, yandexLibraryRow{
			ID:      strconv.FormatInt(row.ID, 10),
			AlbumID: strconv.FormatInt(row.AlbumID, 10),
		})
		positions = append(positions, len(tracks))
		tracks = append(tracks, Track{})
	}

	if len(bare) > 0 {
		hydrated, err := y.hydrateLibraryRows(ctx, bare)
		if err != nil {
			return nil, err
		}
		for i, track := range hydrated {
			if i < len(positions) {
				tracks[positions[i]] = track
			}
		}
	}

	return tracks, nil
}

// FavoriteAlbums retrieves the user's liked albums.
func (y *YandexClient) FavoriteAlbums(ctx context.Context) ([]Album, error) {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return nil, err
	}

	var response struct {
		Result []struct {
			Album YandexAlbum `json:"album"`
		} `json:"result"`
	}
	endpoint := fmt.Sprintf("/users/%d/likes/albums?rich=true", uid)
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var albums []Album
	for _, item := range response.Result {
		albums = append(albums, yandexAlbumDTO(item.Album))
	}

	return albums, nil
}

// FavoriteArtists retrieves the user's liked artists.
func (y *YandexClient) FavoriteArtists(ctx context.Context) ([]Artist, error) {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return nil, err
	}

	var response struct {
		Result []struct {
			Artist YandexArtist `json:"artist"`
		} `json:"result"`
	}
	endpoint := fmt.Sprintf("/users/%d/likes/artists", uid)
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var artists []Artist
	for _, item := range response.Result {
		artists = append(artists, Artist{
			ID:   strconv.FormatInt(item.Artist.ID, 10),
			Name: item.Artist.Name,
		})
	}

	return artists, nil
}

// SearchTracks returns ranked track candidates for a free-text query.
func (y *YandexClient) SearchTracks(ctx context.Context, query string) ([]Track, error) {
	endpoint := fmt.Sprintf("/search?text=%s&type=track&page=0", url.QueryEscape(query))

	var response struct {
		Result struct {
			Tracks struct {
				Results []YandexTrack `json:"results"`
			} `json:"tracks"`
		} `json:"result"`
	}
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var tracks []Track
	for _, yt := range response.Result.Tracks.Results {
		tracks = append(tracks, yandexTrackDTO(yt))
	}
	return tracks, nil
}

// SearchAlbums returns ranked album candidates for a free-text query.
func (y *YandexClient) SearchAlbums(ctx context.Context, query string) ([]Album, error) {
	endpoint := fmt.Sprintf("/search?text=%s&type=album&page=0", url.QueryEscape(query))

	var response struct {
		Result struct {
			Albums struct {
				Results []YandexAlbum `json:"results"`
			} `json:"albums"`
		} `json:"result"`
	}
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var albums []Album
	for _, ya := range response.Result.Albums.Results {
		albums = append(albums, yandexAlbumDTO(ya))
	}
	return albums, nil
}

// SearchArtists returns ranked artist candidates for a free-text query.
func (y *YandexClient) SearchArtists(ctx context.Context, query string) ([]Artist, error) {
	endpoint := fmt.Sprintf("/search?text=%s&type=artist&page=0", url.QueryEscape(query))

	var response struct {
		Result struct {
			Artists struct {
				Results []YandexArtist `json:"results"`
			} `json:"artists"`
		} `json:"result"`
	}
	if err := y.api.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var artists []Artist
	for _, ya := range response.Result.Artists.Results {
		artists = append(artists, Artist{
			ID:   strconv.FormatInt(ya.ID, 10),
			Name: ya.Name,
		})
	}
	return artists, nil
}

// EnsureLiked adds a track to the user's liked tracks.
func (y *YandexClient) EnsureLiked(ctx context.Context, trackID string) error {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return err
	}

	form := url.Values{"track-ids": {trackID}}
	endpoint := fmt.Sprintf("/users/%d/likes/tracks/add-multiple", uid)
	return y.api.do(ctx, http.MethodPost, endpoint, form, nil)
}

// RemoveLiked removes tracks from the user's liked tracks.
func (y *YandexClient) RemoveLiked(ctx context.Context, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	uid, err := y.accountUID(ctx)
	if err != nil {
		return err
	}

	form := url.Values{"track-ids": {strings.Join(trackIDs, ",")}}
	endpoint := fmt.Sprintf("/users/%d/likes/tracks/remove", uid)
	return y.api.do(ctx, http.MethodPost, endpoint, form, nil)
}

// EnsureAlbumSaved adds an album to the user's liked albums.
func (y *YandexClient) EnsureAlbumSaved(ctx context.Context, albumID string) error {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return err
	}

	form := url.Values{"album-id": {albumID}}
	endpoint := fmt.Sprintf("/users/%d/likes/albums/add", uid)
	return y.api.do(ctx, http.MethodPost, endpoint, form, nil)
}

// EnsureArtistFollowed adds an artist to the user's liked artists.
func (y *YandexClient) EnsureArtistFollowed(ctx context.Context, artistID string) error {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return err
	}

	form := url.Values{"artist-id": {artistID}}
	endpoint := fmt.Sprintf("/users/%d/likes/artists/add", uid)
	return y.api.do(ctx, http.MethodPost, endpoint, form, nil)
}

// CreatePlaylist creates a new private playlist with the given title.
func (y *YandexClient) CreatePlaylist(ctx context.Context, title string) (Playlist, error) {
	uid, err := y.accountUID(ctx)
	if err != nil {
		return Playlist{}, err
	}

	form := url.Values{"title": {title}, "visibility": {"private"}}

	var response struct {
		Result YandexPlaylist `json:"result"`
	}
	endpoint := fmt.Sprintf("/users/%d/playlists/create", uid)
	if err := y.api.do(ctx, http.MethodPost, endpoint, form, &response); err != nil {
		return Playlist{}, err
	}

	return Playlist{
		ID:    strconv.FormatInt(response.Result.Kind, 10),
		Title: response.Result.Title,
		Owned: true,
	}, nil
}

// AddPlaylistTracks appends tracks to the end of a playlist via a single
// change-relative insert diff against the playlist's current revision.
func (y *YandexClient) AddPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	uid, err := y.accountUID(ctx)
	if err != nil {
		return err
	}

	playlist, err := y.fetchPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}

	type diffTrack struct {
		ID      string `json:"id"`
		AlbumID string `json:"albumId,omitempty"`
	}

	inserts := make([]diffTrack, 0, len(trackIDs))
	for _, id := range trackIDs {
		trackID, albumID := splitYandexCompositeID(id)
		inserts = append(inserts, diffTrack{ID: trackID, AlbumID: albumID})
	}

	diff, err := shared.MarshalJSON([]map[string]any{{
		"op":     "insert",
		"at":     playlist.TrackCount,
		"tracks": inserts,
	}}, false)
	if err != nil {
		return err
	}

	form := url.Values{
		"diff":     {string(diff)},
		"revision": {strconv.FormatInt(playlist.Revision, 10)},
	}
	endpoint := fmt.Sprintf("/users/%d/playlists/%s/change-relative", uid, url.PathEscape(playlistID))
	return y.api.do(ctx, http.MethodPost, endpoint, form, nil)
}

// parseYandexTime parses the ISO 8601 timestamps Yandex uses, returning the
// zero time for missing or malformed values.
func parseYandexTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// yandexCompositeID joins a track id with its album id. The API accepts the
// composite form wherever a track id is expected, and mutations require it to
// disambiguate rereleases.
func yandexCompositeID(trackID, albumID string) string {
	if albumID == "" {
		return trackID
	}
	return trackID + ":" + albumID
}

// splitYandexCompositeID splits a composite track id back into its parts.
func splitYandexCompositeID(id string) (trackID, albumID string) {
	if at := strings.IndexByte(id, ':'); at >= 0 {
		return id[:at], id[at+1:]
	}
	return id, ""
}

// yandexTrackDTO converts a wire track into the service-neutral DTO. The DTO
// id is the composite track:album form.
func yandexTrackDTO(yt YandexTrack) Track {
	track := Track{
		ID:    yt.ID,
		Title: yt.Title,
	}
	if len(yt.Artists) > 0 {
		track.Artist = yt.Artists[0].Name
	}
	if len(yt.Albums) > 0 {
		track.Album = yt.Albums[0].Title
		track.ID = yandexCompositeID(yt.ID, strconv.FormatInt(yt.Albums[0].ID, 10))
	}
	return track
}

// yandexAlbumDTO converts a wire album into the service-neutral DTO.
func yandexAlbumDTO(ya YandexAlbum) Album {
	album := Album{
		ID:   strconv.FormatInt(ya.ID, 10),
		Name: ya.Title,
	}
	if len(ya.Artists) > 0 {
		album.Artist = ya.Artists[0].Name
	}
	return album
}
