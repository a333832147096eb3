// package services defines interface Client for interacting with music service APIs
//
// Spotify, Yandex Music
package services

import (
	"context"
	"time"

	"github.com/desertthunder/spondex/internal/models"
)

// Client is the capability set the sync orchestrator consumes from each music
// service. Implementations translate their service's response shapes into the
// fixed DTOs below; nothing downstream ever sees a raw API payload.
//
// All calls block, honor ctx cancellation, and retry transient failures
// internally per the client's RetryPolicy before returning an error.
type Client interface {
	// Name returns the service this client talks to.
	Name() models.Service

	// LikedTracks retrieves the user's liked tracks, newest first. A non-nil
	// since bounds the fetch to tracks liked after that instant.
	LikedTracks(ctx context.Context, since *time.Time) ([]Track, error)

	// Playlists retrieves the user's playlists. Followed playlists owned by
	// other users are included only when includeFollowed is set.
	Playlists(ctx context.Context, includeFollowed bool) ([]Playlist, error)

	// PlaylistTracks retrieves a playlist's full ordered track listing.
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)

	// FavoriteAlbums retrieves the user's saved albums.
	FavoriteAlbums(ctx context.Context) ([]Album, error)

	// FavoriteArtists retrieves the user's followed artists.
	FavoriteArtists(ctx context.Context) ([]Artist, error)

	// SearchTracks returns ranked track candidates for a free-text query.
	SearchTracks(ctx context.Context, query string) ([]Track, error)

	// SearchAlbums returns ranked album candidates for a free-text query.
	SearchAlbums(ctx context.Context, query string) ([]Album, error)

	// SearchArtists returns ranked artist candidates for a free-text query.
	SearchArtists(ctx context.Context, query string) ([]Artist, error)

	// EnsureLiked adds a track to the user's liked tracks. Liking an already
	// liked track is a no-op.
	EnsureLiked(ctx context.Context, trackID string) error

	// RemoveLiked removes tracks from the user's liked tracks.
	RemoveLiked(ctx context.Context, trackIDs []string) error

	// EnsureAlbumSaved adds an album to the user's saved albums.
	EnsureAlbumSaved(ctx context.Context, albumID string) error

	// EnsureArtistFollowed adds an artist to the user's followed artists.
	EnsureArtistFollowed(ctx context.Context, artistID string) error

	// CreatePlaylist creates a new private playlist with the given title.
	CreatePlaylist(ctx context.Context, title string) (Playlist, error)

	// AddPlaylistTracks appends tracks to the end of a playlist.
	AddPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// Track represents a music track from any service
type Track struct {
	ID      string
	Title   string
	Artist  string
	Album   string
	AddedAt time.Time // when the user liked the track, zero if unknown
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID         string
	Title      string
	TrackCount int
	Owned      bool
}

// Album represents an album from any service
type Album struct {
	ID     string
	Name   string
	Artist string
}

// Artist represents an artist from any service
type Artist struct {
	ID   string
	Name string
}
