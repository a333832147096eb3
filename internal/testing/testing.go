// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/services"
)

// MockClient is a canned-data test double for [services.Client]. Zero value
// behaves as an empty, healthy service named spotify; populate the fields to
// shape responses, set Err to fail every call.
type MockClient struct {
	Service models.Service
	Err     error

	Tracks    []services.Track
	Lists     []services.Playlist
	ListItems map[string][]services.Track
	Albums    []services.Album
	Artists   []services.Artist

	TrackResults  map[string][]services.Track
	AlbumResults  map[string][]services.Album
	ArtistResults map[string][]services.Artist

	Liked       []string
	Removed     [][]string
	SavedAlbums []string
	Followed    []string
	Created     []services.Playlist
	AppendedTo  map[string][]string
}

var _ services.Client = (*MockClient)(nil)

func (m *MockClient) Name() models.Service {
	if m.Service == "" {
		return models.ServiceSpotify
	}
	return m.Service
}

func (m *MockClient) LikedTracks(ctx context.Context, since *time.Time) ([]services.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if since == nil {
		return m.Tracks, nil
	}
	var recent []services.Track
	for _, track := range m.Tracks {
		if track.AddedAt.After(*since) {
			recent = append(recent, track)
		}
	}
	return recent, nil
}

func (m *MockClient) Playlists(ctx context.Context, includeFollowed bool) ([]services.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if includeFollowed {
		return m.Lists, nil
	}
	var owned []services.Playlist
	for _, pl := range m.Lists {
		if pl.Owned {
			owned = append(owned, pl)
		}
	}
	return owned, nil
}

func (m *MockClient) PlaylistTracks(ctx context.Context, playlistID string) ([]services.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ListItems[playlistID], nil
}

func (m *MockClient) FavoriteAlbums(ctx context.Context) ([]services.Album, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Albums, nil
}

func (m *MockClient) FavoriteArtists(ctx context.Context) ([]services.Artist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Artists, nil
}

func (m *MockClient) SearchTracks(ctx context.Context, query string) ([]services.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.TrackResults[query], nil
}

func (m *MockClient) SearchAlbums(ctx context.Context, query string) ([]services.Album, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.AlbumResults[query], nil
}

func (m *MockClient) SearchArtists(ctx context.Context, query string) ([]services.Artist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ArtistResults[query], nil
}

func (m *MockClient) EnsureLiked(ctx context.Context, trackID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Liked = append(m.Liked, trackID)
	return nil
}

func (m *MockClient) RemoveLiked(ctx context.Context, trackIDs []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Removed = append(m.Removed, trackIDs)
	return nil
}

func (m *MockClient) EnsureAlbumSaved(ctx context.Context, albumID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SavedAlbums = append(m.SavedAlbums, albumID)
	return nil
}

func (m *MockClient) EnsureArtistFollowed(ctx context.Context, artistID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Followed = append(m.Followed, artistID)
	return nil
}

func (m *MockClient) CreatePlaylist(ctx context.Context, title string) (services.Playlist, error) {
	if m.Err != nil {
		return services.Playlist{}, m.Err
	}
	pl := services.Playlist{ID: "mock-" + title, Title: title, Owned: true}
	m.Created = append(m.Created, pl)
	return pl, nil
}

func (m *MockClient) AddPlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.AppendedTo == nil {
		m.AppendedTo = map[string][]string{}
	}
	m.AppendedTo[playlistID] = append(m.AppendedTo[playlistID], trackIDs...)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
