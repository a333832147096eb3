// package models defines the data model for the music library sync engine
package models

import (
	"time"
)

// Service identifies one of the two streaming services being reconciled.
type Service string

const (
	ServiceSpotify Service = "spotify"
	ServiceYandex  Service = "yandex"
)

// Valid reports whether s is a known service name.
func (s Service) Valid() bool {
	return s == ServiceSpotify || s == ServiceYandex
}

// Other returns the opposite service.
func (s Service) Other() Service {
	if s == ServiceSpotify {
		return ServiceYandex
	}
	return ServiceSpotify
}

// EntityKind identifies the kind of entity a crosswalk link refers to.
type EntityKind string

const (
	KindTrack  EntityKind = "track"
	KindAlbum  EntityKind = "album"
	KindArtist EntityKind = "artist"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	return k == KindTrack || k == KindAlbum || k == KindArtist
}

// Track is a liked track as reported by one service.
type Track struct {
	ID            string    // local row id
	Service       Service   // owning service
	ServiceID     string    // service-native track id
	Title         string
	Artist        string
	Album         string
	NormalizedKey string
	AddedAt       time.Time // when the user liked the track, zero if unknown
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PlaylistTrack is one entry of a playlist snapshot.
type PlaylistTrack struct {
	Position      int
	ServiceID     string
	Title         string
	Artist        string
	Album         string
	NormalizedKey string
	AddedAt       time.Time
}

// Playlist is a playlist snapshot header for one service.
type Playlist struct {
	ID         string // local row id
	Service    Service
	PlaylistID string // service-native playlist id
	Title      string
	TrackCount int
	Owned      bool // false for followed playlists
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FavoriteAlbum is a saved album as reported by one service.
type FavoriteAlbum struct {
	Service       Service
	AlbumID       string
	Name          string
	Artist        string
	NormalizedKey string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FavoriteArtist is a followed artist as reported by one service.
type FavoriteArtist struct {
	Service       Service
	ArtistID      string
	Name          string
	NormalizedKey string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Link is one row of the crosswalk between the two services. The pair of
// native ids is the durable record that two entities are the same thing.
type Link struct {
	ID            string
	Kind          EntityKind
	SpotifyID     string
	YandexID      string
	NormalizedKey string
	CreatedAt     time.Time
}

// ServiceID returns the link's id on the given service.
func (l Link) ServiceID(s Service) string {
	if s == ServiceSpotify {
		return l.SpotifyID
	}
	return l.YandexID
}

// UndiscoveredTrack records a track that could not be found on the target
// service, so later passes skip searching for it again.
type UndiscoveredTrack struct {
	ID            string
	Service       Service // target service where the track was not found
	Title         string
	Artist        string
	Album         string
	NormalizedKey string
	SourceTrackID string // native id on the source service
	RecordedAt    time.Time
}
