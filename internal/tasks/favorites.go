package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spondex/internal/matching"
	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/services"
)

// SyncFavoriteAlbums reconciles saved albums between the services: snapshot
// both sides, match by normalized name and artist, link every matched pair,
// then save each unmatched album on the services the favorite target allows.
func (s *Synchronizer) SyncFavoriteAlbums(ctx context.Context, opts Options) error {
	s.sendProgress(fetchingFavoritesUpdate(models.KindAlbum))
	yandexAlbums, err := s.yandex.FavoriteAlbums(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch yandex albums: %w", err)
	}
	spotifyAlbums, err := s.spotify.FavoriteAlbums(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch spotify albums: %w", err)
	}
	s.logger.Info("fetched favorite albums", "yandex", len(yandexAlbums), "spotify", len(spotifyAlbums))

	if err := s.storeFavoriteAlbums(models.ServiceYandex, yandexAlbums); err != nil {
		return err
	}
	if err := s.storeFavoriteAlbums(models.ServiceSpotify, spotifyAlbums); err != nil {
		return err
	}

	s.sendProgress(matchingUpdate(models.KindAlbum, len(yandexAlbums), len(spotifyAlbums)))
	albumKey := func(album services.Album) string { return matching.AlbumKey(album.Name, album.Artist) }
	diff := matching.Match(yandexAlbums, spotifyAlbums, albumKey, albumKey)
	s.logger.Info("matched favorite albums", "matched", len(diff.Matched), "yandex_only", len(diff.LeftOnly), "spotify_only", len(diff.RightOnly))

	for _, pair := range diff.Matched {
		if pair.Left.ID == "" || pair.Right.ID == "" {
			continue
		}
		if err := s.links.Link(models.KindAlbum, pair.Right.ID, pair.Left.ID, albumKey(pair.Left)); err != nil {
			return err
		}
	}

	if opts.FavoriteReadonly {
		s.logger.Info("favorite sync is readonly, not applying albums")
		return nil
	}

	if opts.FavoriteTarget.Includes(models.ServiceSpotify) {
		for i, album := range diff.LeftOnly {
			s.sendProgress(applyingFavoriteUpdate(i+1, len(diff.LeftOnly), album.Name, models.ServiceSpotify))
			added, ok := s.ensureAlbum(ctx, s.spotify, album)
			if !ok || album.ID == "" {
				continue
			}
			if err := s.links.Link(models.KindAlbum, added.ID, album.ID, albumKey(album)); err != nil {
				return err
			}
		}
	}
	if opts.FavoriteTarget.Includes(models.ServiceYandex) {
		for i, album := range diff.RightOnly {
			s.sendProgress(applyingFavoriteUpdate(i+1, len(diff.RightOnly), album.Name, models.ServiceYandex))
			added, ok := s.ensureAlbum(ctx, s.yandex, album)
			if !ok || album.ID == "" {
				continue
			}
			if err := s.links.Link(models.KindAlbum, album.ID, added.ID, albumKey(album)); err != nil {
				return err
			}
		}
	}

	return nil
}

// SyncFavoriteArtists reconciles followed artists between the services using
// the same snapshot, match, link, apply sequence as album sync, keyed by
// normalized artist name.
func (s *Synchronizer) SyncFavoriteArtists(ctx context.Context, opts Options) error {
	s.sendProgress(fetchingFavoritesUpdate(models.KindArtist))
	yandexArtists, err := s.yandex.FavoriteArtists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch yandex artists: %w", err)
	}
	spotifyArtists, err := s.spotify.FavoriteArtists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch spotify artists: %w", err)
	}
	s.logger.Info("fetched favorite artists", "yandex", len(yandexArtists), "spotify", len(spotifyArtists))

	if err := s.storeFavoriteArtists(models.ServiceYandex, yandexArtists); err != nil {
		return err
	}
	if err := s.storeFavoriteArtists(models.ServiceSpotify, spotifyArtists); err != nil {
		return err
	}

	s.sendProgress(matchingUpdate(models.KindArtist, len(yandexArtists), len(spotifyArtists)))
	artistKey := func(artist services.Artist) string { return matching.ArtistKey(artist.Name) }
	diff := matching.Match(yandexArtists, spotifyArtists, artistKey, artistKey)
	s.logger.Info("matched favorite artists", "matched", len(diff.Matched), "yandex_only", len(diff.LeftOnly), "spotify_only", len(diff.RightOnly))

	for _, pair := range diff.Matched {
		if pair.Left.ID == "" || pair.Right.ID == "" {
			continue
		}
		if err := s.links.Link(models.KindArtist, pair.Right.ID, pair.Left.ID, artistKey(pair.Left)); err != nil {
			return err
		}
	}

	if opts.FavoriteReadonly {
		s.logger.Info("favorite sync is readonly, not applying artists")
		return nil
	}

	if opts.FavoriteTarget.Includes(models.ServiceSpotify) {
		for i, artist := range diff.LeftOnly {
			s.sendProgress(applyingFavoriteUpdate(i+1, len(diff.LeftOnly), artist.Name, models.ServiceSpotify))
			added, ok := s.ensureArtist(ctx, s.spotify, artist)
			if !ok || artist.ID == "" {
				continue
			}
			if err := s.links.Link(models.KindArtist, added.ID, artist.ID, artistKey(artist)); err != nil {
				return err
			}
		}
	}
	if opts.FavoriteTarget.Includes(models.ServiceYandex) {
		for i, artist := range diff.RightOnly {
			s.sendProgress(applyingFavoriteUpdate(i+1, len(diff.RightOnly), artist.Name, models.ServiceYandex))
			added, ok := s.ensureArtist(ctx, s.yandex, artist)
			if !ok || artist.ID == "" {
				continue
			}
			if err := s.links.Link(models.KindArtist, artist.ID, added.ID, artistKey(artist)); err != nil {
				return err
			}
		}
	}

	return nil
}

// ensureAlbum searches client's catalog for album and saves the first
// candidate whose own normalized key equals the album's. Candidates that fail
// the exact key comparison are skipped, even when they are the top hit.
func (s *Synchronizer) ensureAlbum(ctx context.Context, client services.Client, album services.Album) (services.Album, bool) {
	want := matching.AlbumKey(album.Name, album.Artist)
	query := strings.TrimSpace(album.Name + " " + album.Artist)
	if want == "" || query == "" {
		s.logger.Warn("album has no searchable metadata", "service", client.Name(), "id", album.ID)
		return services.Album{}, false
	}

	candidates, err := client.SearchAlbums(ctx, query)
	if err != nil {
		s.logger.Error("album search failed", "service", client.Name(), "album", album.Name, "error", err)
		return services.Album{}, false
	}

	for _, candidate := range candidates {
		if matching.AlbumKey(candidate.Name, candidate.Artist) != want {
			continue
		}
		if err := client.EnsureAlbumSaved(ctx, candidate.ID); err != nil {
			s.logger.Error("failed to save album", "service", client.Name(), "album", album.Name, "error", err)
			return services.Album{}, false
		}
		s.logger.Info("saved album", "service", client.Name(), "album", album.Name, "artist", album.Artist)
		return candidate, true
	}

	s.logger.Warn("album not found", "service", client.Name(), "album", album.Name, "artist", album.Artist)
	return services.Album{}, false
}

// ensureArtist searches client's catalog for artist and follows the first
// candidate whose normalized name equals the artist's.
func (s *Synchronizer) ensureArtist(ctx context.Context, client services.Client, artist services.Artist) (services.Artist, bool) {
	want := matching.ArtistKey(artist.Name)
	if want == "" {
		s.logger.Warn("artist has no searchable metadata", "service", client.Name(), "id", artist.ID)
		return services.Artist{}, false
	}

	candidates, err := client.SearchArtists(ctx, artist.Name)
	if err != nil {
		s.logger.Error("artist search failed", "service", client.Name(), "artist", artist.Name, "error", err)
		return services.Artist{}, false
	}

	for _, candidate := range candidates {
		if matching.ArtistKey(candidate.Name) != want {
			continue
		}
		if err := client.EnsureArtistFollowed(ctx, candidate.ID); err != nil {
			s.logger.Error("failed to follow artist", "service", client.Name(), "artist", artist.Name, "error", err)
			return services.Artist{}, false
		}
		s.logger.Info("followed artist", "service", client.Name(), "artist", artist.Name)
		return candidate, true
	}

	s.logger.Warn("artist not found", "service", client.Name(), "artist", artist.Name)
	return services.Artist{}, false
}

// storeFavoriteAlbums replaces the saved album snapshot for one service.
// Albums without a native id cannot be snapshotted and are skipped.
func (s *Synchronizer) storeFavoriteAlbums(service models.Service, albums []services.Album) error {
	s.sendProgress(snapshotUpdate("album", service, len(albums)))

	keep := make([]string, 0, len(albums))
	for _, album := range albums {
		if album.ID == "" {
			continue
		}
		err := s.favorites.UpsertAlbum(&models.FavoriteAlbum{
			Service:       service,
			AlbumID:       album.ID,
			Name:          album.Name,
			Artist:        album.Artist,
			NormalizedKey: matching.AlbumKey(album.Name, album.Artist),
		})
		if err != nil {
			return err
		}
		keep = append(keep, album.ID)
	}

	_, err := s.favorites.RemoveAlbumsNotIn(service, keep)
	return err
}

// storeFavoriteArtists replaces the followed artist snapshot for one service.
func (s *Synchronizer) storeFavoriteArtists(service models.Service, artists []services.Artist) error {
	s.sendProgress(snapshotUpdate("artist", service, len(artists)))

	keep := make([]string, 0, len(artists))
	for _, artist := range artists {
		if artist.ID == "" {
			continue
		}
		err := s.favorites.UpsertArtist(&models.FavoriteArtist{
			Service:       service,
			ArtistID:      artist.ID,
			Name:          artist.Name,
			NormalizedKey: matching.ArtistKey(artist.Name),
		})
		if err != nil {
			return err
		}
		keep = append(keep, artist.ID)
	}

	_, err := s.favorites.RemoveArtistsNotIn(service, keep)
	return err
}
