package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/spondex/internal/matching"
	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/services"
)

// playlistSnapshot pairs a playlist header with its full track listing.
type playlistSnapshot struct {
	services.Playlist
	Tracks []services.Track
}

// SyncPlaylists mirrors owned Spotify playlists onto Yandex Music and then
// snapshots both services' playlists. Yandex playlists are re-fetched after
// mirroring so the stored snapshot reflects the additions made this pass.
func (s *Synchronizer) SyncPlaylists(ctx context.Context, opts Options) error {
	s.sendProgress(fetchingPlaylistsUpdate(models.ServiceYandex))
	yandexLists, err := s.fetchPlaylists(ctx, s.yandex, true)
	if err != nil {
		return err
	}

	s.sendProgress(fetchingPlaylistsUpdate(models.ServiceSpotify))
	spotifyLists, err := s.fetchPlaylists(ctx, s.spotify, opts.IncludeFollowedPlaylists)
	if err != nil {
		return err
	}
	s.logger.Info("fetched playlists", "yandex", len(yandexLists), "spotify", len(spotifyLists))

	if err := s.mirrorPlaylists(ctx, spotifyLists, yandexLists, opts); err != nil {
		return err
	}

	updated, err := s.fetchPlaylists(ctx, s.yandex, true)
	if err != nil {
		return err
	}
	if err := s.recordPlaylists(models.ServiceYandex, updated); err != nil {
		return err
	}
	return s.recordPlaylists(models.ServiceSpotify, spotifyLists)
}

// fetchPlaylists pulls every playlist header from a service along with its
// full ordered track listing.
func (s *Synchronizer) fetchPlaylists(ctx context.Context, client services.Client, includeFollowed bool) ([]playlistSnapshot, error) {
	headers, err := client.Playlists(ctx, includeFollowed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s playlists: %w", client.Name(), err)
	}

	snapshots := make([]playlistSnapshot, 0, len(headers))
	for _, header := range headers {
		tracks, err := client.PlaylistTracks(ctx, header.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s playlist %q: %w", client.Name(), header.Title, err)
		}
		snapshots = append(snapshots, playlistSnapshot{Playlist: header, Tracks: tracks})
	}

	return snapshots, nil
}

// mirrorPlaylists ensures every owned Spotify playlist has a Yandex playlist
// with the same title carrying the resolvable subset of its tracks. Playlists
// pair up by normalized title; a title that normalizes to nothing is never
// mirrored. Failures are isolated per playlist, resolution failures per track.
func (s *Synchronizer) mirrorPlaylists(ctx context.Context, spotifyLists, yandexLists []playlistSnapshot, opts Options) error {
	existing := make(map[string]playlistSnapshot, len(yandexLists))
	for _, list := range yandexLists {
		key := matching.Normalize(list.Title)
		if key == "" {
			continue
		}
		if _, taken := existing[key]; !taken {
			existing[key] = list
		}
	}

	for i, list := range spotifyLists {
		if !list.Owned || list.Title == "" {
			continue
		}
		key := matching.Normalize(list.Title)
		if key == "" {
			continue
		}

		s.sendProgress(mirroringPlaylistUpdate(i+1, len(spotifyLists), list.Title))

		mirror, ok := existing[key]
		if !ok {
			created, err := s.yandex.CreatePlaylist(ctx, list.Title)
			if err != nil {
				s.logger.Error("failed to create playlist", "title", list.Title, "error", err)
				continue
			}
			s.logger.Info("created playlist", "service", models.ServiceYandex, "title", list.Title)
			mirror = playlistSnapshot{Playlist: created}
			existing[key] = mirror
		}

		present := make(map[string]bool, len(mirror.Tracks))
		for _, track := range mirror.Tracks {
			present[track.ID] = true
		}

		var additions []string
		for _, track := range list.Tracks {
			resolved, ok, err := s.resolveYandexTrack(ctx, track, opts)
			if err != nil {
				return err
			}
			if !ok || present[resolved] {
				continue
			}
			present[resolved] = true
			additions = append(additions, resolved)
		}

		if len(additions) == 0 {
			continue
		}
		if err := s.yandex.AddPlaylistTracks(ctx, mirror.ID, additions); err != nil {
			s.logger.Error("failed to add playlist tracks", "title", list.Title, "count", len(additions), "error", err)
			continue
		}
		s.logger.Info("mirrored playlist tracks", "title", list.Title, "count", len(additions))
	}

	return nil
}

// resolveYandexTrack finds the Yandex id for a Spotify track, preferring the
// link store over catalog search. A newly searched track is liked on Yandex
// before use, so playlist insertion always references a library track, and
// linked so later passes resolve it without searching. Returns ok=false when
// the track cannot be resolved.
func (s *Synchronizer) resolveYandexTrack(ctx context.Context, track services.Track, opts Options) (string, bool, error) {
	if track.ID == "" {
		return "", false, nil
	}

	counterpart, linked, err := s.links.Lookup(models.KindTrack, models.ServiceSpotify, track.ID)
	if err != nil {
		return "", false, err
	}
	if linked {
		return counterpart, true, nil
	}

	key := trackSearchKey(track)
	if key == "" {
		return "", false, nil
	}
	if !opts.ForceFullSync {
		missing, err := s.undiscovered.Has(models.ServiceYandex, key)
		if err != nil {
			return "", false, err
		}
		if missing {
			return "", false, nil
		}
	}

	found, ok, err := findTrack(ctx, s.yandex, track)
	if err != nil {
		s.logger.Error("track search failed", "service", models.ServiceYandex, "artist", track.Artist, "title", track.Title, "error", err)
		return "", false, nil
	}
	if !ok {
		if err := s.recordUndiscovered(models.ServiceYandex, track); err != nil {
			return "", false, err
		}
		return "", false, nil
	}

	if err := s.yandex.EnsureLiked(ctx, found.ID); err != nil {
		s.logger.Warn("failed to like resolved track", "artist", track.Artist, "title", track.Title, "error", err)
	}
	if err := s.links.Link(models.KindTrack, track.ID, found.ID, matching.TrackKey(track.Title)); err != nil {
		return "", false, err
	}

	return found.ID, true, nil
}

// recordPlaylists replaces the stored playlist snapshot for one service.
func (s *Synchronizer) recordPlaylists(service models.Service, lists []playlistSnapshot) error {
	s.sendProgress(snapshotUpdate("playlist", service, len(lists)))

	keep := make([]string, 0, len(lists))
	for _, list := range lists {
		rowID, err := s.playlists.Upsert(&models.Playlist{
			Service:    service,
			PlaylistID: list.ID,
			Title:      list.Title,
			TrackCount: len(list.Tracks),
			Owned:      list.Owned,
		})
		if err != nil {
			return err
		}

		rows := make([]models.PlaylistTrack, len(list.Tracks))
		for i, track := range list.Tracks {
			rows[i] = models.PlaylistTrack{
				Position:      i,
				ServiceID:     track.ID,
				Title:         track.Title,
				Artist:        track.Artist,
				Album:         track.Album,
				NormalizedKey: matching.TrackKey(track.Title),
				AddedAt:       track.AddedAt,
			}
		}
		if err := s.playlists.SetTracks(rowID, rows); err != nil {
			return err
		}
		keep = append(keep, list.ID)
	}

	pruned, err := s.playlists.RemoveNotIn(service, keep)
	if err != nil {
		return err
	}
	if pruned > 0 {
		s.logger.Info("pruned stale playlists", "service", service, "count", pruned)
	}

	return nil
}
