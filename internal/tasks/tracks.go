package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spondex/internal/matching"
	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/services"
)

// SyncTracks reconciles liked tracks in every direction the track target
// allows. Each direction fetches the source's likes since that service's
// cursor, snapshots them, pushes unlinked tracks to the other service, and
// advances the source cursor once the batch completes.
func (s *Synchronizer) SyncTracks(ctx context.Context, opts Options) error {
	if opts.TrackTarget.Includes(models.ServiceSpotify) {
		if err := s.syncTrackDirection(ctx, s.yandex, s.spotify, opts); err != nil {
			return err
		}
	} else {
		s.logger.Info("skipping yandex to spotify track sync", "target", opts.TrackTarget)
	}

	if opts.TrackTarget.Includes(models.ServiceYandex) {
		if err := s.syncTrackDirection(ctx, s.spotify, s.yandex, opts); err != nil {
			return err
		}
	} else {
		s.logger.Info("skipping spotify to yandex track sync", "target", opts.TrackTarget)
	}

	return nil
}

// syncTrackDirection pushes source's liked tracks to target. The sequence is
// fetch, snapshot, apply, cursor advance; a fetch or persistence failure
// aborts the direction with the cursor unchanged, while per-track application
// failures only skip that track.
func (s *Synchronizer) syncTrackDirection(ctx context.Context, source, target services.Client, opts Options) error {
	passStart := time.Now().UTC()

	var since *time.Time
	if !opts.ForceFullSync {
		last, ok, err := s.history.LastSync(source.Name())
		if err != nil {
			return err
		}
		if ok {
			since = &last
		}
	}

	s.sendProgress(fetchingTracksUpdate(source.Name()))
	fetched, err := source.LikedTracks(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch %s likes: %w", source.Name(), err)
	}
	s.logger.Info("fetched liked tracks", "service", source.Name(), "count", len(fetched), "full", since == nil)

	s.sendProgress(snapshotUpdate("track", source.Name(), len(fetched)))
	for _, track := range fetched {
		if err := s.tracks.Upsert(trackSnapshot(source.Name(), track)); err != nil {
			return err
		}
	}
	if since == nil {
		keep := make([]string, len(fetched))
		for i, track := range fetched {
			keep[i] = track.ID
		}
		pruned, err := s.tracks.RemoveNotIn(source.Name(), keep)
		if err != nil {
			return err
		}
		if pruned > 0 {
			s.logger.Info("pruned stale track snapshots", "service", source.Name(), "count", pruned)
		}
	}

	added := 0
	for i, track := range fetched {
		s.sendProgress(applyingTrackUpdate(i+1, len(fetched), track, target.Name()))

		counterpart, linked, err := s.links.Lookup(models.KindTrack, source.Name(), track.ID)
		if err != nil {
			return err
		}
		if linked && !opts.ForceFullSync {
			continue
		}
		if linked {
			if err := target.EnsureLiked(ctx, counterpart); err != nil {
				s.logger.Error("failed to re-like linked track", "service", target.Name(), "artist", track.Artist, "title", track.Title, "error", err)
			}
			continue
		}

		key := trackSearchKey(track)
		if key != "" && !opts.ForceFullSync {
			missing, err := s.undiscovered.Has(target.Name(), key)
			if err != nil {
				return err
			}
			if missing {
				continue
			}
		}

		match, found, err := findTrack(ctx, target, track)
		if err != nil {
			s.logger.Error("track search failed", "service", target.Name(), "artist", track.Artist, "title", track.Title, "error", err)
			continue
		}
		if !found {
			if err := s.recordUndiscovered(target.Name(), track); err != nil {
				return err
			}
			continue
		}

		if err := target.EnsureLiked(ctx, match.ID); err != nil {
			s.logger.Error("failed to like track", "service", target.Name(), "artist", track.Artist, "title", track.Title, "error", err)
			continue
		}
		spotifyID, yandexID := orientIDs(source.Name(), track.ID, match.ID)
		if err := s.links.Link(models.KindTrack, spotifyID, yandexID, matching.TrackKey(track.Title)); err != nil {
			return err
		}
		added++
		s.logger.Info("added track", "service", target.Name(), "artist", track.Artist, "title", track.Title)
	}

	s.sendProgress(cursorUpdate(source.Name()))
	if err := s.history.SetLastSync(source.Name(), passStart); err != nil {
		return err
	}
	s.logger.Info("track sync finished", "source", source.Name(), "target", target.Name(), "fetched", len(fetched), "added", added)

	return nil
}

// RemoveDuplicates drops repeated likes on both services, keeping the first
// occurrence of each title and artist pair in like order.
func (s *Synchronizer) RemoveDuplicates(ctx context.Context) error {
	for _, client := range []services.Client{s.spotify, s.yandex} {
		tracks, err := client.LikedTracks(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch %s likes: %w", client.Name(), err)
		}

		type likeKey struct{ title, artist string }
		seen := make(map[likeKey]bool, len(tracks))
		var duplicates []string
		for _, track := range tracks {
			key := likeKey{strings.ToLower(track.Title), strings.ToLower(track.Artist)}
			if seen[key] {
				duplicates = append(duplicates, track.ID)
				continue
			}
			seen[key] = true
		}

		if len(duplicates) == 0 {
			s.logger.Info("no duplicate likes found", "service", client.Name())
			continue
		}
		if err := client.RemoveLiked(ctx, duplicates); err != nil {
			return fmt.Errorf("failed to remove %s duplicates: %w", client.Name(), err)
		}
		s.logger.Info("removed duplicate likes", "service", client.Name(), "count", len(duplicates))
	}

	return nil
}

// findTrack searches the target service for a counterpart of track. Only a
// candidate whose normalized title and artist both equal the source track's
// is accepted; search results that merely resemble the query are rejected.
func findTrack(ctx context.Context, client services.Client, track services.Track) (services.Track, bool, error) {
	query := strings.TrimSpace(track.Artist + " " + track.Title)
	want := trackSearchKey(track)
	if query == "" || want == "" {
		return services.Track{}, false, nil
	}

	candidates, err := client.SearchTracks(ctx, query)
	if err != nil {
		return services.Track{}, false, err
	}

	for _, candidate := range candidates {
		if trackSearchKey(candidate) == want {
			return candidate, true, nil
		}
	}

	return services.Track{}, false, nil
}

// trackSearchKey identifies a track for search comparison and undiscovered
// bookkeeping. Unlike the bare title key it includes the artist, so
// same-titled tracks by different artists never stand in for each other.
// A track with no usable title or artist has no key at all.
func trackSearchKey(track services.Track) string {
	title := matching.TrackKey(track.Title)
	artist := matching.ArtistKey(track.Artist)
	if title == "" && artist == "" {
		return ""
	}
	return title + matching.Separator + artist
}

// recordUndiscovered marks a track as absent from the target's catalog so
// later passes skip searching for it again.
func (s *Synchronizer) recordUndiscovered(target models.Service, track services.Track) error {
	key := trackSearchKey(track)
	if key == "" {
		s.logger.Warn("track has no searchable metadata", "service", target, "id", track.ID)
		return nil
	}

	s.logger.Warn("track not found", "service", target, "artist", track.Artist, "title", track.Title)
	return s.undiscovered.Add(&models.UndiscoveredTrack{
		Service:       target,
		Title:         track.Title,
		Artist:        track.Artist,
		Album:         track.Album,
		NormalizedKey: key,
		SourceTrackID: track.ID,
	})
}

// trackSnapshot converts a fetched track into its snapshot row for service.
func trackSnapshot(service models.Service, track services.Track) *models.Track {
	return &models.Track{
		Service:       service,
		ServiceID:     track.ID,
		Title:         track.Title,
		Artist:        track.Artist,
		Album:         track.Album,
		NormalizedKey: matching.TrackKey(track.Title),
		AddedAt:       track.AddedAt,
	}
}

// orientIDs maps a (source, target) id pair onto the link store's fixed
// (spotify, yandex) column order.
func orientIDs(source models.Service, sourceID, targetID string) (spotifyID, yandexID string) {
	if source == models.ServiceSpotify {
		return sourceID, targetID
	}
	return targetID, sourceID
}
