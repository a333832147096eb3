package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestLinkRepository(t *testing.T) {
	t.Run("Link And Lookup", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		if err := repo.Link(models.KindTrack, "sp1", "ya1", "some track"); err != nil {
			t.Fatalf("failed to link: %v", err)
		}

		counterpart, ok, err := repo.Lookup(models.KindTrack, models.ServiceSpotify, "sp1")
		if err != nil {
			t.Fatalf("failed to look up: %v", err)
		}
		if !ok || counterpart != "ya1" {
			t.Errorf("expected ya1, got %q (ok=%v)", counterpart, ok)
		}

		counterpart, ok, err = repo.Lookup(models.KindTrack, models.ServiceYandex, "ya1")
		if err != nil {
			t.Fatalf("failed to look up: %v", err)
		}
		if !ok || counterpart != "sp1" {
			t.Errorf("expected sp1, got %q (ok=%v)", counterpart, ok)
		}
	})

	t.Run("Lookup Absent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		_, ok, err := repo.Lookup(models.KindTrack, models.ServiceSpotify, "missing")
		if err != nil {
			t.Fatalf("absent lookup should not error: %v", err)
		}
		if ok {
			t.Error("expected absent lookup to report ok=false")
		}
	})

	t.Run("Relink Supersedes Both Sides", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		if err := repo.Link(models.KindAlbum, "sp1", "ya1", "first"); err != nil {
			t.Fatalf("failed to link: %v", err)
		}
		if err := repo.Link(models.KindAlbum, "sp1", "ya2", "second"); err != nil {
			t.Fatalf("failed to relink: %v", err)
		}

		counterpart, ok, err := repo.Lookup(models.KindAlbum, models.ServiceSpotify, "sp1")
		if err != nil {
			t.Fatalf("failed to look up: %v", err)
		}
		if !ok || counterpart != "ya2" {
			t.Errorf("expected sp1 to now pair with ya2, got %q (ok=%v)", counterpart, ok)
		}

		if _, ok, _ := repo.Lookup(models.KindAlbum, models.ServiceYandex, "ya1"); ok {
			t.Error("old counterpart ya1 should no longer be linked")
		}

		count, err := repo.Count(models.KindAlbum)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly 1 link after supersede, got %d", count)
		}
	})

	t.Run("Link Is Idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		for i := 0; i < 3; i++ {
			if err := repo.Link(models.KindArtist, "sp1", "ya1", "an artist"); err != nil {
				t.Fatalf("failed to link on attempt %d: %v", i, err)
			}
		}

		count, err := repo.Count(models.KindArtist)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 link after repeated identical links, got %d", count)
		}
	})

	t.Run("Kinds Are Isolated", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		if err := repo.Link(models.KindTrack, "sp1", "ya1", "shared id"); err != nil {
			t.Fatalf("failed to link track: %v", err)
		}
		if err := repo.Link(models.KindAlbum, "sp1", "ya9", "shared id"); err != nil {
			t.Fatalf("failed to link album: %v", err)
		}

		counterpart, ok, _ := repo.Lookup(models.KindTrack, models.ServiceSpotify, "sp1")
		if !ok || counterpart != "ya1" {
			t.Errorf("track link should be untouched by album link, got %q", counterpart)
		}
	})

	t.Run("FindByKey", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		if err := repo.Link(models.KindAlbum, "sp1", "ya1", "the wall::pink floyd"); err != nil {
			t.Fatalf("failed to link: %v", err)
		}

		link, ok, err := repo.FindByKey(models.KindAlbum, "the wall::pink floyd")
		if err != nil {
			t.Fatalf("failed to find by key: %v", err)
		}
		if !ok {
			t.Fatal("expected link to be found by key")
		}
		if link.SpotifyID != "sp1" || link.YandexID != "ya1" {
			t.Errorf("wrong link found: %+v", link)
		}

		if _, ok, err := repo.FindByKey(models.KindAlbum, "no such key"); err != nil || ok {
			t.Errorf("missing key should report absent without error, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("Unlink", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		if err := repo.Link(models.KindTrack, "sp1", "ya1", "a track"); err != nil {
			t.Fatalf("failed to link: %v", err)
		}

		if err := repo.Unlink(models.KindTrack, models.ServiceYandex, "ya1"); err != nil {
			t.Fatalf("failed to unlink: %v", err)
		}

		if _, ok, _ := repo.Lookup(models.KindTrack, models.ServiceSpotify, "sp1"); ok {
			t.Error("link should be gone after unlink from either side")
		}

		if err := repo.Unlink(models.KindTrack, models.ServiceYandex, "ya1"); err != nil {
			t.Errorf("unlinking a missing link should not error: %v", err)
		}
	})

	t.Run("Rejects Unknown Kind", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLinkRepository(db)

		if err := repo.Link(models.EntityKind("video"), "sp1", "ya1", ""); err == nil {
			t.Error("expected error for unknown entity kind")
		}
	})
}

func TestTrackRepository(t *testing.T) {
	newTrack := func(service models.Service, serviceID, title, artist string) *models.Track {
		return &models.Track{
			Service:       service,
			ServiceID:     serviceID,
			Title:         title,
			Artist:        artist,
			NormalizedKey: title,
		}
	}

	t.Run("Upsert Is Idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := newTrack(models.ServiceSpotify, "t1", "Time", "Pink Floyd")

		for i := 0; i < 2; i++ {
			if err := repo.Upsert(track); err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}
		}

		count, err := repo.CountByService(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 row after repeated upsert, got %d", count)
		}
	})

	t.Run("Upsert Refreshes Metadata", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		if err := repo.Upsert(newTrack(models.ServiceSpotify, "t1", "Tim", "Pink Floyd")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Upsert(newTrack(models.ServiceSpotify, "t1", "Time", "Pink Floyd")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		tracks, err := repo.ListByService(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(tracks) != 1 || tracks[0].Title != "Time" {
			t.Errorf("expected corrected title, got %+v", tracks)
		}
	})

	t.Run("Snapshot Round Trip", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		titles := []string{"Breathe", "Time", "Money"}

		for _, title := range titles {
			if err := repo.Upsert(newTrack(models.ServiceYandex, "y-"+title, title, "Pink Floyd")); err != nil {
				t.Fatalf("failed to upsert %s: %v", title, err)
			}
		}

		tracks, err := repo.ListByService(models.ServiceYandex)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(tracks) != len(titles) {
			t.Fatalf("expected %d tracks, got %d", len(titles), len(tracks))
		}

		other, err := repo.ListByService(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("failed to list other service: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("spotify snapshot should be empty, got %d rows", len(other))
		}
	})

	t.Run("RemoveNotIn", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		for _, id := range []string{"t1", "t2", "t3"} {
			if err := repo.Upsert(newTrack(models.ServiceSpotify, id, "Track "+id, "Artist")); err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}
		}

		pruned, err := repo.RemoveNotIn(models.ServiceSpotify, []string{"t1", "t3"})
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if pruned != 1 {
			t.Errorf("expected 1 pruned row, got %d", pruned)
		}

		exists, err := repo.ExistsByServiceID(models.ServiceSpotify, "t2")
		if err != nil {
			t.Fatalf("failed to check existence: %v", err)
		}
		if exists {
			t.Error("t2 should have been pruned")
		}
	})

	t.Run("RemoveNotIn Empty Keep Clears Service", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)

		if err := repo.Upsert(newTrack(models.ServiceSpotify, "t1", "Track", "Artist")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Upsert(newTrack(models.ServiceYandex, "y1", "Track", "Artist")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		if _, err := repo.RemoveNotIn(models.ServiceSpotify, nil); err != nil {
			t.Fatalf("failed to prune: %v", err)
		}

		spotifyCount, _ := repo.CountByService(models.ServiceSpotify)
		yandexCount, _ := repo.CountByService(models.ServiceYandex)
		if spotifyCount != 0 {
			t.Errorf("expected empty spotify snapshot, got %d", spotifyCount)
		}
		if yandexCount != 1 {
			t.Errorf("yandex snapshot should be untouched, got %d", yandexCount)
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("Upsert Returns Stable Row ID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := &models.Playlist{Service: models.ServiceSpotify, PlaylistID: "p1", Title: "Road Trip", TrackCount: 3, Owned: true}

		first, err := repo.Upsert(playlist)
		if err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		playlist.Title = "Road Trip 2024"
		second, err := repo.Upsert(playlist)
		if err != nil {
			t.Fatalf("failed to upsert again: %v", err)
		}

		if first != second {
			t.Errorf("row id should be stable across upserts: %s vs %s", first, second)
		}

		playlists, err := repo.ListByService(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(playlists) != 1 || playlists[0].Title != "Road Trip 2024" {
			t.Errorf("expected single refreshed playlist, got %+v", playlists)
		}
	})

	t.Run("SetTracks Replaces Listing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		rowID, err := repo.Upsert(&models.Playlist{Service: models.ServiceYandex, PlaylistID: "p1", Title: "Mix", Owned: true})
		if err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		first := []models.PlaylistTrack{
			{Position: 0, ServiceID: "a", Title: "One", Artist: "X", NormalizedKey: "one"},
			{Position: 1, ServiceID: "b", Title: "Two", Artist: "X", NormalizedKey: "two"},
		}
		if err := repo.SetTracks(rowID, first); err != nil {
			t.Fatalf("failed to set tracks: %v", err)
		}

		second := []models.PlaylistTrack{
			{Position: 0, ServiceID: "c", Title: "Three", Artist: "X", NormalizedKey: "three"},
		}
		if err := repo.SetTracks(rowID, second); err != nil {
			t.Fatalf("failed to replace tracks: %v", err)
		}

		tracks, err := repo.Tracks(rowID)
		if err != nil {
			t.Fatalf("failed to read tracks: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ServiceID != "c" {
			t.Errorf("listing should be replaced wholesale, got %+v", tracks)
		}
	})

	t.Run("Tracks Preserve Position Order", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		rowID, err := repo.Upsert(&models.Playlist{Service: models.ServiceSpotify, PlaylistID: "p1", Title: "Ordered", Owned: true})
		if err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		listing := []models.PlaylistTrack{
			{Position: 2, ServiceID: "c", Title: "Third", Artist: "X", NormalizedKey: "third"},
			{Position: 0, ServiceID: "a", Title: "First", Artist: "X", NormalizedKey: "first"},
			{Position: 1, ServiceID: "b", Title: "Second", Artist: "X", NormalizedKey: "second"},
		}
		if err := repo.SetTracks(rowID, listing); err != nil {
			t.Fatalf("failed to set tracks: %v", err)
		}

		tracks, err := repo.Tracks(rowID)
		if err != nil {
			t.Fatalf("failed to read tracks: %v", err)
		}

		want := []string{"a", "b", "c"}
		for i, track := range tracks {
			if track.ServiceID != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], track.ServiceID)
			}
		}
	})

	t.Run("RemoveNotIn Cascades To Tracks", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		rowID, err := repo.Upsert(&models.Playlist{Service: models.ServiceSpotify, PlaylistID: "gone", Title: "Old", Owned: true})
		if err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.SetTracks(rowID, []models.PlaylistTrack{{Position: 0, ServiceID: "a", Title: "T", Artist: "A", NormalizedKey: "t"}}); err != nil {
			t.Fatalf("failed to set tracks: %v", err)
		}

		if _, err := repo.Upsert(&models.Playlist{Service: models.ServiceSpotify, PlaylistID: "kept", Title: "New", Owned: true}); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		pruned, err := repo.RemoveNotIn(models.ServiceSpotify, []string{"kept"})
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if pruned != 1 {
			t.Errorf("expected 1 pruned playlist, got %d", pruned)
		}

		var orphans int
		if err := db.QueryRow("SELECT COUNT(*) FROM playlist_tracks WHERE playlist_row_id = ?", rowID).Scan(&orphans); err != nil {
			t.Fatalf("failed to count orphans: %v", err)
		}
		if orphans != 0 {
			t.Errorf("expected cascade to remove listing rows, found %d", orphans)
		}
	})
}

func TestFavoriteRepository(t *testing.T) {
	t.Run("Album Round Trip", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFavoriteRepository(db)
		album := &models.FavoriteAlbum{Service: models.ServiceSpotify, AlbumID: "al1", Name: "The Wall", Artist: "Pink Floyd", NormalizedKey: "the wall::pink floyd"}

		for i := 0; i < 2; i++ {
			if err := repo.UpsertAlbum(album); err != nil {
				t.Fatalf("failed to upsert album: %v", err)
			}
		}

		albums, err := repo.Albums(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("failed to list albums: %v", err)
		}
		if len(albums) != 1 || albums[0].Name != "The Wall" {
			t.Errorf("expected single album, got %+v", albums)
		}
	})

	t.Run("Artist Round Trip", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFavoriteRepository(db)
		artist := &models.FavoriteArtist{Service: models.ServiceYandex, ArtistID: "ar1", Name: "Pink Floyd", NormalizedKey: "pink floyd"}

		if err := repo.UpsertArtist(artist); err != nil {
			t.Fatalf("failed to upsert artist: %v", err)
		}

		artists, err := repo.Artists(models.ServiceYandex)
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 1 || artists[0].Name != "Pink Floyd" {
			t.Errorf("expected single artist, got %+v", artists)
		}
	})

	t.Run("Prune Albums", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFavoriteRepository(db)
		for _, id := range []string{"al1", "al2"} {
			album := &models.FavoriteAlbum{Service: models.ServiceSpotify, AlbumID: id, Name: "Album " + id, Artist: "A", NormalizedKey: id}
			if err := repo.UpsertAlbum(album); err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}
		}

		pruned, err := repo.RemoveAlbumsNotIn(models.ServiceSpotify, []string{"al2"})
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if pruned != 1 {
			t.Errorf("expected 1 pruned album, got %d", pruned)
		}

		albums, _ := repo.Albums(models.ServiceSpotify)
		if len(albums) != 1 || albums[0].AlbumID != "al2" {
			t.Errorf("expected only al2 to survive, got %+v", albums)
		}
	})

	t.Run("Prune Artists Empty Keep", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewFavoriteRepository(db)
		artist := &models.FavoriteArtist{Service: models.ServiceYandex, ArtistID: "ar1", Name: "Gone", NormalizedKey: "gone"}
		if err := repo.UpsertArtist(artist); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		if _, err := repo.RemoveArtistsNotIn(models.ServiceYandex, nil); err != nil {
			t.Fatalf("failed to prune: %v", err)
		}

		artists, _ := repo.Artists(models.ServiceYandex)
		if len(artists) != 0 {
			t.Errorf("expected all artists pruned, got %+v", artists)
		}
	})
}

func TestHistoryRepository(t *testing.T) {
	t.Run("Absent Cursor", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)

		_, ok, err := repo.LastSync(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("absent cursor should not error: %v", err)
		}
		if ok {
			t.Error("expected no cursor before first sync")
		}
	})

	t.Run("Set And Advance", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		second := first.Add(time.Hour)

		if err := repo.SetLastSync(models.ServiceSpotify, first); err != nil {
			t.Fatalf("failed to set cursor: %v", err)
		}
		if err := repo.SetLastSync(models.ServiceSpotify, second); err != nil {
			t.Fatalf("failed to advance cursor: %v", err)
		}

		got, ok, err := repo.LastSync(models.ServiceSpotify)
		if err != nil {
			t.Fatalf("failed to read cursor: %v", err)
		}
		if !ok || !got.Equal(second) {
			t.Errorf("expected cursor %v, got %v (ok=%v)", second, got, ok)
		}

		if _, ok, _ := repo.LastSync(models.ServiceYandex); ok {
			t.Error("cursors should be per service")
		}
	})
}

func TestUndiscoveredRepository(t *testing.T) {
	t.Run("Add And Has", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUndiscoveredRepository(db)
		track := &models.UndiscoveredTrack{
			Service:       models.ServiceYandex,
			Title:         "Obscure B-Side",
			Artist:        "Unknown",
			NormalizedKey: "obscure b side",
			SourceTrackID: "sp42",
		}

		for i := 0; i < 2; i++ {
			if err := repo.Add(track); err != nil {
				t.Fatalf("failed to add: %v", err)
			}
		}

		known, err := repo.Has(models.ServiceYandex, "obscure b side")
		if err != nil {
			t.Fatalf("failed to check: %v", err)
		}
		if !known {
			t.Error("expected track to be recorded as undiscovered")
		}

		tracks, err := repo.List(models.ServiceYandex)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(tracks) != 1 {
			t.Errorf("duplicate recordings should collapse to one row, got %d", len(tracks))
		}
	})

	t.Run("Scoped By Target Service", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUndiscoveredRepository(db)
		track := &models.UndiscoveredTrack{
			Service:       models.ServiceSpotify,
			Title:         "Rarity",
			Artist:        "Someone",
			NormalizedKey: "rarity",
			SourceTrackID: "ya7",
		}
		if err := repo.Add(track); err != nil {
			t.Fatalf("failed to add: %v", err)
		}

		known, err := repo.Has(models.ServiceYandex, "rarity")
		if err != nil {
			t.Fatalf("failed to check: %v", err)
		}
		if known {
			t.Error("undiscovered records should be scoped to the target service")
		}
	})
}
