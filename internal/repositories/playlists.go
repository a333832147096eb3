package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// PlaylistRepository persists per-service playlist snapshots.
//
// A snapshot is the playlist header plus its full ordered track listing.
// Listings are replaced wholesale on every pass, never patched, so the stored
// order always mirrors the service.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Upsert inserts or refreshes a playlist header and returns the stable local
// row id. Identity is (service, playlist_id).
func (r *PlaylistRepository) Upsert(playlist *models.Playlist) (string, error) {
	query := `
		INSERT INTO playlists (id, service, playlist_id, title, track_count, owned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service, playlist_id) DO UPDATE SET
			title = excluded.title,
			track_count = excluded.track_count,
			owned = excluded.owned,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Exec(query,
		shared.GenerateID(),
		playlist.Service,
		playlist.PlaylistID,
		playlist.Title,
		playlist.TrackCount,
		playlist.Owned,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert playlist: %w", err)
	}

	var rowID string
	lookup := "SELECT id FROM playlists WHERE service = ? AND playlist_id = ?"
	if err := r.db.QueryRow(lookup, playlist.Service, playlist.PlaylistID).Scan(&rowID); err != nil {
		return "", fmt.Errorf("failed to resolve playlist row id: %w", err)
	}

	return rowID, nil
}

// SetTracks replaces the full track listing of a playlist snapshot.
func (r *PlaylistRepository) SetTracks(rowID string, tracks []models.PlaylistTrack) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM playlist_tracks WHERE playlist_row_id = ?", rowID); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	insert := `
		INSERT INTO playlist_tracks (playlist_row_id, position, track_service_id, title, artist, album, normalized_key, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, track := range tracks {
		var addedAt any
		if !track.AddedAt.IsZero() {
			addedAt = track.AddedAt
		}
		_, err := tx.Exec(insert, rowID, track.Position, track.ServiceID, track.Title, track.Artist, track.Album, track.NormalizedKey, addedAt)
		if err != nil {
			return fmt.Errorf("failed to insert playlist track at position %d: %w", track.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist tracks: %w", err)
	}

	return nil
}

// Tracks returns a playlist's stored track listing in position order.
func (r *PlaylistRepository) Tracks(rowID string) ([]models.PlaylistTrack, error) {
	query := `
		SELECT position, track_service_id, title, artist, album, normalized_key, added_at
		FROM playlist_tracks
		WHERE playlist_row_id = ?
		ORDER BY position
	`

	rows, err := r.db.Query(query, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.PlaylistTrack
	for rows.Next() {
		var (
			track   models.PlaylistTrack
			album   sql.NullString
			addedAt sql.NullTime
		)
		if err := rows.Scan(&track.Position, &track.ServiceID, &track.Title, &track.Artist, &album, &track.NormalizedKey, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		track.Album = album.String
		if addedAt.Valid {
			track.AddedAt = addedAt.Time
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// ListByService returns all playlist headers for one service.
func (r *PlaylistRepository) ListByService(service models.Service) ([]models.Playlist, error) {
	query := `
		SELECT id, service, playlist_id, title, track_count, owned, created_at, updated_at
		FROM playlists
		WHERE service = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var playlist models.Playlist
		err := rows.Scan(&playlist.ID, &playlist.Service, &playlist.PlaylistID, &playlist.Title, &playlist.TrackCount, &playlist.Owned, &playlist.CreatedAt, &playlist.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// RemoveNotIn prunes playlists for a service whose native id is not in keep,
// cascading to their track listings. An empty keep list removes every
// playlist for that service. Returns the number of pruned playlists.
func (r *PlaylistRepository) RemoveNotIn(service models.Service, keep []string) (int64, error) {
	if len(keep) == 0 {
		result, err := r.db.Exec("DELETE FROM playlists WHERE service = ?", service)
		if err != nil {
			return 0, fmt.Errorf("failed to prune playlists: %w", err)
		}
		return result.RowsAffected()
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, service)
	for _, id := range keep {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM playlists WHERE service = ? AND playlist_id NOT IN (%s)", placeholders(len(keep)))
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune playlists: %w", err)
	}

	return result.RowsAffected()
}

// CountByService returns the number of stored playlists for one service.
func (r *PlaylistRepository) CountByService(service models.Service) (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM playlists WHERE service = ?", service).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count playlists: %w", err)
	}
	return count, nil
}
