package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/spondex/internal/models"
)

// FavoriteRepository persists per-service snapshots of saved albums and
// followed artists.
type FavoriteRepository struct {
	db *sql.DB
}

// NewFavoriteRepository creates a new FavoriteRepository with the given database connection
func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// UpsertAlbum inserts or refreshes a saved album. Identity is (service, album_id).
func (r *FavoriteRepository) UpsertAlbum(album *models.FavoriteAlbum) error {
	query := `
		INSERT INTO favorite_albums (service, album_id, name, artist, normalized_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service, album_id) DO UPDATE SET
			name = excluded.name,
			artist = excluded.artist,
			normalized_key = excluded.normalized_key,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Exec(query, album.Service, album.AlbumID, album.Name, album.Artist, album.NormalizedKey)
	if err != nil {
		return fmt.Errorf("failed to upsert favorite album: %w", err)
	}

	return nil
}

// UpsertArtist inserts or refreshes a followed artist. Identity is (service, artist_id).
func (r *FavoriteRepository) UpsertArtist(artist *models.FavoriteArtist) error {
	query := `
		INSERT INTO favorite_artists (service, artist_id, name, normalized_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service, artist_id) DO UPDATE SET
			name = excluded.name,
			normalized_key = excluded.normalized_key,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Exec(query, artist.Service, artist.ArtistID, artist.Name, artist.NormalizedKey)
	if err != nil {
		return fmt.Errorf("failed to upsert favorite artist: %w", err)
	}

	return nil
}

// Albums returns the saved album snapshot for one service.
func (r *FavoriteRepository) Albums(service models.Service) ([]models.FavoriteAlbum, error) {
	query := `
		SELECT service, album_id, name, artist, normalized_key, created_at, updated_at
		FROM favorite_albums
		WHERE service = ?
		ORDER BY created_at, album_id
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite albums: %w", err)
	}
	defer rows.Close()

	var albums []models.FavoriteAlbum
	for rows.Next() {
		var album models.FavoriteAlbum
		err := rows.Scan(&album.Service, &album.AlbumID, &album.Name, &album.Artist, &album.NormalizedKey, &album.CreatedAt, &album.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite album: %w", err)
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return albums, nil
}

// Artists returns the followed artist snapshot for one service.
func (r *FavoriteRepository) Artists(service models.Service) ([]models.FavoriteArtist, error) {
	query := `
		SELECT service, artist_id, name, normalized_key, created_at, updated_at
		FROM favorite_artists
		WHERE service = ?
		ORDER BY created_at, artist_id
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite artists: %w", err)
	}
	defer rows.Close()

	var artists []models.FavoriteArtist
	for rows.Next() {
		var artist models.FavoriteArtist
		err := rows.Scan(&artist.Service, &artist.ArtistID, &artist.Name, &artist.NormalizedKey, &artist.CreatedAt, &artist.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite artist: %w", err)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return artists, nil
}

// RemoveAlbumsNotIn prunes saved albums for a service whose id is not in keep.
// An empty keep list removes every album for that service.
func (r *FavoriteRepository) RemoveAlbumsNotIn(service models.Service, keep []string) (int64, error) {
	return r.removeNotIn("favorite_albums", "album_id", service, keep)
}

// RemoveArtistsNotIn prunes followed artists for a service whose id is not in keep.
// An empty keep list removes every artist for that service.
func (r *FavoriteRepository) RemoveArtistsNotIn(service models.Service, keep []string) (int64, error) {
	return r.removeNotIn("favorite_artists", "artist_id", service, keep)
}

func (r *FavoriteRepository) removeNotIn(table, column string, service models.Service, keep []string) (int64, error) {
	if len(keep) == 0 {
		result, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE service = ?", table), service)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		return result.RowsAffected()
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, service)
	for _, id := range keep {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE service = ? AND %s NOT IN (%s)", table, column, placeholders(len(keep)))
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", table, err)
	}

	return result.RowsAffected()
}
