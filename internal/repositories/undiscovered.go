package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// UndiscoveredRepository records tracks that a service's catalog search could
// not find, so subsequent passes skip re-searching for them.
type UndiscoveredRepository struct {
	db *sql.DB
}

// NewUndiscoveredRepository creates a new UndiscoveredRepository with the given database connection
func NewUndiscoveredRepository(db *sql.DB) *UndiscoveredRepository {
	return &UndiscoveredRepository{db: db}
}

// Add records an undiscovered track. A track already recorded for the same
// target service and key is kept with its original recording time.
func (r *UndiscoveredRepository) Add(track *models.UndiscoveredTrack) error {
	query := `
		INSERT INTO undiscovered_tracks (id, service, title, artist, album, normalized_key, source_track_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(service, normalized_key) DO NOTHING
	`

	_, err := r.db.Exec(query,
		shared.GenerateID(),
		track.Service,
		track.Title,
		track.Artist,
		track.Album,
		track.NormalizedKey,
		track.SourceTrackID,
	)
	if err != nil {
		return fmt.Errorf("failed to record undiscovered track: %w", err)
	}

	return nil
}

// Has reports whether a track with the given key is already known to be
// absent from the target service.
func (r *UndiscoveredRepository) Has(service models.Service, normalizedKey string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM undiscovered_tracks WHERE service = ? AND normalized_key = ?)"
	if err := r.db.QueryRow(query, service, normalizedKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check undiscovered track: %w", err)
	}
	return exists, nil
}

// List returns all undiscovered tracks for one target service, newest first.
func (r *UndiscoveredRepository) List(service models.Service) ([]models.UndiscoveredTrack, error) {
	query := `
		SELECT id, service, title, artist, album, normalized_key, source_track_id, recorded_at
		FROM undiscovered_tracks
		WHERE service = ?
		ORDER BY recorded_at DESC, id
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to query undiscovered tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.UndiscoveredTrack
	for rows.Next() {
		var (
			track models.UndiscoveredTrack
			album sql.NullString
		)
		err := rows.Scan(&track.ID, &track.Service, &track.Title, &track.Artist, &album, &track.NormalizedKey, &track.SourceTrackID, &track.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan undiscovered track: %w", err)
		}
		track.Album = album.String
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}
