package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// TrackRepository persists the per-service snapshot of liked tracks.
//
// Rows mirror what each service reported on the last completed fetch; the
// orchestrator upserts every fetched track and then prunes rows absent from
// the fresh listing.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Upsert inserts a track or refreshes the metadata of an existing row.
// Identity is (service, service_track_id); repeated upserts of the same
// track keep a single row.
func (r *TrackRepository) Upsert(track *models.Track) error {
	query := `
		INSERT INTO tracks (id, service, service_track_id, title, artist, album, normalized_key, added_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service, service_track_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			normalized_key = excluded.normalized_key,
			added_at = excluded.added_at,
			updated_at = CURRENT_TIMESTAMP
	`

	var addedAt any
	if !track.AddedAt.IsZero() {
		addedAt = track.AddedAt
	}

	_, err := r.db.Exec(query,
		shared.GenerateID(),
		track.Service,
		track.ServiceID,
		track.Title,
		track.Artist,
		track.Album,
		track.NormalizedKey,
		addedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}

	return nil
}

// ExistsByServiceID reports whether a snapshot row exists for the given
// service-native track id.
func (r *TrackRepository) ExistsByServiceID(service models.Service, serviceID string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM tracks WHERE service = ? AND service_track_id = ?)"
	if err := r.db.QueryRow(query, service, serviceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check track existence: %w", err)
	}
	return exists, nil
}

// ListByService returns the snapshot for one service ordered by insertion.
func (r *TrackRepository) ListByService(service models.Service) ([]models.Track, error) {
	query := `
		SELECT id, service, service_track_id, title, artist, album, normalized_key, added_at, created_at, updated_at
		FROM tracks
		WHERE service = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// RemoveNotIn prunes snapshot rows for a service whose native id is not in
// keep. An empty keep list removes every row for that service. Returns the
// number of pruned rows.
func (r *TrackRepository) RemoveNotIn(service models.Service, keep []string) (int64, error) {
	if len(keep) == 0 {
		result, err := r.db.Exec("DELETE FROM tracks WHERE service = ?", service)
		if err != nil {
			return 0, fmt.Errorf("failed to prune tracks: %w", err)
		}
		return result.RowsAffected()
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, service)
	for _, id := range keep {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM tracks WHERE service = ? AND service_track_id NOT IN (%s)", placeholders(len(keep)))
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tracks: %w", err)
	}

	return result.RowsAffected()
}

// CountByService returns the number of snapshot rows for one service.
func (r *TrackRepository) CountByService(service models.Service) (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tracks WHERE service = ?", service).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// scanTrack scans a row from [sql.Rows] into a [models.Track]
func scanTrack(rows *sql.Rows) (models.Track, error) {
	var (
		track     models.Track
		album     sql.NullString
		addedAt   sql.NullTime
		createdAt time.Time
		updatedAt time.Time
	)

	err := rows.Scan(&track.ID, &track.Service, &track.ServiceID, &track.Title, &track.Artist, &album, &track.NormalizedKey, &addedAt, &createdAt, &updatedAt)
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to scan track: %w", err)
	}

	track.Album = album.String
	if addedAt.Valid {
		track.AddedAt = addedAt.Time
	}
	track.CreatedAt = createdAt
	track.UpdatedAt = updatedAt

	return track, nil
}
