package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// LinkRepository manages the crosswalk tables pairing Spotify and Yandex ids.
//
// Each entity kind has its own table. Within a kind, at most one row may touch
// a given id on either side; Link enforces this by deleting any row involving
// either id before inserting the new pair.
type LinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a new LinkRepository with the given database connection
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Link records that spotifyID and yandexID refer to the same entity,
// superseding any previous link that touched either id. Calling Link twice
// with the same arguments yields the same final state.
func (r *LinkRepository) Link(kind models.EntityKind, spotifyID, yandexID, normalizedKey string) error {
	table, err := linkTable(kind)
	if err != nil {
		return err
	}

	if spotifyID == "" || yandexID == "" {
		return fmt.Errorf("link requires both ids: %w", shared.ErrInvalidArgument)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE spotify_id = ? OR yandex_id = ?", table)
	if _, err := tx.Exec(deleteQuery, spotifyID, yandexID); err != nil {
		return fmt.Errorf("failed to remove superseded links: %w", err)
	}

	insertQuery := fmt.Sprintf("INSERT INTO %s (id, spotify_id, yandex_id, normalized_key) VALUES (?, ?, ?, ?)", table)
	if _, err := tx.Exec(insertQuery, shared.GenerateID(), spotifyID, yandexID, normalizedKey); err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link: %w", err)
	}

	return nil
}

// Lookup returns the counterpart id for the given service-native id.
// A missing link reports ok=false, never an error.
func (r *LinkRepository) Lookup(kind models.EntityKind, service models.Service, id string) (string, bool, error) {
	table, err := linkTable(kind)
	if err != nil {
		return "", false, err
	}

	var query string
	if service == models.ServiceSpotify {
		query = fmt.Sprintf("SELECT yandex_id FROM %s WHERE spotify_id = ?", table)
	} else {
		query = fmt.Sprintf("SELECT spotify_id FROM %s WHERE yandex_id = ?", table)
	}

	var counterpart string
	err = r.db.QueryRow(query, id).Scan(&counterpart)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up link: %w", err)
	}

	return counterpart, true, nil
}

// FindByKey recovers a link when only the normalized key is known, such as
// after a service-side id change. A missing key reports ok=false.
func (r *LinkRepository) FindByKey(kind models.EntityKind, normalizedKey string) (models.Link, bool, error) {
	table, err := linkTable(kind)
	if err != nil {
		return models.Link{}, false, err
	}

	query := fmt.Sprintf("SELECT id, spotify_id, yandex_id, normalized_key, created_at FROM %s WHERE normalized_key = ? LIMIT 1", table)

	var link models.Link
	link.Kind = kind
	err = r.db.QueryRow(query, normalizedKey).Scan(&link.ID, &link.SpotifyID, &link.YandexID, &link.NormalizedKey, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, false, nil
	}
	if err != nil {
		return models.Link{}, false, fmt.Errorf("failed to find link by key: %w", err)
	}

	return link, true, nil
}

// Unlink removes the link touching the given id on the given side.
// Removing a nonexistent link is not an error.
func (r *LinkRepository) Unlink(kind models.EntityKind, service models.Service, id string) error {
	table, err := linkTable(kind)
	if err != nil {
		return err
	}

	var query string
	if service == models.ServiceSpotify {
		query = fmt.Sprintf("DELETE FROM %s WHERE spotify_id = ?", table)
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE yandex_id = ?", table)
	}

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to unlink: %w", err)
	}

	return nil
}

// List returns all links of a kind, newest first.
func (r *LinkRepository) List(kind models.EntityKind) ([]models.Link, error) {
	table, err := linkTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, spotify_id, yandex_id, normalized_key, created_at FROM %s ORDER BY created_at DESC, id", table)

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		link.Kind = kind
		if err := rows.Scan(&link.ID, &link.SpotifyID, &link.YandexID, &link.NormalizedKey, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return links, nil
}

// Count returns the number of links of a kind.
func (r *LinkRepository) Count(kind models.EntityKind) (int, error) {
	table, err := linkTable(kind)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}

	return count, nil
}
