package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spondex/internal/models"
)

// HistoryRepository persists per-service sync cursors.
//
// A cursor is the timestamp a service was last fully synchronized; it bounds
// the next incremental fetch window. A missing cursor means a full historical
// sync is required.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// LastSync returns the cursor for a service. A missing cursor reports
// ok=false, never an error.
func (r *HistoryRepository) LastSync(service models.Service) (time.Time, bool, error) {
	var last time.Time
	err := r.db.QueryRow("SELECT last_sync FROM sync_history WHERE service = ?", service).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read sync cursor: %w", err)
	}

	return last, true, nil
}

// SetLastSync advances the cursor for a service.
func (r *HistoryRepository) SetLastSync(service models.Service, at time.Time) error {
	query := "INSERT OR REPLACE INTO sync_history (service, last_sync) VALUES (?, ?)"
	if _, err := r.db.Exec(query, service, at); err != nil {
		return fmt.Errorf("failed to record sync cursor: %w", err)
	}

	return nil
}
