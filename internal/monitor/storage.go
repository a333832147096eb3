package monitor

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// stateSchema is applied on every open; the monitor store manages its own
// file and does not share the sync engine's migration runner.
const stateSchema = `
CREATE TABLE IF NOT EXISTS metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_name_time ON metrics (name, recorded_at);

CREATE TABLE IF NOT EXISTS state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Metric is one recorded sample. Values are stored as text so status
// metrics ("OK"/"FAIL") and numeric metrics share one table.
type Metric struct {
	Name       string
	Value      string
	RecordedAt time.Time
}

// NumberMetric creates a metric with an integer value.
func NumberMetric(name string, value int, at time.Time) Metric {
	return Metric{Name: name, Value: strconv.Itoa(value), RecordedAt: at}
}

// StatusMetric creates an OK/FAIL metric.
func StatusMetric(name string, ok bool, at time.Time) Metric {
	value := "FAIL"
	if ok {
		value = "OK"
	}
	return Metric{Name: name, Value: value, RecordedAt: at}
}

// Int returns the metric value as an integer, or 0 when it does not parse.
func (m Metric) Int() int {
	n, err := strconv.Atoi(m.Value)
	if err != nil {
		return 0
	}
	return n
}

// StateStore persists metric history and key-value check state in a
// dedicated SQLite file.
type StateStore struct {
	db *sql.DB
}

// OpenStateStore opens (creating if needed) the monitor state database at
// path. Parent directories are created automatically.
func OpenStateStore(path string) (*StateStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	return &StateStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// SaveMetrics appends a batch of samples to the metric history.
func (s *StateStore) SaveMetrics(metrics []Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO metrics (name, value, recorded_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(m.Name, m.Value, m.RecordedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert metric %s: %w", m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}
	return nil
}

// PruneMetricsOlderThan deletes samples recorded before cutoff.
func (s *StateStore) PruneMetricsOlderThan(cutoff time.Time) error {
	if _, err := s.db.Exec("DELETE FROM metrics WHERE recorded_at < ?", cutoff.UTC()); err != nil {
		return fmt.Errorf("failed to prune metrics: %w", err)
	}
	return nil
}

// FetchMetricWindow returns samples of one metric recorded at or after
// since, oldest first.
func (s *StateStore) FetchMetricWindow(name string, since time.Time) ([]Metric, error) {
	rows, err := s.db.Query(
		"SELECT name, value, recorded_at FROM metrics WHERE name = ? AND recorded_at >= ? ORDER BY recorded_at",
		name, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric window: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Name, &m.Value, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	return metrics, nil
}

// State returns the stored value for key. The second return is false when
// the key has never been set.
func (s *StateStore) State(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, true, nil
}

// SetState stores value under key, replacing any previous value.
func (s *StateStore) SetState(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// JSONState unmarshals the stored value for key into out. Missing keys and
// corrupted payloads leave out untouched and report false.
func (s *StateStore) JSONState(key string, out any) (bool, error) {
	raw, ok, err := s.State(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSONState marshals value and stores it under key.
func (s *StateStore) SetJSONState(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}
	return s.SetState(key, string(data))
}
