package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"sentrycam/internal/models"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert adds a new detection event to the database.
func (r *EventRepository) Insert(evt *models.DetectionEvent) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO events (timestamp, label, confidence, snapshot, x, y, width, height, frame_width, frame_height, pinned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, evt.Timestamp, evt.Label, evt.Confidence, nullString(evt.Snapshot),
		evt.Box.X, evt.Box.Y, evt.Box.Width, evt.Box.Height,
		evt.FrameWidth, evt.FrameHeight, evt.Pinned)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves an event by its ID. Returns (nil, nil) when not found.
func (r *EventRepository) GetByID(id int64) (*models.DetectionEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, timestamp, label, confidence, snapshot, x, y, width, height, frame_width, frame_height, pinned
		FROM events WHERE id = ?
	`, id)

	evt, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return evt, nil
}

// GetAll retrieves events based on filter criteria, newest first.
func (r *EventRepository) GetAll(filter *models.EventFilter) ([]models.DetectionEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, timestamp, label, confidence, snapshot, x, y, width, height, frame_width, frame_height, pinned
		FROM events
		WHERE 1=1
	`
	query, args := applyFilter(query, filter)
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.DetectionEvent
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *evt)
	}

	return events, rows.Err()
}

// GetTotalCount returns the total count of events matching the filter.
func (r *EventRepository) GetTotalCount(filter *models.EventFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT COUNT(*) FROM events WHERE 1=1`
	query, args := applyFilter(query, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// GetStats returns aggregate statistics about stored events.
func (r *EventRepository) GetStats() (*models.EventStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.EventStats{
		TopLabels: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM events`).Scan(&stats.TotalEvents); err != nil {
		return nil, err
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*) FROM events WHERE DATE(timestamp) = DATE('now', 'localtime')
	`).Scan(&stats.TodayEvents); err != nil {
		return nil, err
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COALESCE(AVG(confidence), 0) FROM events
	`).Scan(&stats.AvgConfidence); err != nil {
		return nil, err
	}

	rows, err := r.db.Conn().Query(`
		SELECT label, COUNT(*) as cnt
		FROM events
		GROUP BY label
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.TopLabels[label] = count
	}

	return stats, rows.Err()
}

// SnapshotReferenced checks whether any non-deleted event references the snapshot file.
func (r *EventRepository) SnapshotReferenced(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM events WHERE snapshot = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot reference: %w", err)
	}
	return count > 0, nil
}

// ExpiredSnapshots lists snapshot filenames of non-pinned events older than the cutoff.
func (r *EventRepository) ExpiredSnapshots(cutoff time.Time) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT snapshot FROM events
		WHERE pinned = 0 AND snapshot IS NOT NULL AND timestamp < ?
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired snapshots: %w", err)
	}
	defer rows.Close()

	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		filenames = append(filenames, name)
	}

	return filenames, rows.Err()
}

// TogglePin flips the pinned flag of an event.
func (r *EventRepository) TogglePin(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE events SET pinned = NOT pinned WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to toggle pin: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to toggle pin: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event not found")
	}
	return nil
}

// Delete removes an event by its ID.
func (r *EventRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// DeleteExpired bulk-deletes non-pinned events older than the cutoff and
// returns the number of deleted rows.
func (r *EventRepository) DeleteExpired(cutoff time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM events WHERE pinned = 0 AND timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	return result.RowsAffected()
}

// Vacuum reclaims storage after large deletions.
func (r *EventRepository) Vacuum() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`VACUUM`); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// applyFilter appends filter conditions to a query that ends with "WHERE 1=1".
func applyFilter(query string, filter *models.EventFilter) (string, []interface{}) {
	args := []interface{}{}

	if filter.Label != "" {
		query += " AND label = ?"
		args = append(args, filter.Label)
	}

	if filter.MinConfidence > 0 {
		query += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}

	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.DetectionEvent, error) {
	var evt models.DetectionEvent
	var snapshot sql.NullString
	err := row.Scan(&evt.ID, &evt.Timestamp, &evt.Label, &evt.Confidence, &snapshot,
		&evt.Box.X, &evt.Box.Y, &evt.Box.Width, &evt.Box.Height,
		&evt.FrameWidth, &evt.FrameHeight, &evt.Pinned)
	if err != nil {
		return nil, err
	}
	evt.Snapshot = snapshot.String
	return &evt, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
