package repository

import (
	"time"

	"sentrycam/internal/models"
)

// EventRepository defines the interface for detection-event data operations.
type EventRepository interface {
	// Create operations
	Insert(evt *models.DetectionEvent) (int64, error)

	// Read operations
	GetByID(id int64) (*models.DetectionEvent, error)
	GetAll(filter *models.EventFilter) ([]models.DetectionEvent, error)
	GetTotalCount(filter *models.EventFilter) (int, error)
	GetStats() (*models.EventStats, error)
	SnapshotReferenced(filename string) (bool, error)
	ExpiredSnapshots(cutoff time.Time) ([]string, error)

	// Update operations
	TogglePin(id int64) error

	// Delete operations
	Delete(id int64) error
	DeleteExpired(cutoff time.Time) (int64, error)

	// Maintenance
	Vacuum() error
}
