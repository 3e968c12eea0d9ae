package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sentrycam/internal/logger"
)

// snapshotTimestampLayout is the ISO8601-with-dashes form embedded in
// snapshot filenames. The purge engine's orphan scan parses it back out,
// so the layout must stay colon-free for filesystem safety.
const snapshotTimestampLayout = "2006-01-02T15-04-05"

// SnapshotService stores detection snapshots on disk under a single directory.
// Filenames follow <label>_<timestamp>_<confidence-percent>.jpg.
type SnapshotService struct {
	dir    string
	logger *logger.Logger
}

// NewSnapshotService creates the store and ensures the snapshot directory exists.
func NewSnapshotService(dir string, logger *logger.Logger) (*SnapshotService, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotService{dir: dir, logger: logger}, nil
}

// Directory returns the snapshot directory path.
func (s *SnapshotService) Directory() string {
	return s.dir
}

// Save writes raw frame bytes to disk and returns the generated filename.
func (s *SnapshotService) Save(label string, timestamp time.Time, confidence float64, frameData []byte) (string, error) {
	filename := Filename(label, timestamp, confidence)
	fullpath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullpath, frameData, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", filename, err)
	}

	return filename, nil
}

// Delete removes a single snapshot file. A missing file is not an error.
func (s *SnapshotService) Delete(filename string) error {
	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot %s: %w", filename, err)
	}
	return nil
}

// ListOlderThan returns the filenames of snapshots whose embedded timestamp
// predates the cutoff. Files that don't follow the naming convention are
// skipped and logged.
func (s *SnapshotService) ListOlderThan(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jpg" {
			continue
		}

		timestamp, err := ParseTimestamp(entry.Name())
		if err != nil {
			s.logger.Warning("Skipping snapshot with unparseable name %s: %v", entry.Name(), err)
			continue
		}

		if timestamp.Before(cutoff) {
			filenames = append(filenames, entry.Name())
		}
	}

	return filenames, nil
}

// DirectorySize returns the total size of all snapshot files in bytes.
func (s *SnapshotService) DirectorySize() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// Filename builds a snapshot filename from label, timestamp and confidence.
func Filename(label string, timestamp time.Time, confidence float64) string {
	return fmt.Sprintf("%s_%s_%d.jpg",
		label,
		timestamp.Format(snapshotTimestampLayout),
		int(confidence*100))
}

// ParseTimestamp extracts the embedded timestamp from a snapshot filename.
func ParseTimestamp(filename string) (time.Time, error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("unexpected filename format: %s", filename)
	}

	// Label and confidence flank the timestamp; the label itself never
	// contains underscores.
	raw := parts[len(parts)-2]
	timestamp, err := time.ParseInLocation(snapshotTimestampLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp in %s: %w", filename, err)
	}
	return timestamp, nil
}
