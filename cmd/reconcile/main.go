package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sentrycam/internal/models"
	"sentrycam/internal/repository/sqlite"
	"sentrycam/internal/services/storage"
)

// reconcile backfills event rows for snapshot files that have no matching
// database record. Such files are left behind when the process crashes
// between the snapshot write and the event insert.
func main() {
	snapshotDir := flag.String("snapshots", "snapshots", "Directory containing snapshot files")
	dbPath := flag.String("db", filepath.Join("data", "events.db"), "Database path")
	dryRun := flag.Bool("dry-run", false, "List orphans without inserting")
	flag.Parse()

	fmt.Printf("Reconciling snapshots from %s against %s\n", *snapshotDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewEventRepository(db)

	entries, err := os.ReadDir(*snapshotDir)
	if err != nil {
		log.Fatalf("Failed to read snapshot directory: %v", err)
	}

	inserted := 0
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jpg" {
			continue
		}

		referenced, err := repo.SnapshotReferenced(entry.Name())
		if err != nil {
			log.Fatalf("Failed to check %s: %v", entry.Name(), err)
		}
		if referenced {
			continue
		}

		evt, err := eventFromFilename(entry.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", entry.Name(), err)
			skipped++
			continue
		}

		if *dryRun {
			fmt.Printf("Would insert: %s (%s, %.0f%%)\n", entry.Name(), evt.Label, evt.Confidence*100)
			inserted++
			continue
		}

		if _, err := repo.Insert(evt); err != nil {
			log.Printf("⚠️  Failed to insert %s: %v", entry.Name(), err)
			skipped++
			continue
		}
		inserted++
	}

	fmt.Printf("✅ Reconciled %d snapshots (%d skipped)\n", inserted, skipped)
}

// eventFromFilename rebuilds an event from the snapshot naming convention
// <label>_<timestamp>_<confidence-percent>.jpg. Box and frame dimensions are
// unrecoverable and stay zero.
func eventFromFilename(filename string) (*models.DetectionEvent, error) {
	timestamp, err := storage.ParseTimestamp(filename)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return nil, fmt.Errorf("unexpected filename format")
	}

	pct, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return nil, fmt.Errorf("unparseable confidence: %w", err)
	}

	return &models.DetectionEvent{
		Timestamp:  timestamp,
		Label:      strings.Join(parts[:len(parts)-2], "_"),
		Confidence: float64(pct) / 100,
		Snapshot:   filename,
	}, nil
}
