package sqlite

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sentrycam/internal/models"
)

func setupRepo(t *testing.T) *EventRepository {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewEventRepository(db)
}

func sampleEvent() *models.DetectionEvent {
	return &models.DetectionEvent{
		Timestamp:   time.Now(),
		Label:       "person",
		Confidence:  0.87,
		Snapshot:    "person_2026-08-30T12-00-00_87.jpg",
		Box:         models.Box{X: 10, Y: 20, Width: 50, Height: 100},
		FrameWidth:  640,
		FrameHeight: 480,
	}
}

func TestEventRepository_InsertAndGet(t *testing.T) {
	repo := setupRepo(t)

	id, err := repo.Insert(sampleEvent())
	if err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected a non-zero id")
	}

	evt, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("Failed to get event: %v", err)
	}
	if evt == nil {
		t.Fatal("Expected event, got nil")
	}

	if evt.Label != "person" {
		t.Errorf("Expected label person, got %s", evt.Label)
	}
	if evt.Confidence != 0.87 {
		t.Errorf("Expected confidence 0.87, got %f", evt.Confidence)
	}
	if evt.Snapshot != "person_2026-08-30T12-00-00_87.jpg" {
		t.Errorf("Snapshot mismatch: %s", evt.Snapshot)
	}
	if evt.Box != (models.Box{X: 10, Y: 20, Width: 50, Height: 100}) {
		t.Errorf("Box mismatch: %+v", evt.Box)
	}
	if evt.FrameWidth != 640 || evt.FrameHeight != 480 {
		t.Errorf("Frame dimensions mismatch: %dx%d", evt.FrameWidth, evt.FrameHeight)
	}
	if evt.Pinned {
		t.Error("New event should not be pinned")
	}
}

func TestEventRepository_GetByIDNotFound(t *testing.T) {
	repo := setupRepo(t)

	evt, err := repo.GetByID(9999)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if evt != nil {
		t.Error("Expected nil for missing event")
	}
}

func TestEventRepository_NullSnapshot(t *testing.T) {
	repo := setupRepo(t)

	evt := sampleEvent()
	evt.Snapshot = ""

	id, err := repo.Insert(evt)
	if err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}

	got, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("Failed to get event: %v", err)
	}
	if got.Snapshot != "" {
		t.Errorf("Expected empty snapshot, got %s", got.Snapshot)
	}
}

func TestEventRepository_GetAllFilters(t *testing.T) {
	repo := setupRepo(t)

	now := time.Now()
	events := []*models.DetectionEvent{
		{Timestamp: now.Add(-3 * time.Hour), Label: "person", Confidence: 0.9},
		{Timestamp: now.Add(-2 * time.Hour), Label: "car", Confidence: 0.6},
		{Timestamp: now.Add(-1 * time.Hour), Label: "person", Confidence: 0.4},
	}
	for _, evt := range events {
		if _, err := repo.Insert(evt); err != nil {
			t.Fatalf("Failed to insert event: %v", err)
		}
	}

	tests := []struct {
		name     string
		filter   models.EventFilter
		expected int
	}{
		{"no filter", models.EventFilter{}, 3},
		{"by label", models.EventFilter{Label: "person"}, 2},
		{"by confidence", models.EventFilter{MinConfidence: 0.5}, 2},
		{"by since", models.EventFilter{Since: now.Add(-90 * time.Minute)}, 1},
		{"label and confidence", models.EventFilter{Label: "person", MinConfidence: 0.5}, 1},
		{"limit", models.EventFilter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAll(&tt.filter)
			if err != nil {
				t.Fatalf("Failed to get events: %v", err)
			}
			if len(got) != tt.expected {
				t.Errorf("Expected %d events, got %d", tt.expected, len(got))
			}
		})
	}
}

func TestEventRepository_GetAllNewestFirst(t *testing.T) {
	repo := setupRepo(t)

	now := time.Now()
	old := &models.DetectionEvent{Timestamp: now.Add(-time.Hour), Label: "car", Confidence: 0.5}
	fresh := &models.DetectionEvent{Timestamp: now, Label: "person", Confidence: 0.8}

	if _, err := repo.Insert(old); err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}
	if _, err := repo.Insert(fresh); err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}

	got, err := repo.GetAll(&models.EventFilter{})
	if err != nil {
		t.Fatalf("Failed to get events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Label != "person" {
		t.Errorf("Expected newest event first, got %s", got[0].Label)
	}
}

func TestEventRepository_GetTotalCount(t *testing.T) {
	repo := setupRepo(t)

	for i := 0; i < 5; i++ {
		if _, err := repo.Insert(sampleEvent()); err != nil {
			t.Fatalf("Failed to insert event: %v", err)
		}
	}

	count, err := repo.GetTotalCount(&models.EventFilter{})
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 events, got %d", count)
	}
}

func TestEventRepository_TogglePin(t *testing.T) {
	repo := setupRepo(t)

	id, err := repo.Insert(sampleEvent())
	if err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}

	if err := repo.TogglePin(id); err != nil {
		t.Fatalf("Failed to toggle pin: %v", err)
	}
	evt, _ := repo.GetByID(id)
	if !evt.Pinned {
		t.Error("Expected event to be pinned after first toggle")
	}

	if err := repo.TogglePin(id); err != nil {
		t.Fatalf("Failed to toggle pin: %v", err)
	}
	evt, _ = repo.GetByID(id)
	if evt.Pinned {
		t.Error("Expected event to be unpinned after second toggle")
	}
}

func TestEventRepository_TogglePinNotFound(t *testing.T) {
	repo := setupRepo(t)

	if err := repo.TogglePin(42); err == nil {
		t.Error("Expected error when toggling a missing event")
	}
}

func TestEventRepository_Delete(t *testing.T) {
	repo := setupRepo(t)

	id, err := repo.Insert(sampleEvent())
	if err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}

	if err := repo.Delete(id); err != nil {
		t.Fatalf("Failed to delete event: %v", err)
	}

	evt, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if evt != nil {
		t.Error("Expected event to be gone after delete")
	}
}

func TestEventRepository_DeleteExpired(t *testing.T) {
	repo := setupRepo(t)

	now := time.Now()
	expired := &models.DetectionEvent{Timestamp: now.Add(-48 * time.Hour), Label: "person", Confidence: 0.8}
	pinned := &models.DetectionEvent{Timestamp: now.Add(-48 * time.Hour), Label: "dog", Confidence: 0.8, Pinned: true}
	fresh := &models.DetectionEvent{Timestamp: now, Label: "car", Confidence: 0.8}

	for _, evt := range []*models.DetectionEvent{expired, pinned, fresh} {
		if _, err := repo.Insert(evt); err != nil {
			t.Fatalf("Failed to insert event: %v", err)
		}
	}

	deleted, err := repo.DeleteExpired(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete expired events: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted row, got %d", deleted)
	}

	count, err := repo.GetTotalCount(&models.EventFilter{})
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 remaining events, got %d", count)
	}
}

func TestEventRepository_ExpiredSnapshots(t *testing.T) {
	repo := setupRepo(t)

	now := time.Now()
	events := []*models.DetectionEvent{
		{Timestamp: now.Add(-48 * time.Hour), Label: "person", Confidence: 0.8, Snapshot: "old.jpg"},
		{Timestamp: now.Add(-48 * time.Hour), Label: "dog", Confidence: 0.8, Snapshot: "pinned.jpg", Pinned: true},
		{Timestamp: now.Add(-48 * time.Hour), Label: "car", Confidence: 0.8}, // no snapshot
		{Timestamp: now, Label: "cat", Confidence: 0.8, Snapshot: "fresh.jpg"},
	}
	for _, evt := range events {
		if _, err := repo.Insert(evt); err != nil {
			t.Fatalf("Failed to insert event: %v", err)
		}
	}

	filenames, err := repo.ExpiredSnapshots(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to list expired snapshots: %v", err)
	}
	if len(filenames) != 1 || filenames[0] != "old.jpg" {
		t.Errorf("Expected [old.jpg], got %v", filenames)
	}
}

func TestEventRepository_SnapshotReferenced(t *testing.T) {
	repo := setupRepo(t)

	if _, err := repo.Insert(sampleEvent()); err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}

	referenced, err := repo.SnapshotReferenced("person_2026-08-30T12-00-00_87.jpg")
	if err != nil {
		t.Fatalf("Failed to check reference: %v", err)
	}
	if !referenced {
		t.Error("Expected snapshot to be referenced")
	}

	referenced, err = repo.SnapshotReferenced("nobody_owns_this.jpg")
	if err != nil {
		t.Fatalf("Failed to check reference: %v", err)
	}
	if referenced {
		t.Error("Expected snapshot to be unreferenced")
	}
}

func TestEventRepository_GetStats(t *testing.T) {
	repo := setupRepo(t)

	now := time.Now()
	events := []*models.DetectionEvent{
		{Timestamp: now, Label: "person", Confidence: 0.8},
		{Timestamp: now, Label: "person", Confidence: 0.6},
		{Timestamp: now, Label: "car", Confidence: 1.0},
	}
	for _, evt := range events {
		if _, err := repo.Insert(evt); err != nil {
			t.Fatalf("Failed to insert event: %v", err)
		}
	}

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.TotalEvents != 3 {
		t.Errorf("Expected 3 total events, got %d", stats.TotalEvents)
	}
	if stats.TopLabels["person"] != 2 {
		t.Errorf("Expected 2 person events, got %d", stats.TopLabels["person"])
	}
	if stats.TopLabels["car"] != 1 {
		t.Errorf("Expected 1 car event, got %d", stats.TopLabels["car"])
	}
	if stats.AvgConfidence < 0.79 || stats.AvgConfidence > 0.81 {
		t.Errorf("Expected average confidence 0.8, got %f", stats.AvgConfidence)
	}
}

func TestEventRepository_ConcurrentInserts(t *testing.T) {
	repo := setupRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Insert(sampleEvent()); err != nil {
				t.Errorf("Concurrent insert failed: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := repo.GetTotalCount(&models.EventFilter{})
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 events, got %d", count)
	}
}
