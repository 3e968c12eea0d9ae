package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sentrycam/internal/logger"
	"sentrycam/internal/models"
	"sentrycam/internal/repository"
	"sentrycam/internal/services/storage"
)

// EventsData is a paginated response payload for the event list.
type EventsData struct {
	Events      []models.DetectionEvent `json:"events"`
	Length      int                     `json:"length"`
	TotalPages  int                     `json:"totalPages"`
	CurrentPage int                     `json:"currentPage"`
	Limit       int                     `json:"pageSize"`
}

// ListEventsHandler lists stored events with filtering and pagination.
// Query parameters: label, min_confidence, since (RFC3339), page, limit.
func ListEventsHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &models.EventFilter{
			Label:  q.Get("label"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		if raw := q.Get("min_confidence"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				filter.MinConfidence = v
			}
		}

		if raw := q.Get("since"); raw != "" {
			if v, err := time.Parse(time.RFC3339, raw); err == nil {
				filter.Since = v
			}
		}

		events, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error listing events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if events == nil {
			events = []models.DetectionEvent{}
		}

		data := EventsData{
			Events:      events,
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// GetEventHandler returns a single event by id.
func GetEventHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		evt, err := repo.GetByID(id)
		if err != nil {
			logger.Error("Error getting event %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if evt == nil {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(evt); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// TogglePinHandler flips the pinned flag of an event. Pinned events are
// exempt from retention purge.
func TogglePinHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id, ok := parseID(w, r)
		if !ok {
			return
		}

		if err := repo.TogglePin(id); err != nil {
			if strings.Contains(err.Error(), "not found") {
				http.Error(w, "Event not found", http.StatusNotFound)
				return
			}
			logger.Error("Error toggling pin on event %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteEventHandler removes an event and its snapshot file.
func DeleteEventHandler(repo repository.EventRepository, snapshots *storage.SnapshotService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id, ok := parseID(w, r)
		if !ok {
			return
		}

		evt, err := repo.GetByID(id)
		if err != nil {
			logger.Error("Error getting event %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if evt == nil {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}

		if evt.Snapshot != "" {
			if err := snapshots.Delete(evt.Snapshot); err != nil {
				logger.Error("Error deleting snapshot for event %d: %v", id, err)
			}
		}

		if err := repo.Delete(id); err != nil {
			logger.Error("Error deleting event %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Event %d deleted by user", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetStatsHandler returns aggregate statistics about stored events.
func GetStatsHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Error computing stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewSnapshotHandler serves a single snapshot file specified via the "name"
// query parameter.
func ViewSnapshotHandler(snapshots *storage.SnapshotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Name parameter is required", http.StatusBadRequest)
			return
		}
		if !isValidFilename(name) {
			http.Error(w, "Invalid filename", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(snapshots.Directory(), name))
	}
}

// helpers

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid event id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// isValidFilename rejects path traversal and other hostile names.
func isValidFilename(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	if strings.HasPrefix(name, "..") {
		return false
	}
	return true
}
