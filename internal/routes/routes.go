package routes

import (
	"net/http"

	"sentrycam/internal/config"
	"sentrycam/internal/handlers"
	"sentrycam/internal/logger"
	"sentrycam/internal/repository"
	"sentrycam/internal/services/pipeline"
	"sentrycam/internal/services/settings"
	"sentrycam/internal/services/storage"
	ws "sentrycam/internal/services/websocket"
)

// SetupRoutes registers the management API, the live-view websocket and the
// log endpoints.
func SetupRoutes(repo repository.EventRepository, snapshots *storage.SnapshotService, hub *ws.HubService, p *pipeline.Pipeline, stg *settings.Settings, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Live view
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(hub, logger))

	// Events
	mux.HandleFunc("/api/events", handlers.ListEventsHandler(repo, logger))
	mux.HandleFunc("/api/events/get", handlers.GetEventHandler(repo, logger))
	mux.HandleFunc("/api/events/pin", handlers.TogglePinHandler(repo, logger))
	mux.HandleFunc("/api/events/delete", handlers.DeleteEventHandler(repo, snapshots, logger))
	mux.HandleFunc("/api/events/stats", handlers.GetStatsHandler(repo, logger))
	mux.HandleFunc("/api/events/snapshot", handlers.ViewSnapshotHandler(snapshots))

	// Runtime settings
	mux.HandleFunc("/api/settings", handlers.SettingsHandler(stg, logger))

	// Pipeline control
	mux.HandleFunc("/api/pipeline/status", handlers.PipelineStatusHandler(p))
	mux.HandleFunc("/api/pipeline/start", handlers.StartPipelineHandler(p, cfg, logger))
	mux.HandleFunc("/api/pipeline/stop", handlers.StopPipelineHandler(p))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		mux.HandleFunc("/logs/"+level, handlers.ShowLogsHandler(cfg, level+".log"))
		mux.HandleFunc("/logs/"+level+"/clear", handlers.ClearLogsHandler(logger, level+".log"))
	}

	return mux
}
