package handlers

import (
	"encoding/json"
	"net/http"

	"sentrycam/internal/config"
	"sentrycam/internal/logger"
	"sentrycam/internal/services/pipeline"
)

// PipelineStatusHandler reports whether the detection pipeline is running.
func PipelineStatusHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"running": p.Running()})
	}
}

// StartPipelineHandler starts the detection pipeline against the configured
// stream. Starting an already-running pipeline is a no-op.
func StartPipelineHandler(p *pipeline.Pipeline, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := p.Start(cfg.StreamURL); err != nil {
			logger.Error("Failed to start pipeline: %v", err)
			http.Error(w, "Failed to start pipeline", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// StopPipelineHandler stops the detection pipeline.
func StopPipelineHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		p.Stop()
		w.WriteHeader(http.StatusNoContent)
	}
}
