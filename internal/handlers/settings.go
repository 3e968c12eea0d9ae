package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"sentrycam/internal/logger"
	"sentrycam/internal/services/settings"
)

// SettingsPayload mirrors the runtime settings over the management API.
// Pointer fields distinguish "absent" from zero on update.
type SettingsPayload struct {
	EnabledLabels       *[]string `json:"enabledLabels,omitempty"`
	ConfidenceThreshold *float64  `json:"confidenceThreshold,omitempty"`
	TargetFPS           *int      `json:"targetFps,omitempty"`
	IoUThreshold        *float64  `json:"iouThreshold,omitempty"`
	StaleTimeoutSeconds *int      `json:"staleTimeoutSeconds,omitempty"`
	RetentionDays       *int      `json:"retentionDays,omitempty"`
}

// SettingsHandler exposes runtime settings: GET returns them, POST applies a
// partial update. Changes take effect on the next detection cycle or purge run.
func SettingsHandler(stg *settings.Settings, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeSettings(w, stg, logger)

		case http.MethodPost:
			var payload SettingsPayload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}

			if payload.EnabledLabels != nil {
				stg.SetEnabledLabels(*payload.EnabledLabels)
			}
			if payload.ConfidenceThreshold != nil {
				stg.SetConfidenceThreshold(*payload.ConfidenceThreshold)
			}
			if payload.TargetFPS != nil {
				stg.SetTargetFPS(*payload.TargetFPS)
			}
			if payload.IoUThreshold != nil {
				stg.SetIoUThreshold(*payload.IoUThreshold)
			}
			if payload.StaleTimeoutSeconds != nil {
				stg.SetStaleTimeout(time.Duration(*payload.StaleTimeoutSeconds) * time.Second)
			}
			if payload.RetentionDays != nil {
				stg.SetRetentionDays(*payload.RetentionDays)
			}

			logger.Info("Runtime settings updated")
			writeSettings(w, stg, logger)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeSettings(w http.ResponseWriter, stg *settings.Settings, logger *logger.Logger) {
	labels := stg.EnabledLabels()
	confidence := stg.ConfidenceThreshold()
	fps := stg.TargetFPS()
	iou := stg.IoUThreshold()
	stale := int(stg.StaleTimeout() / time.Second)
	retention := stg.RetentionDays()

	payload := SettingsPayload{
		EnabledLabels:       &labels,
		ConfidenceThreshold: &confidence,
		TargetFPS:           &fps,
		IoUThreshold:        &iou,
		StaleTimeoutSeconds: &stale,
		RetentionDays:       &retention,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
