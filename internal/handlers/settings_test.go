package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"sentrycam/internal/config"
	"sentrycam/internal/logger"
	"sentrycam/internal/services/settings"
)

func setupSettings(t *testing.T) (*settings.Settings, *logger.Logger) {
	t.Helper()

	log := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	stg := settings.FromConfig(&config.Config{
		TargetFPS:           5,
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.45,
		StaleTimeoutSeconds: 30,
		RetentionDays:       14,
		EnabledLabels:       []string{"person", "car"},
	})
	return stg, log
}

func TestSettingsHandler_Get(t *testing.T) {
	stg, log := setupSettings(t)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	SettingsHandler(stg, log)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var payload SettingsPayload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if *payload.TargetFPS != 5 {
		t.Errorf("Expected FPS 5, got %d", *payload.TargetFPS)
	}
	if *payload.ConfidenceThreshold != 0.5 {
		t.Errorf("Expected confidence 0.5, got %f", *payload.ConfidenceThreshold)
	}
	if !reflect.DeepEqual(*payload.EnabledLabels, []string{"person", "car"}) {
		t.Errorf("Expected labels [person car], got %v", *payload.EnabledLabels)
	}
}

func TestSettingsHandler_PartialUpdate(t *testing.T) {
	stg, log := setupSettings(t)

	body := strings.NewReader(`{"targetFps": 10, "staleTimeoutSeconds": 45}`)
	req := httptest.NewRequest(http.MethodPost, "/api/settings", body)
	rec := httptest.NewRecorder()
	SettingsHandler(stg, log)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	if stg.TargetFPS() != 10 {
		t.Errorf("Expected FPS 10, got %d", stg.TargetFPS())
	}
	if stg.StaleTimeout() != 45*time.Second {
		t.Errorf("Expected stale timeout 45s, got %v", stg.StaleTimeout())
	}
	// Absent fields stay untouched.
	if stg.ConfidenceThreshold() != 0.5 {
		t.Errorf("Confidence threshold should be unchanged, got %f", stg.ConfidenceThreshold())
	}
	if !reflect.DeepEqual(stg.EnabledLabels(), []string{"person", "car"}) {
		t.Errorf("Labels should be unchanged, got %v", stg.EnabledLabels())
	}
}

func TestSettingsHandler_UpdateLabels(t *testing.T) {
	stg, log := setupSettings(t)

	body := strings.NewReader(`{"enabledLabels": ["dog", "cat"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/settings", body)
	rec := httptest.NewRecorder()
	SettingsHandler(stg, log)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !reflect.DeepEqual(stg.EnabledLabels(), []string{"cat", "dog"}) {
		t.Errorf("Expected labels [cat dog], got %v", stg.EnabledLabels())
	}
}

func TestSettingsHandler_InvalidJSON(t *testing.T) {
	stg, log := setupSettings(t)

	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	SettingsHandler(stg, log)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestSettingsHandler_MethodNotAllowed(t *testing.T) {
	stg, log := setupSettings(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/settings", nil)
	rec := httptest.NewRecorder()
	SettingsHandler(stg, log)(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
