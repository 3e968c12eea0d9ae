package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Port                int
	StreamURL           string
	ModelPath           string
	ConfigPath          string
	SnapshotDirectory   string
	DatabasePath        string
	LogDirectory        string
	TargetFPS           int     // Inference rate cap in frames per second
	ConfidenceThreshold float64 // Minimum confidence for a prediction to count
	IoUThreshold        float64 // Minimum overlap for a detection to continue an existing track
	StaleTimeoutSeconds int     // Tracks not re-matched within this window are dropped
	RetentionDays       int
	PurgeIntervalMin    int // Minutes between purge runs
	EnabledLabels       []string
}

func Load() *Config {
	return &Config{
		Port:                getEnvAsInt("PORT", 8080),
		StreamURL:           getEnv("STREAM_URL", "rtsp://127.0.0.1:8554/stream"),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:          getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		SnapshotDirectory:   getEnv("SNAPSHOT_DIR", filepath.Join(".", "snapshots")),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "events.db")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		TargetFPS:           getEnvAsInt("TARGET_FPS", 5),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		IoUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.45),
		StaleTimeoutSeconds: getEnvAsInt("STALE_TIMEOUT_SECONDS", 30),
		RetentionDays:       getEnvAsInt("RETENTION_DAYS", 14),
		PurgeIntervalMin:    getEnvAsInt("PURGE_INTERVAL_MINUTES", 60),
		EnabledLabels:       getEnvAsList("ENABLED_LABELS", []string{"person", "car", "truck", "dog", "cat"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var list []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		if len(list) > 0 {
			return list
		}
	}
	return defaultValue
}
