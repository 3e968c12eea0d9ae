package settings

import (
	"sync"
	"time"

	"sentrycam/internal/config"
)

// SupportedLabels is the label vocabulary of the detection model. Enabled
// labels are always a subset of this set.
var SupportedLabels = []string{
	"person", "bicycle", "car", "motorcycle", "bus", "train", "truck", "cat", "dog",
}

// Settings holds the runtime-tunable parameters of the pipeline. All values
// are read on every detection cycle and may be updated concurrently through
// the management API.
type Settings struct {
	mu sync.RWMutex

	enabledLabels       map[string]bool
	confidenceThreshold float64
	targetFPS           int
	iouThreshold        float64
	staleTimeout        time.Duration
	retentionDays       int
}

// FromConfig initializes runtime settings from the startup configuration.
// Values go through the setters so environment input is clamped the same
// way API updates are.
func FromConfig(cfg *config.Config) *Settings {
	s := &Settings{enabledLabels: make(map[string]bool)}
	s.SetConfidenceThreshold(cfg.ConfidenceThreshold)
	s.SetTargetFPS(cfg.TargetFPS)
	s.SetIoUThreshold(cfg.IoUThreshold)
	s.SetStaleTimeout(time.Duration(cfg.StaleTimeoutSeconds) * time.Second)
	s.SetRetentionDays(cfg.RetentionDays)
	s.SetEnabledLabels(cfg.EnabledLabels)
	return s
}

// LabelEnabled reports whether detections with the given label are kept.
func (s *Settings) LabelEnabled(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabledLabels[label]
}

// EnabledLabels returns the currently enabled label set.
func (s *Settings) EnabledLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, 0, len(s.enabledLabels))
	for _, label := range SupportedLabels {
		if s.enabledLabels[label] {
			labels = append(labels, label)
		}
	}
	return labels
}

// SetEnabledLabels replaces the enabled label set. Labels outside the
// supported vocabulary are ignored.
func (s *Settings) SetEnabledLabels(labels []string) {
	supported := make(map[string]bool, len(SupportedLabels))
	for _, label := range SupportedLabels {
		supported[label] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabledLabels = make(map[string]bool)
	for _, label := range labels {
		if supported[label] {
			s.enabledLabels[label] = true
		}
	}
}

func (s *Settings) ConfidenceThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confidenceThreshold
}

func (s *Settings) SetConfidenceThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confidenceThreshold = threshold
}

func (s *Settings) TargetFPS() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targetFPS
}

func (s *Settings) SetTargetFPS(fps int) {
	if fps <= 0 {
		fps = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetFPS = fps
}

func (s *Settings) IoUThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iouThreshold
}

func (s *Settings) SetIoUThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iouThreshold = threshold
}

func (s *Settings) StaleTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staleTimeout
}

func (s *Settings) SetStaleTimeout(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleTimeout = timeout
}

func (s *Settings) RetentionDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retentionDays
}

func (s *Settings) SetRetentionDays(days int) {
	if days <= 0 {
		days = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retentionDays = days
}
