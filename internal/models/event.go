package models

import "time"

// Box is an axis-aligned bounding box in source-frame pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectionEvent represents one persisted detection of a physically-new object.
// After creation only the Pinned flag may change.
type DetectionEvent struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Snapshot    string    `json:"snapshot,omitempty"` // Snapshot filename, empty when the write failed
	Box         Box       `json:"box"`
	FrameWidth  int       `json:"frameWidth"`
	FrameHeight int       `json:"frameHeight"`
	Pinned      bool      `json:"pinned"`
}

// EventFilter contains filtering options for querying events.
type EventFilter struct {
	Label         string
	MinConfidence float64
	Since         time.Time
	Limit         int
	Offset        int
}

// EventStats contains aggregate statistics about stored events.
type EventStats struct {
	TotalEvents   int            `json:"total_events"`
	TodayEvents   int            `json:"today_events"`
	TopLabels     map[string]int `json:"top_labels"`
	AvgConfidence float64        `json:"avg_confidence"`
}
