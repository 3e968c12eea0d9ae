package dto

import "sentrycam/internal/models"

// FrameDetection describes one currently-visible tracked object within a
// detection cycle, for live display.
type FrameDetection struct {
	EventID     int64      `json:"eventId"`
	Label       string     `json:"label"`
	Confidence  float64    `json:"confidence"`
	Box         models.Box `json:"box"`
	FrameWidth  int        `json:"frameWidth"`
	FrameHeight int        `json:"frameHeight"`
}

// NewObjectMessage is broadcast once per newly tracked object.
type NewObjectMessage struct {
	Type  string                 `json:"type"` // always "new_object"
	Event *models.DetectionEvent `json:"event"`
}

// FrameDetectionsMessage is broadcast once per detection cycle with every
// matched or new object in the current frame.
type FrameDetectionsMessage struct {
	Type       string           `json:"type"` // always "detections"
	Detections []FrameDetection `json:"detections"`
}
