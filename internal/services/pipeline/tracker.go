package pipeline

import (
	"time"

	"github.com/google/uuid"

	"sentrycam/internal/dto"
	"sentrycam/internal/logger"
	"sentrycam/internal/models"
	"sentrycam/internal/repository"
	"sentrycam/internal/services/ai"
	"sentrycam/internal/services/settings"
	"sentrycam/internal/services/storage"
)

// Broadcaster receives live pipeline output. Implemented by the websocket hub.
type Broadcaster interface {
	EmitNewObject(evt *models.DetectionEvent)
	EmitFrameDetections(detections []dto.FrameDetection)
}

// TrackedObject is an in-memory correlation record linking repeated
// detections of the same physical entity to one persisted event. Owned
// exclusively by the Tracker; mutated only from the detection loop.
type TrackedObject struct {
	ID          string // ephemeral tracking id, not the persisted event id
	Label       string
	Box         models.Box
	Confidence  float64
	FirstSeen   time.Time
	LastSeen    time.Time
	EventID     int64
	FrameWidth  int
	FrameHeight int
}

// Tracker correlates per-cycle detections against known objects so a single
// physical event produces exactly one stored record.
type Tracker struct {
	objects     map[string]*TrackedObject
	repo        repository.EventRepository
	snapshots   *storage.SnapshotService
	settings    *settings.Settings
	broadcaster Broadcaster
	logger      *logger.Logger
}

func NewTracker(repo repository.EventRepository, snapshots *storage.SnapshotService, settings *settings.Settings, broadcaster Broadcaster, logger *logger.Logger) *Tracker {
	return &Tracker{
		objects:     make(map[string]*TrackedObject),
		repo:        repo,
		snapshots:   snapshots,
		settings:    settings,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Process runs one tracking cycle over the filtered predictions of a single
// frame. Stale tracks are aged out first: cycles only run while frames flow,
// so after a stream outage a track may be long past its timeout and must not
// be revivable as a continuation. Matching is greedy in prediction order:
// each prediction claims the not-yet-claimed same-label track with the
// highest IoU at or above the threshold. Unmatched predictions become new
// persisted events.
func (t *Tracker) Process(predictions []ai.Prediction, frameWidth, frameHeight int, frameData []byte) {
	now := time.Now()
	t.removeStale(now)

	claimed := make(map[string]bool)
	current := make([]dto.FrameDetection, 0, len(predictions))

	for _, prediction := range predictions {
		if match := t.bestMatch(prediction, claimed); match != nil {
			match.Box = prediction.Box
			match.Confidence = prediction.Confidence
			match.LastSeen = now
			match.FrameWidth = frameWidth
			match.FrameHeight = frameHeight
			claimed[match.ID] = true

			current = append(current, frameDetection(match))
			continue
		}

		obj := t.registerNew(prediction, frameWidth, frameHeight, now, frameData)
		if obj == nil {
			continue
		}
		claimed[obj.ID] = true
		current = append(current, frameDetection(obj))
	}

	t.broadcaster.EmitFrameDetections(current)
}

// bestMatch returns the unclaimed same-label track with the highest IoU
// against the prediction, or nil when no track reaches the threshold. The
// threshold is inclusive. When two tracks tie exactly, map iteration order
// decides; the tie-break is deliberately not deterministic.
func (t *Tracker) bestMatch(prediction ai.Prediction, claimed map[string]bool) *TrackedObject {
	threshold := t.settings.IoUThreshold()

	var best *TrackedObject
	bestIoU := 0.0

	for _, obj := range t.objects {
		if obj.Label != prediction.Label || claimed[obj.ID] {
			continue
		}
		overlap := IoU(obj.Box, prediction.Box)
		if overlap >= threshold && overlap > bestIoU {
			best = obj
			bestIoU = overlap
		}
	}

	return best
}

// registerNew persists a brand-new object and starts tracking it. A snapshot
// write failure downgrades to a null snapshot reference; an event insert
// failure skips tracking entirely so in-memory state never references a row
// that was not stored.
func (t *Tracker) registerNew(prediction ai.Prediction, frameWidth, frameHeight int, now time.Time, frameData []byte) *TrackedObject {
	evt := &models.DetectionEvent{
		Timestamp:   now,
		Label:       prediction.Label,
		Confidence:  prediction.Confidence,
		Box:         prediction.Box,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}

	filename, err := t.snapshots.Save(prediction.Label, now, prediction.Confidence, frameData)
	if err != nil {
		t.logger.Error("Snapshot write failed, storing event without snapshot: %v", err)
	} else {
		evt.Snapshot = filename
	}

	id, err := t.repo.Insert(evt)
	if err != nil {
		t.logger.Error("Failed to persist new %s event: %v", prediction.Label, err)
		return nil
	}
	evt.ID = id

	obj := &TrackedObject{
		ID:          uuid.NewString(),
		Label:       prediction.Label,
		Box:         prediction.Box,
		Confidence:  prediction.Confidence,
		FirstSeen:   now,
		LastSeen:    now,
		EventID:     id,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}
	t.objects[obj.ID] = obj

	t.logger.Info("New object: %s (%.0f%%) at [%d,%d %dx%d], event %d",
		obj.Label, obj.Confidence*100, obj.Box.X, obj.Box.Y, obj.Box.Width, obj.Box.Height, id)

	t.broadcaster.EmitNewObject(evt)
	return obj
}

// removeStale drops tracks not re-matched within the staleness timeout, so a
// departed object that later re-enters the frame is treated as new again.
func (t *Tracker) removeStale(now time.Time) {
	timeout := t.settings.StaleTimeout()
	for id, obj := range t.objects {
		if now.Sub(obj.LastSeen) > timeout {
			delete(t.objects, id)
		}
	}
}

// ActiveCount returns the number of currently tracked objects.
func (t *Tracker) ActiveCount() int {
	return len(t.objects)
}

// Reset drops all tracked objects. Called on pipeline stop.
func (t *Tracker) Reset() {
	t.objects = make(map[string]*TrackedObject)
}

func frameDetection(obj *TrackedObject) dto.FrameDetection {
	return dto.FrameDetection{
		EventID:     obj.EventID,
		Label:       obj.Label,
		Confidence:  obj.Confidence,
		Box:         obj.Box,
		FrameWidth:  obj.FrameWidth,
		FrameHeight: obj.FrameHeight,
	}
}

// IoU computes Intersection-over-Union of two boxes. Zero-overlap pairs
// return 0, identical boxes return 1, and the result is symmetric.
func IoU(a, b models.Box) float64 {
	left := max(a.X, b.X)
	top := max(a.Y, b.Y)
	right := min(a.X+a.Width, b.X+b.Width)
	bottom := min(a.Y+a.Height, b.Y+b.Height)

	if right <= left || bottom <= top {
		return 0
	}

	intersection := float64((right - left) * (bottom - top))
	union := float64(a.Width*a.Height+b.Width*b.Height) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
