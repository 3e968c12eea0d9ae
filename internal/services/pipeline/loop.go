package pipeline

import (
	"time"

	"sentrycam/internal/logger"
	"sentrycam/internal/services/ai"
	"sentrycam/internal/services/settings"
)

// DetectionLoop runs inference at a capped rate. Exactly one cycle is ever
// in flight: the loop is a sequential cooperative cycle that sleeps off the
// remainder of each interval and degrades to back-to-back execution when
// inference is slower than the target rate.
type DetectionLoop struct {
	extractor *FrameExtractor
	detector  *ai.DetectorService
	tracker   *Tracker
	settings  *settings.Settings
	logger    *logger.Logger

	stop chan struct{}
	done chan struct{}
}

func NewDetectionLoop(extractor *FrameExtractor, detector *ai.DetectorService, tracker *Tracker, settings *settings.Settings, logger *logger.Logger) *DetectionLoop {
	return &DetectionLoop{
		extractor: extractor,
		detector:  detector,
		tracker:   tracker,
		settings:  settings,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run executes cycles until Stop is called. Blocks; run in a goroutine.
// A DetectionLoop is single-use: the pipeline builds a fresh one per start.
func (l *DetectionLoop) Run() {
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		start := time.Now()
		l.cycle()

		interval := time.Second / time.Duration(l.settings.TargetFPS())
		if remaining := interval - time.Since(start); remaining > 0 {
			select {
			case <-l.stop:
				return
			case <-time.After(remaining):
			}
		}
	}
}

// Stop signals the loop to exit after its current cycle and waits for it.
func (l *DetectionLoop) Stop() {
	close(l.stop)
	<-l.done
}

// cycle processes at most one frame. Decode or inference errors skip the
// cycle; the loop never stops because of a single bad frame.
func (l *DetectionLoop) cycle() {
	frameData := l.extractor.Take()
	if frameData == nil {
		return
	}

	predictions, frameWidth, frameHeight, err := l.detector.Detect(frameData)
	if err != nil {
		l.logger.Warning("Skipping frame: %v", err)
		return
	}

	filtered := l.filter(predictions)
	l.tracker.Process(filtered, frameWidth, frameHeight, frameData)
}

// filter drops predictions below the confidence threshold or outside the
// enabled label set.
func (l *DetectionLoop) filter(predictions []ai.Prediction) []ai.Prediction {
	threshold := l.settings.ConfidenceThreshold()

	var kept []ai.Prediction
	for _, p := range predictions {
		if p.Confidence < threshold {
			continue
		}
		if !l.settings.LabelEnabled(p.Label) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
