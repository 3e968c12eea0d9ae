package pipeline

import (
	"sync"

	"sentrycam/internal/logger"
	"sentrycam/internal/repository"
	"sentrycam/internal/services/ai"
	"sentrycam/internal/services/settings"
	"sentrycam/internal/services/storage"
)

// Pipeline is the single coordinating owner of the detection core: the frame
// source supervisor, the byte-stream extractor, the detection loop and the
// object tracker. All mutable pipeline state lives here rather than in
// package-level singletons.
type Pipeline struct {
	extractor  *FrameExtractor
	supervisor *Supervisor
	tracker    *Tracker
	detector   *ai.DetectorService
	settings   *settings.Settings
	logger     *logger.Logger

	mu      sync.Mutex
	loop    *DetectionLoop
	running bool
}

func New(repo repository.EventRepository, snapshots *storage.SnapshotService, detector *ai.DetectorService, stg *settings.Settings, broadcaster Broadcaster, resolve SourceResolver, logger *logger.Logger) *Pipeline {
	extractor := NewFrameExtractor()
	return &Pipeline{
		extractor:  extractor,
		supervisor: NewSupervisor(extractor, stg, resolve, logger),
		tracker:    NewTracker(repo, snapshots, stg, broadcaster, logger),
		detector:   detector,
		settings:   stg,
		logger:     logger,
	}
}

// Start spins up the decoder subprocess and the detection loop.
func (p *Pipeline) Start(streamURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	if err := p.supervisor.Start(streamURL); err != nil {
		return err
	}

	p.loop = NewDetectionLoop(p.extractor, p.detector, p.tracker, p.settings, p.logger)
	go p.loop.Run()

	p.running = true
	p.logger.Info("Detection pipeline started for %s", streamURL)
	return nil
}

// Stop shuts the pipeline down: the detection loop finishes its current
// cycle, the subprocess is terminated, and all buffers and tracking state
// are cleared. No pipeline activity survives Stop returning.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.loop.Stop()
	p.loop = nil
	p.supervisor.Stop()
	p.tracker.Reset()

	p.running = false
	p.logger.Info("Detection pipeline stopped")
}

// Running reports whether the pipeline is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
