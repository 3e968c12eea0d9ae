package retention

import (
	"time"

	"sentrycam/internal/logger"
	"sentrycam/internal/repository"
	"sentrycam/internal/services/settings"
	"sentrycam/internal/services/storage"
)

// compactionThreshold is the number of deleted rows above which the backing
// store is compacted after a purge run.
const compactionThreshold = 100

// PurgeService bounds storage growth: it deletes expired events and their
// snapshot files, reconciles orphaned files left behind by crashes, and
// compacts the store after large deletions. Pinned events are never touched.
type PurgeService struct {
	repo      repository.EventRepository
	snapshots *storage.SnapshotService
	settings  *settings.Settings
	logger    *logger.Logger

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewPurgeService(repo repository.EventRepository, snapshots *storage.SnapshotService, stg *settings.Settings, interval time.Duration, logger *logger.Logger) *PurgeService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PurgeService{
		repo:      repo,
		snapshots: snapshots,
		settings:  stg,
		logger:    logger,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run executes a purge immediately, then on the fixed interval until Stop.
// Blocks; run in a goroutine.
func (s *PurgeService) Run() {
	defer close(s.done)

	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stop:
			return
		}
	}
}

// Stop cancels the purge timer. No purge fires after Stop returns.
func (s *PurgeService) Stop() {
	close(s.stop)
	<-s.done
}

// RunOnce executes a single purge pass. Individual file failures are logged
// and never abort the batch.
func (s *PurgeService) RunOnce() {
	cutoff := time.Now().AddDate(0, 0, -s.settings.RetentionDays())
	s.logger.Info("Purge run started, cutoff %s", cutoff.Format(time.RFC3339))

	s.deleteExpiredSnapshots(cutoff)
	s.deleteOrphanedSnapshots(cutoff)

	deleted, err := s.repo.DeleteExpired(cutoff)
	if err != nil {
		s.logger.Error("Failed to delete expired events: %v", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("Purge removed %d expired events", deleted)
	}

	if deleted > compactionThreshold {
		if err := s.repo.Vacuum(); err != nil {
			s.logger.Error("Store compaction failed: %v", err)
		} else {
			s.logger.Info("Store compacted after purging %d rows", deleted)
		}
	}
}

// deleteExpiredSnapshots removes snapshot files referenced by expired,
// non-pinned events.
func (s *PurgeService) deleteExpiredSnapshots(cutoff time.Time) {
	filenames, err := s.repo.ExpiredSnapshots(cutoff)
	if err != nil {
		s.logger.Error("Failed to list expired snapshots: %v", err)
		return
	}

	for _, filename := range filenames {
		if err := s.snapshots.Delete(filename); err != nil {
			s.logger.Error("Failed to delete snapshot: %v", err)
		}
	}
}

// deleteOrphanedSnapshots removes files older than the cutoff that no stored
// event references - leftovers from crashes between the snapshot write and
// the event insert. Age is parsed from the filename convention.
func (s *PurgeService) deleteOrphanedSnapshots(cutoff time.Time) {
	filenames, err := s.snapshots.ListOlderThan(cutoff)
	if err != nil {
		s.logger.Error("Failed to scan snapshot directory: %v", err)
		return
	}

	for _, filename := range filenames {
		referenced, err := s.repo.SnapshotReferenced(filename)
		if err != nil {
			s.logger.Error("Failed to check snapshot reference for %s: %v", filename, err)
			continue
		}
		if referenced {
			// Still owned by a row; the row side of the purge decides its fate.
			continue
		}
		if err := s.snapshots.Delete(filename); err != nil {
			s.logger.Error("Failed to delete orphaned snapshot: %v", err)
			continue
		}
		s.logger.Info("Deleted orphaned snapshot %s", filename)
	}
}
