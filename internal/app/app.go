package app

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sentrycam/internal/config"
	"sentrycam/internal/logger"
	"sentrycam/internal/repository/sqlite"
	"sentrycam/internal/routes"
	"sentrycam/internal/services/ai"
	"sentrycam/internal/services/pipeline"
	"sentrycam/internal/services/retention"
	"sentrycam/internal/services/settings"
	"sentrycam/internal/services/storage"
	ws "sentrycam/internal/services/websocket"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	repo      *sqlite.EventRepository
	snapshots *storage.SnapshotService
	detector  *ai.DetectorService
	settings  *settings.Settings
	hub       *ws.HubService
	pipeline  *pipeline.Pipeline
	purge     *retention.PurgeService
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	repo := sqlite.NewEventRepository(db)

	snapshots, err := storage.NewSnapshotService(cfg.SnapshotDirectory, log)
	if err != nil {
		return nil, err
	}

	stg := settings.FromConfig(cfg)
	detector := ai.NewDetectorService(cfg, log)
	hub := ws.NewHubService(log)

	resolve := func() (string, error) { return cfg.StreamURL, nil }
	pipe := pipeline.New(repo, snapshots, detector, stg, hub, resolve, log)

	purgeInterval := time.Duration(cfg.PurgeIntervalMin) * time.Minute
	purge := retention.NewPurgeService(repo, snapshots, stg, purgeInterval, log)

	return &App{
		config:    cfg,
		logger:    log,
		db:        db,
		repo:      repo,
		snapshots: snapshots,
		detector:  detector,
		settings:  stg,
		hub:       hub,
		pipeline:  pipe,
		purge:     purge,
	}, nil
}

func (a *App) Run() error {
	// Start background services
	go a.hub.Run()
	go a.purge.Run()

	if err := a.pipeline.Start(a.config.StreamURL); err != nil {
		a.logger.Error("Pipeline did not start: %v", err)
	}

	go a.handleShutdown()

	router := routes.SetupRoutes(a.repo, a.snapshots, a.hub, a.pipeline, a.settings, a.config, a.logger)

	a.logger.Info("🚀 Detection server listening on :%d", a.config.Port)
	a.logger.Info("📹 Stream: %s", a.config.StreamURL)
	a.logger.Info("📁 Snapshots: %s", a.config.SnapshotDirectory)
	a.logger.Info("🤖 Model: %s", a.config.ModelPath)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}

// handleShutdown tears the pipeline down cleanly on SIGINT/SIGTERM: the
// detection loop exits after its current cycle, the decoder subprocess is
// killed, the purge timer is cancelled and no callback fires afterwards.
func (a *App) handleShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("Shutting down...")
	a.pipeline.Stop()
	a.purge.Stop()
	a.hub.Stop()
	a.detector.Close()
	a.db.Close()
	os.Exit(0)
}
