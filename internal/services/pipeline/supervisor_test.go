package pipeline

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"sentrycam/internal/config"
	"sentrycam/internal/logger"
	"sentrycam/internal/services/settings"
)

// newTestSupervisor builds a supervisor around a stand-in decoder command so
// lifecycle behavior is testable without ffmpeg or a live stream.
func newTestSupervisor(t *testing.T, command string, delay time.Duration, resolve SourceResolver) *Supervisor {
	t.Helper()

	cfg := &config.Config{
		LogDirectory:  t.TempDir(),
		TargetFPS:     5,
		EnabledLabels: []string{"person"},
	}
	log := logger.NewLogger(cfg)

	s := NewSupervisor(NewFrameExtractor(), settings.FromConfig(cfg), resolve, log)
	s.command = command
	s.restartDelay = delay
	return s
}

func TestDecoderArgs(t *testing.T) {
	got := decoderArgs("rtsp://camera.local:554/stream", 5)

	expected := []string{
		"-rtsp_transport", "tcp",
		"-i", "rtsp://camera.local:554/stream",
		"-vf", "fps=5",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-an",
		"-",
	}

	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Decoder args mismatch:\ngot      %v\nexpected %v", got, expected)
	}
}

func TestDecoderArgs_FrameRate(t *testing.T) {
	got := decoderArgs("rtsp://cam/live", 12)

	for i, arg := range got {
		if arg == "-vf" {
			if got[i+1] != "fps=12" {
				t.Errorf("Expected fps=12 filter, got %s", got[i+1])
			}
			return
		}
	}
	t.Fatal("No -vf filter in decoder args")
}

func TestSupervisor_RestartAfterExit(t *testing.T) {
	var resolves atomic.Int32
	resolve := func() (string, error) {
		resolves.Add(1)
		return "rtsp://cam/live", nil
	}

	// "true" ignores the decoder args and exits immediately, standing in
	// for a decoder that dies unexpectedly.
	s := newTestSupervisor(t, "true", 20*time.Millisecond, resolve)

	if err := s.Start("rtsp://cam/live"); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for resolves.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if resolves.Load() == 0 {
		t.Fatal("Decoder exit did not trigger a restart")
	}

	s.Stop()

	// Let any restart already past the delay observe the stop, then verify
	// no further restarts fire.
	time.Sleep(100 * time.Millisecond)
	settled := resolves.Load()
	time.Sleep(100 * time.Millisecond)
	if got := resolves.Load(); got != settled {
		t.Errorf("Restarts continued after Stop: %d -> %d", settled, got)
	}
	if s.Running() {
		t.Error("Supervisor still reports running after Stop")
	}
}

func TestSupervisor_NoConcurrentSpawn(t *testing.T) {
	var resolves atomic.Int32
	resolve := func() (string, error) {
		resolves.Add(1)
		return "rtsp://cam/live", nil
	}

	// "yes" echoes the decoder args forever, standing in for a healthy
	// long-lived decoder.
	s := newTestSupervisor(t, "yes", time.Hour, resolve)

	if err := s.Start("rtsp://cam/live"); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	// A restart racing a live subprocess must be a no-op.
	s.restart()

	if resolves.Load() != 0 {
		t.Errorf("Restart spawned a second decoder beside a live one (%d resolves)", resolves.Load())
	}
	if !s.Running() {
		t.Error("Supervisor should still be running")
	}
}

func TestSupervisor_NoFrameSurvivesStop(t *testing.T) {
	// "echo" prints its args once: embedding a complete frame in the stream
	// URL makes the stand-in decoder emit one valid frame and exit.
	frame := string(jpegSOI) + "frame-bytes" + string(jpegEOI)
	s := newTestSupervisor(t, "echo", time.Hour, func() (string, error) { return frame, nil })

	if err := s.Start(frame); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.extractor.Latest() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.extractor.Latest() == nil {
		t.Fatal("Decoder output never produced a frame")
	}

	s.Stop()

	if got := s.extractor.Take(); got != nil {
		t.Errorf("Frame from the stopped session survived Stop: %q", got)
	}
}

func TestSupervisor_StartTwiceIsNoop(t *testing.T) {
	s := newTestSupervisor(t, "yes", time.Hour, func() (string, error) { return "rtsp://cam/live", nil })

	if err := s.Start("rtsp://cam/live"); err != nil {
		t.Fatalf("Failed to start supervisor: %v", err)
	}
	defer s.Stop()

	s.mu.Lock()
	first := s.cmd
	s.mu.Unlock()

	if err := s.Start("rtsp://cam/live"); err != nil {
		t.Fatalf("Second start failed: %v", err)
	}

	s.mu.Lock()
	second := s.cmd
	s.mu.Unlock()
	if second != first {
		t.Error("Second start replaced the live subprocess")
	}
}
