package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"sentrycam/internal/logger"
	"sentrycam/internal/services/settings"
)

const defaultRestartDelay = 3 * time.Second

// SourceResolver returns the current stream URL. It is re-invoked before
// every restart so a changed camera address is picked up without operator
// intervention.
type SourceResolver func() (string, error)

// Supervisor owns the long-lived decoding subprocess. It spawns ffmpeg
// reading the stream over TCP and writing concatenated JPEG frames to stdout
// at the configured rate, feeds that stream into the extractor, and restarts
// the process with a fixed backoff whenever it exits while the pipeline is
// meant to be running.
type Supervisor struct {
	extractor *FrameExtractor
	settings  *settings.Settings
	resolve   SourceResolver
	logger    *logger.Logger

	command      string
	restartDelay time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	readers sync.WaitGroup
}

func NewSupervisor(extractor *FrameExtractor, settings *settings.Settings, resolve SourceResolver, logger *logger.Logger) *Supervisor {
	return &Supervisor{
		extractor:    extractor,
		settings:     settings,
		resolve:      resolve,
		logger:       logger,
		command:      "ffmpeg",
		restartDelay: defaultRestartDelay,
	}
}

// decoderArgs builds the ffmpeg invocation: TCP stream transport, a frame
// rate filter matching the inference rate, single-JPEG-per-frame output on
// stdout, no audio.
func decoderArgs(streamURL string, fps int) []string {
	return []string{
		"-rtsp_transport", "tcp",
		"-i", streamURL,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-an",
		"-",
	}
}

// Start spawns the decoding subprocess for the given stream URL. Calling
// Start on a running supervisor is a no-op.
func (s *Supervisor) Start(streamURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	if err := s.spawnLocked(streamURL); err != nil {
		s.running = false
		return err
	}
	return nil
}

// spawnLocked starts one subprocess and its reader goroutines. Callers must
// hold s.mu.
func (s *Supervisor) spawnLocked(streamURL string) error {
	cmd := exec.Command(s.command, decoderArgs(streamURL, s.settings.TargetFPS())...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open decoder stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open decoder stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start decoder: %w", err)
	}

	s.cmd = cmd
	s.logger.Info("Decoder started for %s (pid %d)", streamURL, cmd.Process.Pid)

	s.readers.Add(2)
	go s.consumeStdout(stdout)
	go s.consumeStderr(stderr)
	go s.waitAndRestart(cmd)

	return nil
}

// consumeStdout feeds raw decoder output into the frame extractor.
func (s *Supervisor) consumeStdout(stdout io.ReadCloser) {
	defer s.readers.Done()

	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			s.extractor.Append(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// consumeStderr drains decoder diagnostics into the log. Stderr is
// informational only; it never influences pipeline behavior.
func (s *Supervisor) consumeStderr(stderr io.ReadCloser) {
	defer s.readers.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.logger.Info("decoder: %s", scanner.Text())
	}
}

// waitAndRestart reaps the subprocess and schedules exactly one restart if
// the supervisor is still meant to be running. The exited process is fully
// waited on before a replacement is considered authoritative, so restarts
// never leave zombies.
func (s *Supervisor) waitAndRestart(cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	if !s.running || s.cmd != cmd {
		s.mu.Unlock()
		return
	}
	s.cmd = nil
	s.mu.Unlock()

	if err != nil {
		s.logger.Warning("Decoder exited unexpectedly: %v - restarting in %s", err, s.restartDelay)
	} else {
		s.logger.Warning("Decoder exited - restarting in %s", s.restartDelay)
	}

	time.Sleep(s.restartDelay)
	s.restart()
}

// restart re-resolves the source URL and spawns a replacement subprocess.
// A live subprocess or a stopped supervisor makes this a no-op, so at most
// one decoder ever runs. Repeated spawn failures keep retrying with the
// same fixed delay.
func (s *Supervisor) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cmd != nil {
		return
	}

	streamURL, err := s.resolve()
	if err == nil {
		err = s.spawnLocked(streamURL)
	}
	if err != nil {
		s.logger.Error("Failed to restart decoder: %v - retrying in %s", err, s.restartDelay)
		go func() {
			time.Sleep(s.restartDelay)
			s.restart()
		}()
	}
}

// Stop terminates the subprocess, waits for the reader goroutines to drain,
// and resets all extraction state. A reader may hold an unappended chunk
// when the kill lands; resetting before it finishes would let a frame from
// the stopped session survive into the next one.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.running = false
	cmd := s.cmd
	s.cmd = nil
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			s.logger.Warning("Failed to kill decoder process: %v", err)
		}
		s.logger.Info("Decoder stopped")
	}

	s.readers.Wait()
	s.extractor.Reset()
}

// Running reports whether the supervisor is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
