package pipeline

import (
	"bytes"
	"sync"
)

// JPEG start-of-image and end-of-image markers. The decoder subprocess writes
// concatenated JPEG frames with no framing protocol, so frame boundaries are
// recovered by marker scanning alone.
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FrameExtractor converts a continuously-appended byte stream into discrete
// complete frames, keeping only the most recent one. It never validates frame
// content beyond marker boundaries; undecodable frames are the detection
// loop's concern.
//
// Single writer (the supervisor's stdout reader) and single reader (the
// detection loop); the latest-frame slot has last-value-wins semantics.
type FrameExtractor struct {
	mu     sync.Mutex
	buffer []byte
	latest []byte
}

func NewFrameExtractor() *FrameExtractor {
	return &FrameExtractor{}
}

// Append consumes a chunk of raw stream bytes and extracts every complete
// frame it completes. Each complete frame replaces the latest-frame slot;
// intermediate frames within one chunk are discarded.
func (e *FrameExtractor) Append(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buffer = append(e.buffer, chunk...)

	for {
		start := bytes.Index(e.buffer, jpegSOI)
		if start < 0 {
			// Nothing useful to keep, except a trailing 0xFF that may be
			// the first half of a start marker split across chunks.
			if n := len(e.buffer); n > 0 && e.buffer[n-1] == jpegSOI[0] {
				e.buffer = append(e.buffer[:0], jpegSOI[0])
			} else {
				e.buffer = e.buffer[:0]
			}
			return
		}

		end := bytes.Index(e.buffer[start:], jpegEOI)
		if end < 0 {
			// Frame in progress: drop leading garbage, wait for more data.
			e.buffer = append(e.buffer[:0], e.buffer[start:]...)
			return
		}

		frameEnd := start + end + len(jpegEOI)
		frame := make([]byte, frameEnd-start)
		copy(frame, e.buffer[start:frameEnd])
		e.latest = frame

		e.buffer = append(e.buffer[:0], e.buffer[frameEnd:]...)
	}
}

// Take returns the latest complete frame and clears the slot, so every frame
// is handed out at most once. Returns nil when no new frame has arrived since
// the last call.
func (e *FrameExtractor) Take() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	frame := e.latest
	e.latest = nil
	return frame
}

// Latest returns the latest complete frame without consuming it. Nil when
// nothing has been received yet or the extractor was just reset.
func (e *FrameExtractor) Latest() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Reset discards the accumulation buffer and the latest frame. Called on
// stream stop so no stale frame is ever served afterwards.
func (e *FrameExtractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = nil
	e.latest = nil
}
