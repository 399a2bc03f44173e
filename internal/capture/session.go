package capture

import (
	"fmt"

	"github.com/petems/audioscope/internal/audio"
	"github.com/rs/zerolog"
)

type state int

const (
	stateNew state = iota
	stateStarted
	stateStopped
	stateFailed
)

// Chunk is an owned copy of the frames one poll claimed from the device
type Chunk struct {
	Data   []byte
	Frames uint32
}

// Stats counts what a session has pulled from its device
type Stats struct {
	Polls  uint64
	Chunks uint64
	Frames uint64
	Bytes  uint64
}

// Session drives one device from Start to Stop. It is not safe for
// concurrent use; a single loop polls it.
type Session struct {
	dev     audio.Device
	format  audio.Format
	device  string
	state   state
	running bool // device stream started and not yet stopped
	stats   Stats
	log     zerolog.Logger
}

func NewSession(dev audio.Device, log zerolog.Logger) *Session {
	return &Session{
		dev: dev,
		log: log.With().Str("component", "capture").Logger(),
	}
}

// Start negotiates the stream format and starts the device. The format
// is read once here and never queried again.
func (s *Session) Start() error {
	if s.state != stateNew {
		return newError("start", "", ErrAlreadyStarted)
	}

	format, err := s.dev.NegotiateFormat()
	if err != nil {
		return s.fail("negotiate format", err)
	}
	if err := format.Validate(); err != nil {
		return s.fail("negotiate format", err)
	}

	if err := s.dev.Start(); err != nil {
		return s.fail("start", err)
	}

	s.format = format
	s.device = s.dev.Name()
	s.state = stateStarted
	s.running = true
	s.log.Info().
		Str("device", s.device).
		Object("format", format).
		Msg("Capture started")
	return nil
}

// Format returns the format negotiated by Start
func (s *Session) Format() audio.Format {
	return s.format
}

// DeviceName returns the friendly name of the endpoint Start opened
func (s *Session) DeviceName() string {
	return s.device
}

// Poll claims every frame the device has ready. It never blocks: with
// nothing buffered it returns ok == false and a nil error. The device
// view is copied before it is released, and released exactly once with
// the acquired frame count on every path after a successful Acquire.
func (s *Session) Poll() (chunk Chunk, ok bool, err error) {
	switch s.state {
	case stateStarted:
	case stateFailed:
		return Chunk{}, false, newError("poll", "", ErrSessionFailed)
	default:
		return Chunk{}, false, newError("poll", "", ErrNotStarted)
	}

	s.stats.Polls++

	frames, err := s.dev.AvailableFrames()
	if err != nil {
		return Chunk{}, false, s.fail("available frames", err)
	}
	if frames == 0 {
		return Chunk{}, false, nil
	}

	view, err := s.dev.Acquire(frames)
	if err != nil {
		return Chunk{}, false, s.fail("acquire", err)
	}
	defer func() {
		if rerr := s.dev.Release(frames); rerr != nil {
			chunk, ok = Chunk{}, false
			if err == nil {
				err = s.fail("release", rerr)
			} else {
				s.log.Error().Err(rerr).Uint32("frames", frames).Msg("Release failed after capture error")
			}
		}
	}()

	size := s.format.Bytes(frames)
	if len(view) < size {
		return Chunk{}, false, s.fail("acquire",
			fmt.Errorf("%w: %d bytes for %d frames", ErrShortBuffer, len(view), frames))
	}

	data := make([]byte, size)
	copy(data, view[:size])

	s.stats.Chunks++
	s.stats.Frames += uint64(frames)
	s.stats.Bytes += uint64(size)

	return Chunk{Data: data, Frames: frames}, true, nil
}

// Stop ends the device stream
func (s *Session) Stop() error {
	if s.state != stateStarted {
		return newError("stop", "", ErrNotStarted)
	}
	s.running = false
	if err := s.dev.Stop(); err != nil {
		return s.fail("stop", err)
	}
	s.state = stateStopped
	s.log.Info().
		Uint64("chunks", s.stats.Chunks).
		Uint64("frames", s.stats.Frames).
		Msg("Capture stopped")
	return nil
}

// Close stops a running stream and releases the device. A stream left
// running by a fatal error is still stopped first, best effort.
func (s *Session) Close() error {
	var stopErr error
	switch {
	case s.state == stateStarted:
		stopErr = s.Stop()
	case s.running:
		s.running = false
		if err := s.dev.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop stream after capture error")
		}
	}
	if err := s.dev.Close(); err != nil {
		return newError("close", "", err)
	}
	return stopErr
}

func (s *Session) Stats() Stats {
	return s.stats
}

// fail marks the session unusable. Device state after a failed call is
// unknown, so nothing is retried.
func (s *Session) fail(op string, cause error) error {
	s.state = stateFailed
	err := newError(op, "", cause)
	s.log.Error().Err(cause).Str("op", op).Msg("Capture failed")
	return err
}
