package audio

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/audioscope/internal/config"
	"github.com/rs/zerolog"
)

func TestListPortAudioDevices(t *testing.T) {
	devices, err := ListDevices(config.AudioConfig{Backend: config.BackendPortAudio})
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No audio input devices available")
	}

	for _, dev := range devices {
		t.Logf("Device %s (default: %v)", dev.Name, dev.Default)
		if dev.ID == "" {
			t.Error("device ID should not be empty")
		}
	}
}

func TestPortAudioRequiresNegotiation(t *testing.T) {
	dev, err := NewPortAudio(config.Default().Audio, zerolog.Nop())
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer dev.Close()

	if err := dev.Start(); !errors.Is(err, ErrNotNegotiated) {
		t.Errorf("expected ErrNotNegotiated from Start, got %v", err)
	}
	if _, err := dev.AvailableFrames(); !errors.Is(err, ErrNotNegotiated) {
		t.Errorf("expected ErrNotNegotiated from AvailableFrames, got %v", err)
	}
	if _, err := dev.Acquire(1); !errors.Is(err, ErrNotNegotiated) {
		t.Errorf("expected ErrNotNegotiated from Acquire, got %v", err)
	}
}

func TestPortAudioCaptureRoundTrip(t *testing.T) {
	cfg := config.Default().Audio
	cfg.Backend = config.BackendPortAudio
	cfg.Loopback = false
	cfg.Channels = 1

	dev, err := NewPortAudio(cfg, zerolog.Nop())
	if err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer dev.Close()

	format, err := dev.NegotiateFormat()
	if err != nil {
		t.Skipf("No usable input device: %v", err)
	}
	if format.BlockAlign != 2 {
		t.Fatalf("expected mono 16-bit block align 2, got %d", format.BlockAlign)
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer dev.Stop()

	frames, err := dev.AvailableFrames()
	if err != nil {
		t.Fatalf("AvailableFrames failed: %v", err)
	}
	if frames == 0 {
		t.Skip("no frames buffered yet")
	}

	view, err := dev.Acquire(frames)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(view) != format.Bytes(frames) {
		t.Errorf("expected %d bytes, got %d", format.Bytes(frames), len(view))
	}
	if err := dev.Release(frames + 1); !errors.Is(err, ErrReleaseMismatch) {
		t.Errorf("expected ErrReleaseMismatch, got %v", err)
	}
	if err := dev.Release(frames); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

// fakeStream stands in for a started PortAudio input stream
type fakeStream struct {
	read func() error
}

func (f *fakeStream) Start() error                  { return nil }
func (f *fakeStream) Stop() error                   { return nil }
func (f *fakeStream) Close() error                  { return nil }
func (f *fakeStream) AvailableToRead() (int, error) { return 4, nil }
func (f *fakeStream) Read() error                   { return f.read() }

func newFakePortAudio(readErr error) *portAudioDevice {
	stream := &fakeStream{}
	dev := &portAudioDevice{
		log:    zerolog.Nop(),
		name:   "Built-in Microphone",
		stream: stream,
		format: PCM16(48000, 1),
	}
	stream.read = func() error {
		for i := range dev.samples {
			dev.samples[i] = int16(i + 1)
		}
		return readErr
	}
	return dev
}

func TestPortAudioOverflowKeepsFrames(t *testing.T) {
	dev := newFakePortAudio(portaudio.InputOverflowed)

	for round := 1; round <= 2; round++ {
		view, err := dev.Acquire(4)
		if err != nil {
			t.Fatalf("round %d: overflow should not fail Acquire: %v", round, err)
		}
		if len(view) != 8 {
			t.Fatalf("round %d: expected 8 bytes, got %d", round, len(view))
		}
		for i := 0; i < 4; i++ {
			if got := int16(binary.LittleEndian.Uint16(view[2*i:])); got != int16(i+1) {
				t.Errorf("round %d: sample %d = %d, want %d", round, i, got, i+1)
			}
		}
		if err := dev.Release(4); err != nil {
			t.Fatalf("round %d: Release failed: %v", round, err)
		}
	}

	if dev.overflows != 2 {
		t.Errorf("expected 2 overflows counted, got %d", dev.overflows)
	}
}

func TestPortAudioReadErrorIsFatal(t *testing.T) {
	dev := newFakePortAudio(portaudio.DeviceUnavailable)

	if _, err := dev.Acquire(4); !errors.Is(err, portaudio.DeviceUnavailable) {
		t.Fatalf("expected DeviceUnavailable, got %v", err)
	}
	if dev.acquired != 0 {
		t.Errorf("failed read should leave nothing acquired, got %d", dev.acquired)
	}
	if dev.Name() != "Built-in Microphone" {
		t.Errorf("unexpected name %q", dev.Name())
	}
}
