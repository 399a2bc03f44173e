package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/audioscope/internal/config"
	"github.com/rs/zerolog"
)

// inputStream is the part of *portaudio.Stream the device drives
type inputStream interface {
	Start() error
	Stop() error
	Close() error
	AvailableToRead() (int, error)
	Read() error
}

// portAudioDevice reads a blocking PortAudio input stream. The stream
// buffer is passed by pointer so every Acquire can resize it to exactly
// the frames being claimed.
type portAudioDevice struct {
	cfg    config.AudioConfig
	log    zerolog.Logger
	name   string
	stream inputStream
	format Format

	samples   []int16
	view      []byte
	acquired  uint32
	overflows int
}

// NewPortAudio creates a PortAudio-backed microphone device
func NewPortAudio(cfg config.AudioConfig, log zerolog.Logger) (Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioDevice{
		cfg: cfg,
		log: log.With().Str("component", "portaudio").Logger(),
	}, nil
}

func (p *portAudioDevice) NegotiateFormat() (Format, error) {
	if p.stream != nil {
		return p.format, nil
	}

	device, err := findPortAudioDevice(p.cfg.DeviceID)
	if err != nil {
		return Format{}, err
	}

	// Validate device has input channels
	if device.MaxInputChannels <= 0 {
		return Format{}, fmt.Errorf("selected device '%s' has no input channels (output-only device)", device.Name)
	}

	channels := min(p.cfg.Channels, device.MaxInputChannels)
	sampleRate := float64(p.cfg.SampleRate)
	if sampleRate == 0 {
		sampleRate = device.DefaultSampleRate
	}

	// High latency gives the host buffer room to hold frames between polls
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, &p.samples)
	if err != nil {
		return Format{}, fmt.Errorf("failed to open audio stream: %w", err)
	}

	p.name = device.Name
	p.stream = stream
	p.format = PCM16(int(sampleRate), channels)

	p.log.Info().
		Str("device", device.Name).
		Object("format", p.format).
		Msg("Opened input stream")

	return p.format, nil
}

func (p *portAudioDevice) Name() string {
	return p.name
}

func (p *portAudioDevice) Start() error {
	if p.stream == nil {
		return ErrNotNegotiated
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (p *portAudioDevice) Stop() error {
	if p.stream == nil {
		return ErrNotNegotiated
	}
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (p *portAudioDevice) AvailableFrames() (uint32, error) {
	if p.stream == nil {
		return 0, ErrNotNegotiated
	}
	n, err := p.stream.AvailableToRead()
	if err != nil {
		return 0, fmt.Errorf("failed to query available frames: %w", err)
	}
	if n < 0 {
		return 0, nil
	}
	return uint32(n), nil
}

// Acquire reads frames from the stream and exposes them as little-endian
// bytes in a buffer the device reuses after Release. An input overflow
// still fills the buffer, so it is logged and the frames are returned.
func (p *portAudioDevice) Acquire(frames uint32) ([]byte, error) {
	if p.stream == nil {
		return nil, ErrNotNegotiated
	}
	if p.acquired != 0 {
		return nil, ErrOutstandingView
	}

	channels := int(p.format.Channels)
	n := int(frames) * channels
	if cap(p.samples) < n {
		p.samples = make([]int16, n)
	}
	p.samples = p.samples[:n]

	if err := p.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("failed to read audio stream: %w", err)
		}
		p.overflows++
		p.log.Warn().Int("overflows", p.overflows).Msg("Input overflowed, audio has a gap")
	}

	size := p.format.Bytes(frames)
	if cap(p.view) < size {
		p.view = make([]byte, size)
	}
	p.view = p.view[:size]
	for i, s := range p.samples {
		binary.LittleEndian.PutUint16(p.view[i*2:], uint16(s))
	}

	p.acquired = frames
	return p.view, nil
}

func (p *portAudioDevice) Release(frames uint32) error {
	if frames != p.acquired {
		return fmt.Errorf("%w: released %d, acquired %d", ErrReleaseMismatch, frames, p.acquired)
	}
	p.acquired = 0
	return nil
}

func (p *portAudioDevice) Close() error {
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			p.log.Warn().Err(err).Msg("Failed to close stream")
		}
		p.stream = nil
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

func findPortAudioDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func listPortAudioDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]DeviceInfo, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, DeviceInfo{
				ID:      d.Name,
				Name:    d.Name,
				Default: defaultDevice != nil && d.Name == defaultDevice.Name,
			})
		}
	}

	return result, nil
}
