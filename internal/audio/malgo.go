package audio

import (
	"fmt"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/petems/audioscope/internal/config"
	"github.com/rs/zerolog"
)

// malgoDevice captures through miniaudio. The data callback runs on
// miniaudio's thread and fills a ring buffer; the polling side peeks
// frames out of it on Acquire and drops them on Release.
type malgoDevice struct {
	cfg      config.AudioConfig
	log      zerolog.Logger
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	name     string
	format   Format

	ring     *RingBuffer
	view     []byte
	acquired uint32
	overruns int
}

// NewMalgo creates a miniaudio-backed device. With cfg.Loopback set it
// captures what the selected playback endpoint renders (WASAPI only).
func NewMalgo(cfg config.AudioConfig, log zerolog.Logger) (Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &malgoDevice{
		cfg:      cfg,
		log:      log.With().Str("component", "malgo").Bool("loopback", cfg.Loopback).Logger(),
		malgoCtx: ctx,
	}, nil
}

func (m *malgoDevice) NegotiateFormat() (Format, error) {
	if m.device != nil {
		return m.format, nil
	}

	sampleRate := m.cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	format := PCM16(sampleRate, m.cfg.Channels)

	deviceType := malgo.Capture
	if m.cfg.Loopback {
		deviceType = malgo.Loopback
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = format.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	if m.cfg.DeviceID != "" {
		info, err := m.findDevice(m.cfg.DeviceID)
		if err != nil {
			return Format{}, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		m.name = info.Name()
	} else {
		m.name = m.defaultDeviceName()
	}

	bufferDuration := m.cfg.BufferDuration
	if bufferDuration <= 0 {
		bufferDuration = 2 * time.Second
	}
	frames := int(bufferDuration.Seconds() * float64(format.SampleRate))
	m.ring = NewRingBuffer(frames * int(format.BlockAlign))

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.ring.Write(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return Format{}, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	m.device = device
	m.format = format

	m.log.Info().
		Str("device", m.name).
		Object("format", format).
		Dur("buffer", bufferDuration).
		Msg("Initialized capture device")

	return format, nil
}

// endpointKind is the device list a capture draws from; loopback taps a
// playback endpoint
func (m *malgoDevice) endpointKind() malgo.DeviceType {
	if m.cfg.Loopback {
		return malgo.Playback
	}
	return malgo.Capture
}

// defaultDeviceName looks up the endpoint miniaudio opens when no ID is set
func (m *malgoDevice) defaultDeviceName() string {
	fallback := "default input"
	if m.cfg.Loopback {
		fallback = "default output (loopback)"
	}

	infos, err := m.malgoCtx.Devices(m.endpointKind())
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to enumerate devices")
		return fallback
	}
	for _, info := range infos {
		if info.IsDefault != 0 {
			return info.Name()
		}
	}
	return fallback
}

func (m *malgoDevice) findDevice(name string) (malgo.DeviceInfo, error) {
	infos, err := m.malgoCtx.Devices(m.endpointKind())
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, info := range infos {
		if info.Name() == name {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("device not found: %s", name)
}

func (m *malgoDevice) Name() string {
	return m.name
}

func (m *malgoDevice) Start() error {
	if m.device == nil {
		return ErrNotNegotiated
	}
	m.ring.Reset()
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

func (m *malgoDevice) Stop() error {
	if m.device == nil {
		return ErrNotNegotiated
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

func (m *malgoDevice) AvailableFrames() (uint32, error) {
	if m.device == nil {
		return 0, ErrNotNegotiated
	}
	if overruns := m.ring.Overruns(); overruns != m.overruns {
		m.log.Warn().Int("overruns", overruns).Msg("Capture buffer overflowed, oldest audio dropped")
		m.overruns = overruns
	}
	return uint32(m.ring.Len() / int(m.format.BlockAlign)), nil
}

func (m *malgoDevice) Acquire(frames uint32) ([]byte, error) {
	if m.device == nil {
		return nil, ErrNotNegotiated
	}
	if m.acquired != 0 {
		return nil, ErrOutstandingView
	}

	size := m.format.Bytes(frames)
	if cap(m.view) < size {
		m.view = make([]byte, size)
	}
	m.view = m.view[:size]

	if n := m.ring.Peek(m.view); n < size {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrNotEnoughFrames, size, n)
	}

	m.acquired = frames
	return m.view, nil
}

func (m *malgoDevice) Release(frames uint32) error {
	if frames != m.acquired {
		return fmt.Errorf("%w: released %d, acquired %d", ErrReleaseMismatch, frames, m.acquired)
	}
	m.ring.Discard(m.format.Bytes(frames))
	m.acquired = 0
	return nil
}

func (m *malgoDevice) Close() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.Warn().Err(err).Msg("malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

func listMalgoDevices(loopback bool) ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	kind := malgo.Capture
	if loopback {
		kind = malgo.Playback
	}

	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, DeviceInfo{
			ID:       info.Name(),
			Name:     info.Name(),
			Default:  info.IsDefault != 0,
			Loopback: loopback,
		})
	}
	return result, nil
}
