package audio

import (
	"errors"
	"fmt"

	"github.com/petems/audioscope/internal/config"
	"github.com/rs/zerolog"
)

// WAVE format tags
const (
	FormatPCM        uint16 = 1
	FormatIEEEFloat  uint16 = 3
	FormatExtensible uint16 = 0xFFFE
)

var (
	ErrNotNegotiated   = errors.New("format not negotiated")
	ErrOutstandingView = errors.New("previous buffer not released")
	ErrReleaseMismatch = errors.New("release count does not match acquired frames")
	ErrNotEnoughFrames = errors.New("fewer frames available than requested")
)

// Format describes the stream a device delivers. It is fixed once the
// stream starts.
type Format struct {
	FormatTag      uint16 `json:"format_tag"`
	Channels       uint16 `json:"channels"`
	SampleRate     uint32 `json:"sample_rate"`
	AvgBytesPerSec uint32 `json:"avg_bytes_per_sec"`
	BlockAlign     uint16 `json:"block_align"` // bytes per frame across all channels
	BitsPerSample  uint16 `json:"bits_per_sample"`
	ExtraSize      uint16 `json:"extra_size"`
}

// PCM16 returns an interleaved signed 16-bit PCM format
func PCM16(sampleRate, channels int) Format {
	blockAlign := uint16(channels * 2)
	return Format{
		FormatTag:      FormatPCM,
		Channels:       uint16(channels),
		SampleRate:     uint32(sampleRate),
		AvgBytesPerSec: uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:     blockAlign,
		BitsPerSample:  16,
	}
}

// Validate reports formats no frame arithmetic can be done with
func (f Format) Validate() error {
	if f.BlockAlign == 0 {
		return fmt.Errorf("invalid format: block align is zero")
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("invalid format: sample rate is zero")
	}
	return nil
}

// Bytes returns the byte length of frames frames
func (f Format) Bytes(frames uint32) int {
	return int(frames) * int(f.BlockAlign)
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", tagName(f.FormatTag), f.SampleRate, f.Channels, f.BitsPerSample)
}

// MarshalZerologObject lets a Format be logged with Event.Object
func (f Format) MarshalZerologObject(e *zerolog.Event) {
	e.Str("tag", tagName(f.FormatTag)).
		Uint32("sample_rate", f.SampleRate).
		Uint16("channels", f.Channels).
		Uint16("block_align", f.BlockAlign).
		Uint16("bits_per_sample", f.BitsPerSample)
}

func tagName(tag uint16) string {
	switch tag {
	case FormatPCM:
		return "PCM"
	case FormatIEEEFloat:
		return "Float"
	case FormatExtensible:
		return "Extensible"
	default:
		return fmt.Sprintf("Tag(%#x)", tag)
	}
}

// Device is the driver boundary a capture session polls. Acquire hands
// out a view of the device's own memory which stays valid only until
// the matching Release.
type Device interface {
	NegotiateFormat() (Format, error)
	// Name is the endpoint's friendly name, known once the format is negotiated
	Name() string
	Start() error
	Stop() error
	// AvailableFrames returns how many frames can be acquired without blocking
	AvailableFrames() (uint32, error)
	Acquire(frames uint32) ([]byte, error)
	Release(frames uint32) error
	Close() error
}

// DeviceInfo represents an audio endpoint
type DeviceInfo struct {
	ID       string
	Name     string
	Default  bool
	Loopback bool
}

// Open creates the device selected by cfg.Backend
func Open(cfg config.AudioConfig, log zerolog.Logger) (Device, error) {
	switch cfg.Backend {
	case config.BackendMalgo:
		return NewMalgo(cfg, log)
	case config.BackendPortAudio:
		if cfg.Loopback {
			return nil, fmt.Errorf("loopback capture is not supported by %s", cfg.Backend)
		}
		return NewPortAudio(cfg, log)
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", cfg.Backend)
	}
}

// ListDevices enumerates the endpoints the configured backend can capture from
func ListDevices(cfg config.AudioConfig) ([]DeviceInfo, error) {
	switch cfg.Backend {
	case config.BackendMalgo:
		return listMalgoDevices(cfg.Loopback)
	case config.BackendPortAudio:
		return listPortAudioDevices()
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", cfg.Backend)
	}
}
