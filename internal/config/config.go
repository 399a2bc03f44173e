package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by audio.backend
const (
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Spectrum SpectrumConfig `mapstructure:"spectrum"`
	Driver   DriverConfig   `mapstructure:"driver"`
	UI       UIConfig       `mapstructure:"ui"`
}

type AudioConfig struct {
	Backend        string        `mapstructure:"backend"`   // "malgo" or "portaudio"
	DeviceID       string        `mapstructure:"device_id"` // device name, empty for the default device
	Loopback       bool          `mapstructure:"loopback"`
	SampleRate     int           `mapstructure:"sample_rate"`
	Channels       int           `mapstructure:"channels"`
	BufferDuration time.Duration `mapstructure:"buffer_duration"`
}

type SpectrumConfig struct {
	WindowSize   int     `mapstructure:"window_size"`
	MaxBacklog   int     `mapstructure:"max_backlog"`
	MinFrequency float64 `mapstructure:"min_frequency"`
	MaxFrequency float64 `mapstructure:"max_frequency"`
	GridStep     float64 `mapstructure:"grid_step"`
	GridPoints   int     `mapstructure:"grid_points"`
}

type DriverConfig struct {
	IdleDelay time.Duration `mapstructure:"idle_delay"`
}

type UIConfig struct {
	FrameRate float64 `mapstructure:"frame_rate"`
	MaxPower  float64 `mapstructure:"max_power"`
	Decibels  bool    `mapstructure:"decibels"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:        BackendMalgo,
			DeviceID:       "",
			Loopback:       runtime.GOOS == "windows", // loopback needs WASAPI
			SampleRate:     48000,
			Channels:       2,
			BufferDuration: 2 * time.Second,
		},
		Spectrum: DefaultSpectrum(),
		Driver: DriverConfig{
			IdleDelay: 100 * time.Microsecond,
		},
		UI: UIConfig{
			FrameRate: 30,
			MaxPower:  1_000_000,
		},
	}
}

// DefaultSpectrum returns the analysis defaults: a 2048 sample window and
// 69 points every 200 Hz inside 60-15000 Hz.
func DefaultSpectrum() SpectrumConfig {
	return SpectrumConfig{
		WindowSize:   2048,
		MaxBacklog:   8 * 2048,
		MinFrequency: 60,
		MaxFrequency: 15_000,
		GridStep:     200,
		GridPoints:   69,
	}
}

// SetDefaults registers every key of Default on v
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.device_id", d.Audio.DeviceID)
	v.SetDefault("audio.loopback", d.Audio.Loopback)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.buffer_duration", d.Audio.BufferDuration)

	v.SetDefault("spectrum.window_size", d.Spectrum.WindowSize)
	v.SetDefault("spectrum.max_backlog", d.Spectrum.MaxBacklog)
	v.SetDefault("spectrum.min_frequency", d.Spectrum.MinFrequency)
	v.SetDefault("spectrum.max_frequency", d.Spectrum.MaxFrequency)
	v.SetDefault("spectrum.grid_step", d.Spectrum.GridStep)
	v.SetDefault("spectrum.grid_points", d.Spectrum.GridPoints)

	v.SetDefault("driver.idle_delay", d.Driver.IdleDelay)

	v.SetDefault("ui.frame_rate", d.UI.FrameRate)
	v.SetDefault("ui.max_power", d.UI.MaxPower)
	v.SetDefault("ui.decibels", d.UI.Decibels)
}

// Prepare configures v with defaults, the config file search path and
// AUDIOSCOPE_ environment overrides. An explicit file wins over the
// search path.
func Prepare(v *viper.Viper, file string) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
		v.SetConfigName("audioscope")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AUDIOSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the config file if one exists and decodes v into a validated Config
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values the capture pipeline cannot run without
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case BackendMalgo, BackendPortAudio:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}
	if c.Audio.Loopback && c.Audio.Backend != BackendMalgo {
		return fmt.Errorf("loopback capture requires the %s backend", BackendMalgo)
	}
	if c.Audio.SampleRate < 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", c.Audio.Channels)
	}

	s := c.Spectrum
	if s.WindowSize < 2 {
		return fmt.Errorf("invalid window size: %d", s.WindowSize)
	}
	if s.MaxBacklog != 0 && s.MaxBacklog < s.WindowSize {
		return fmt.Errorf("max backlog %d is smaller than the window size %d", s.MaxBacklog, s.WindowSize)
	}
	if s.MinFrequency < 0 || s.MaxFrequency <= s.MinFrequency {
		return fmt.Errorf("invalid frequency range: %g-%g Hz", s.MinFrequency, s.MaxFrequency)
	}
	if s.GridStep <= 0 || s.GridPoints <= 0 {
		return fmt.Errorf("invalid frequency grid: %d points every %g Hz", s.GridPoints, s.GridStep)
	}

	if c.Driver.IdleDelay < 0 {
		return fmt.Errorf("invalid idle delay: %s", c.Driver.IdleDelay)
	}
	if c.UI.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate: %g", c.UI.FrameRate)
	}

	return nil
}

// Save writes the settings held by v to path, or to the default location
// when path is empty.
func Save(v *viper.Viper, path string) (string, error) {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

// ConfigPath returns the platform-specific config file path
func ConfigPath() string {
	return filepath.Join(configDir(), "audioscope.yaml")
}

func configDir() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audioscope")
}
