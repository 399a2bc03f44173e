package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/audioscope/internal/app"
	"github.com/petems/audioscope/internal/audio"
	"github.com/petems/audioscope/internal/capture"
	"github.com/petems/audioscope/internal/config"
	"github.com/petems/audioscope/internal/logging"
	"github.com/petems/audioscope/internal/permissions"
	"github.com/petems/audioscope/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cli holds state shared by every command
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "audioscope",
		Short: "Live audio spectrum monitor",
		Long: `audioscope captures a desktop audio endpoint (loopback or microphone),
cuts it into fixed-size analysis windows and shows the frequency
spectrum in the terminal.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runViewer(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "",
		"config file (default is "+config.ConfigPath()+")")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("backend", config.BackendMalgo, "audio backend (malgo, portaudio)")
	flags.StringP("device", "d", "", "capture device name (default device when empty)")
	flags.Bool("loopback", false, "capture what an output device plays (malgo on Windows)")
	flags.Int("sample-rate", 48000, "requested sample rate in Hz")
	flags.Int("channels", 2, "requested channel count")

	local := rootCmd.Flags()
	local.Int("window", 2048, "analysis window size in samples")
	local.Float64("fps", 30, "redraw rate")
	local.Bool("db", false, "start with a logarithmic power axis")

	c.bind("log_level", flags.Lookup("log-level"))
	c.bind("audio.backend", flags.Lookup("backend"))
	c.bind("audio.device_id", flags.Lookup("device"))
	c.bind("audio.loopback", flags.Lookup("loopback"))
	c.bind("audio.sample_rate", flags.Lookup("sample-rate"))
	c.bind("audio.channels", flags.Lookup("channels"))
	c.bind("spectrum.window_size", local.Lookup("window"))
	c.bind("ui.frame_rate", local.Lookup("fps"))
	c.bind("ui.decibels", local.Lookup("db"))

	rootCmd.AddCommand(
		newRecordCmd(c),
		newDevicesCmd(c),
		newTrayCmd(c),
		newConfigCmd(c),
	)

	return rootCmd
}

// bind ties a config key to a flag so an explicit flag beats file and environment
func (c *cli) bind(key string, f *pflag.Flag) {
	if err := c.v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

// loadConfig reads file, environment and flags into c.cfg
func (c *cli) loadConfig() error {
	config.Prepare(c.v, c.configFile)

	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *cli) logger(console bool) zerolog.Logger {
	return logging.New(logging.Options{Level: c.cfg.LogLevel, Console: console})
}

// runViewer shows the live spectrum in the terminal
func (c *cli) runViewer(parent context.Context) error {
	// the TUI owns the terminal, log to file only
	log := c.logger(false)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := openSession(c.cfg.Audio, log)
	if err != nil {
		return err
	}
	defer session.Close()

	program := ui.NewProgram(ui.NewModel(c.cfg.UI, deviceLabel(c.cfg.Audio)))
	pub := ui.NewPublisher(program)

	application := app.New(app.Config{
		Source:        session,
		Publisher:     pub,
		StatusUpdater: pub,
		Config:        c.cfg,
		Logger:        log,
	})

	errCh := make(chan error, 1)
	go func() {
		pub.SetDevice(session.DeviceName())
		pub.SetFormat(session.Format().String())
		err := application.Run(ctx)
		errCh <- err
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("terminal UI: %w", err)
	}

	cancel()
	if err := <-errCh; err != nil {
		return err
	}

	stats := session.Stats()
	log.Info().
		Uint64("frames", stats.Frames).
		Uint64("published", application.Stats().Published).
		Msg("Viewer closed")
	return nil
}

// openSession opens the configured device and starts capturing
func openSession(cfg config.AudioConfig, log zerolog.Logger) (*capture.Session, error) {
	if !cfg.Loopback {
		// macOS requires explicit microphone approval before capture works
		if err := permissions.EnsureMicrophone(log); err != nil {
			return nil, err
		}
	}

	dev, err := audio.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}

	session := capture.NewSession(dev, log)
	if err := session.Start(); err != nil {
		session.Close()
		return nil, err
	}

	log.Info().
		Str("device", orLabel(session.DeviceName(), cfg)).
		Str("backend", cfg.Backend).
		Msg("Capturing")
	return session, nil
}

// orLabel prefers the name the backend reported over the configured label
func orLabel(name string, cfg config.AudioConfig) string {
	if name != "" {
		return name
	}
	return deviceLabel(cfg)
}

// deviceLabel names the configured device before the backend resolves it
func deviceLabel(cfg config.AudioConfig) string {
	if cfg.DeviceID != "" {
		return cfg.DeviceID
	}
	if cfg.Loopback {
		return "default output (loopback)"
	}
	return "default input"
}
