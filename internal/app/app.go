package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petems/audioscope/internal/audio"
	"github.com/petems/audioscope/internal/capture"
	"github.com/petems/audioscope/internal/config"
	"github.com/petems/audioscope/internal/samples"
	"github.com/petems/audioscope/internal/spectrum"
	"github.com/rs/zerolog"
)

type State int

const (
	// Idle means no window has been analyzed yet
	Idle State = iota
	// Ready means a spectrum has been published
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source is the capture side of a tick. *capture.Session implements it.
type Source interface {
	Poll() (capture.Chunk, bool, error)
	Format() audio.Format
}

// Publisher receives every freshly analyzed spectrum
type Publisher interface {
	Publish(points []spectrum.Point)
}

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetReady()
	SetError()
}

type Config struct {
	Source        Source
	Accumulator   *samples.Accumulator // Optional - built from Config.Spectrum
	Analyzer      *spectrum.Analyzer   // Optional - built from Config.Spectrum
	Publisher     Publisher            // Optional - can be nil
	StatusUpdater StatusUpdater        // Optional - can be nil
	Config        *config.Config
	Logger        zerolog.Logger
}

// TickResult describes what one tick did
type TickResult struct {
	Chunks    int
	Frames    uint64
	Published bool
}

type Stats struct {
	Ticks     uint64
	Chunks    uint64
	Frames    uint64
	Published uint64
	// Dropped counts samples skipped to keep the analysis on the newest window
	Dropped uint64
}

// App drives the capture-to-spectrum pipeline one tick at a time. Tick
// and Run belong to a single goroutine; Data, State and Stats may be
// read from any.
type App struct {
	src        Source
	acc        *samples.Accumulator
	analyzer   *spectrum.Analyzer
	pub        Publisher
	status     StatusUpdater
	log        zerolog.Logger
	windowSize int
	idleDelay  time.Duration

	mu    sync.Mutex
	state State
	data  []spectrum.Point
	stats Stats
}

func New(cfg Config) *App {
	c := cfg.Config
	if c == nil {
		c = config.Default()
	}

	acc := cfg.Accumulator
	if acc == nil {
		acc = samples.New(c.Spectrum.MaxBacklog)
	}
	analyzer := cfg.Analyzer
	if analyzer == nil {
		analyzer = spectrum.New(c.Spectrum)
	}

	windowSize := c.Spectrum.WindowSize
	if windowSize <= 0 {
		windowSize = config.DefaultSpectrum().WindowSize
	}

	return &App{
		src:        cfg.Source,
		acc:        acc,
		analyzer:   analyzer,
		pub:        cfg.Publisher,
		status:     cfg.StatusUpdater,
		log:        cfg.Logger.With().Str("component", "driver").Logger(),
		windowSize: windowSize,
		idleDelay:  c.Driver.IdleDelay,
	}
}

// Tick drains every chunk the source has ready, then analyzes and
// publishes the freshest window if enough samples have accumulated. A
// tick without a full window leaves the published data unchanged.
func (a *App) Tick() (TickResult, error) {
	var res TickResult
	format := a.src.Format()

	for {
		chunk, ok, err := a.src.Poll()
		if err != nil {
			return res, a.fatal(fmt.Errorf("poll: %w", err))
		}
		if !ok {
			break
		}
		res.Chunks++
		res.Frames += uint64(chunk.Frames)

		if err := a.acc.Ingest(chunk.Data, format); err != nil {
			return res, a.fatal(fmt.Errorf("ingest: %w", err))
		}
	}

	window, ok := a.acc.ExtractWindow(a.windowSize)

	a.mu.Lock()
	a.stats.Ticks++
	a.stats.Chunks += uint64(res.Chunks)
	a.stats.Frames += res.Frames
	a.stats.Dropped = a.acc.Dropped()
	a.mu.Unlock()

	if !ok {
		return res, nil
	}

	points, err := a.analyzer.Analyze(window, format.SampleRate)
	if err != nil {
		return res, a.fatal(fmt.Errorf("analyze: %w", err))
	}

	a.mu.Lock()
	first := a.state == Idle
	a.state = Ready
	a.data = points
	a.stats.Published++
	a.mu.Unlock()

	if first {
		a.log.Info().Int("window", a.windowSize).Msg("First spectrum published")
		if a.status != nil {
			a.status.SetReady()
		}
	}
	if a.pub != nil {
		a.pub.Publish(points)
	}

	res.Published = true
	return res, nil
}

// Run ticks until ctx is cancelled or a tick fails. After a tick that
// found no audio it waits the configured idle delay before polling again.
func (a *App) Run(ctx context.Context) error {
	grid := a.analyzer.Grid()
	a.log.Info().
		Int("window", a.windowSize).
		Dur("idle_delay", a.idleDelay).
		Int("grid_points", len(grid)).
		Floats64("grid", []float64{grid[0], grid[len(grid)-1]}).
		Msg("Driver started")

	if a.status != nil {
		a.status.SetIdle()
	}

	for {
		select {
		case <-ctx.Done():
			stats := a.Stats()
			a.log.Info().
				Uint64("published", stats.Published).
				Uint64("dropped", stats.Dropped).
				Msg("Driver stopped")
			return nil
		default:
		}

		res, err := a.Tick()
		if err != nil {
			return err
		}

		if res.Chunks == 0 && a.idleDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(a.idleDelay):
			}
		}
	}
}

// Data returns the most recently published spectrum
func (a *App) Data() []spectrum.Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]spectrum.Point, len(a.data))
	copy(out, a.data)
	return out
}

func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *App) fatal(err error) error {
	a.log.Error().Err(err).Msg("Pipeline error")
	if a.status != nil {
		a.status.SetError()
	}
	return err
}
