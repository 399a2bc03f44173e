package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/audioscope/internal/audio"
	"github.com/petems/audioscope/internal/config"
	"github.com/petems/audioscope/internal/logging"
	"github.com/petems/audioscope/internal/spectrum"
	"github.com/rs/zerolog"
)

// Driver runs the capture pipeline until ctx is cancelled
type Driver func(ctx context.Context) error

type UI struct {
	cfg     *config.Config
	save    func(*config.Config) error
	version string
	commit  string
	log     zerolog.Logger

	setTitle   func(string)
	setTooltip func(string)
	copy       func(string) error
	interval   time.Duration

	mu        sync.Mutex
	status    string
	device    string
	latest    []spectrum.Point
	lastTitle time.Time

	// Menu items
	mPeak    *systray.MenuItem
	mCopy    *systray.MenuItem
	mDevices *systray.MenuItem
}

// Status update methods for the driver to call
func (u *UI) SetIdle() {
	u.setStatus("idle")
}

func (u *UI) SetReady() {
	u.setStatus("ready")
}

func (u *UI) SetError() {
	u.setStatus("error")
}

// New creates the tray. save persists device changes; it may be nil.
func New(cfg *config.Config, save func(*config.Config) error, version, commit string, log zerolog.Logger) *UI {
	interval := time.Second / 30
	if cfg.UI.FrameRate > 0 {
		interval = time.Duration(float64(time.Second) / cfg.UI.FrameRate)
	}
	return &UI{
		cfg:        cfg,
		save:       save,
		version:    version,
		commit:     commit,
		log:        log.With().Str("component", "tray").Logger(),
		setTitle:   systray.SetTitle,
		setTooltip: systray.SetTooltip,
		copy:       clipboard.WriteAll,
		interval:   interval,
		status:     "idle",
	}
}

// SetDevice shows the capture endpoint in the tray tooltip
func (u *UI) SetDevice(name string) {
	u.mu.Lock()
	u.device = name
	u.mu.Unlock()
	u.setTooltip(tooltipFor(name))
}

// Publish keeps the latest spectrum and shows its peak in the tray
// title, redrawing no faster than the configured frame rate.
func (u *UI) Publish(points []spectrum.Point) {
	u.mu.Lock()
	u.latest = points
	now := time.Now()
	if now.Sub(u.lastTitle) < u.interval {
		u.mu.Unlock()
		return
	}
	u.lastTitle = now
	title := titleFor(u.status, spectrum.Peak(points))
	u.mu.Unlock()

	u.setTitle(title)
	if u.mPeak != nil {
		u.mPeak.SetTitle(title)
	}
}

// Run blocks on the systray loop. The driver starts once the tray is
// ready and quitting the tray cancels it.
func (u *UI) Run(ctx context.Context, drive Driver) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var driverErr error
	done := make(chan struct{})

	systray.Run(func() {
		u.onReady(cancel)
		go func() {
			defer close(done)
			if err := drive(ctx); err != nil {
				driverErr = err
				u.log.Error().Err(err).Msg("Capture stopped")
				u.SetError()
			}
		}()
		go func() {
			<-ctx.Done()
			systray.Quit()
		}()
	}, u.onExit)

	cancel()
	<-done
	return driverErr
}

func (u *UI) onReady(cancel context.CancelFunc) {
	u.setStatus("idle")
	u.mu.Lock()
	device := u.device
	u.mu.Unlock()
	u.setTooltip(tooltipFor(device))

	// Build menu
	u.mPeak = systray.AddMenuItem("Waiting for audio", "Loudest frequency")
	u.mPeak.Disable()
	systray.AddSeparator()

	u.mCopy = systray.AddMenuItem("Copy Spectrum", "Copy the latest spectrum as CSV")

	u.mDevices = systray.AddMenuItem("Device", "Select capture device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About audioscope")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit, cancel)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem, cancel context.CancelFunc) {
	for {
		select {
		case <-u.mCopy.ClickedCh:
			if err := u.copyLatest(); err != nil {
				u.log.Error().Err(err).Msg("Failed to copy spectrum")
			}
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			cancel()
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	devices, err := audio.ListDevices(u.cfg.Audio)
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == u.cfg.Audio.DeviceID || (u.cfg.Audio.DeviceID == "" && dev.Default) {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				// Uncheck all other items
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.selectDevice(deviceID, deviceName)
			}
		}(dev.ID, dev.Name, item)
	}
}

// selectDevice stores the choice; the running session keeps its device
// until restart.
func (u *UI) selectDevice(id, name string) {
	u.mu.Lock()
	u.cfg.Audio.DeviceID = id
	u.mu.Unlock()

	if u.save != nil {
		if err := u.save(u.cfg); err != nil {
			u.log.Error().Err(err).Msg("Failed to save config")
			return
		}
	}
	u.log.Info().Str("device", name).Msg("Changed audio device, restart to apply")
}

func (u *UI) copyLatest() error {
	u.mu.Lock()
	points := u.latest
	u.mu.Unlock()

	if len(points) == 0 {
		return fmt.Errorf("no spectrum captured yet")
	}
	if err := u.copy(spectrum.CSV(points)); err != nil {
		return err
	}
	u.log.Info().Int("points", len(points)).Msg("Copied spectrum")
	return nil
}

func (u *UI) openLogs() {
	path := logging.LogPath()
	cmd := openCommand(runtime.GOOS, path)
	if err := cmd.Start(); err != nil {
		u.log.Error().Err(err).Str("path", path).Msg("Failed to open logs")
		return
	}
	go func() { _ = cmd.Wait() }()
}

func (u *UI) showAbout() {
	fmt.Printf("audioscope %s (%s)\nAudio spectrum monitor\n", u.version, u.commit)
}

func (u *UI) onExit() {
	u.log.Info().Msg("Tray exited")
}

func (u *UI) setStatus(status string) {
	u.mu.Lock()
	u.status = status
	var peak spectrum.Point
	if status == "ready" {
		peak = spectrum.Peak(u.latest)
	}
	u.mu.Unlock()

	u.setTitle(titleFor(status, peak))
}

func openCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// titleFor builds the tray title from status and the loudest point
func titleFor(status string, peak spectrum.Point) string {
	emoji := emojiForStatus(status)
	if status != "ready" || peak.Power == 0 {
		return fmt.Sprintf("🎵 %s", emoji)
	}
	return fmt.Sprintf("🎵 %s %s", emoji, formatFrequency(peak.Frequency))
}

func tooltipFor(device string) string {
	if device == "" {
		return "Audio spectrum monitor"
	}
	return "Audio spectrum monitor: " + device
}

func formatFrequency(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%.1f kHz", hz/1000)
	}
	return fmt.Sprintf("%.0f Hz", hz)
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "ready":
		return "🟢" // Green - spectrum flowing
	case "idle":
		return "🟡" // Yellow - waiting for a full window
	case "error":
		return "⚪️" // White - error
	default:
		return "🟡"
	}
}
