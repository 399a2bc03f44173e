// Package spectrum computes Hann-windowed magnitude spectra and samples
// them onto a fixed frequency grid for plotting.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/petems/audioscope/internal/config"
)

var (
	ErrBinNotFound = errors.New("no spectrum bin for frequency")
	ErrEmptyWindow = errors.New("empty analysis window")
	ErrSampleRate  = errors.New("sample rate must be positive")
)

// Bin is one native FFT bin inside the analyzed range
type Bin struct {
	Index     int
	Frequency float64
	Magnitude float64
}

// Point is the power plotted at one grid frequency
type Point struct {
	Frequency float64
	Power     float64
}

type Analyzer struct {
	cfg  config.SpectrumConfig
	grid []float64

	// Hann coefficients for the last window length
	hann []float64
}

func New(cfg config.SpectrumConfig) *Analyzer {
	def := config.DefaultSpectrum()
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = def.MinFrequency
	}
	if cfg.MaxFrequency <= 0 {
		cfg.MaxFrequency = def.MaxFrequency
	}
	if cfg.GridStep <= 0 {
		cfg.GridStep = def.GridStep
	}
	if cfg.GridPoints <= 0 {
		cfg.GridPoints = def.GridPoints
	}

	grid := make([]float64, cfg.GridPoints)
	for k := range grid {
		grid[k] = cfg.GridStep * float64(k+1)
	}

	return &Analyzer{cfg: cfg, grid: grid}
}

// Grid returns the frequencies Analyze reports, in ascending order
func (a *Analyzer) Grid() []float64 {
	out := make([]float64, len(a.grid))
	copy(out, a.grid)
	return out
}

// Spectrum returns every bin between the configured minimum and maximum
// frequency, capped at Nyquist. Magnitudes are scaled by 1/N.
func (a *Analyzer) Spectrum(samples []float64, sampleRate uint32) ([]Bin, error) {
	mags, err := a.magnitudes(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	n := len(samples)
	lo, hi := a.binRange(n, sampleRate)

	bins := make([]Bin, 0, max(hi-lo+1, 0))
	for i := lo; i <= hi; i++ {
		bins = append(bins, Bin{
			Index:     i,
			Frequency: binFrequency(i, n, sampleRate),
			Magnitude: mags[i],
		})
	}
	return bins, nil
}

// Analyze samples the spectrum at each grid frequency. Each point takes
// the squared magnitude of the nearest native bin; there is no
// interpolation. A grid frequency whose bin falls outside the analyzed
// range is a configuration error.
func (a *Analyzer) Analyze(samples []float64, sampleRate uint32) ([]Point, error) {
	bins, err := a.Spectrum(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	n := len(samples)
	lo, _ := a.binRange(n, sampleRate)

	points := make([]Point, len(a.grid))
	for k, f := range a.grid {
		idx := int(math.Round(f * float64(n) / float64(sampleRate)))
		if idx < lo || idx-lo >= len(bins) {
			return nil, fmt.Errorf("%w: %.0f Hz (window %d, sample rate %d)", ErrBinNotFound, f, n, sampleRate)
		}
		mag := bins[idx-lo].Magnitude
		points[k] = Point{Frequency: f, Power: mag * mag}
	}
	return points, nil
}

// Peak returns the point with the highest power
func Peak(points []Point) Point {
	var peak Point
	for _, p := range points {
		if p.Power > peak.Power {
			peak = p
		}
	}
	return peak
}

func (a *Analyzer) magnitudes(samples []float64, sampleRate uint32) ([]float64, error) {
	n := len(samples)
	if n == 0 {
		return nil, ErrEmptyWindow
	}
	if sampleRate == 0 {
		return nil, ErrSampleRate
	}

	if len(a.hann) != n {
		a.hann = periodicHann(n)
	}
	windowed := make([]float64, n)
	for i, s := range samples {
		windowed[i] = s * a.hann[i]
	}

	result := fft.FFTReal(windowed)

	half := n/2 + 1
	mags := make([]float64, half)
	scale := 1 / float64(n)
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(result[i]) * scale
	}
	return mags, nil
}

// periodicHann returns the DFT-even Hann window, 0.5(1-cos(2πi/n)). It
// is the first n points of the symmetric window of length n+1.
func periodicHann(n int) []float64 {
	return window.Hann(n + 1)[:n]
}

// binRange returns the first and last bin index inside the analyzed range
func (a *Analyzer) binRange(n int, sampleRate uint32) (int, int) {
	sr := float64(sampleRate)
	maxFreq := math.Min(a.cfg.MaxFrequency, sr/2)

	lo := int(math.Ceil(a.cfg.MinFrequency * float64(n) / sr))
	hi := int(math.Floor(maxFreq * float64(n) / sr))
	return lo, min(hi, n/2)
}

func binFrequency(i, n int, sampleRate uint32) float64 {
	return float64(i) * float64(sampleRate) / float64(n)
}

// CSV renders points as "frequency,power" lines with a header row
func CSV(points []Point) string {
	var b strings.Builder
	b.WriteString("frequency_hz,power\n")
	for _, p := range points {
		b.WriteString(strconv.FormatFloat(p.Frequency, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Power, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}
