package spectrum

import (
	"errors"
	"math"
	"testing"

	"github.com/petems/audioscope/internal/config"
)

func sine(n int, freq, amplitude float64, sampleRate uint32) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestGridDefaults(t *testing.T) {
	a := New(config.SpectrumConfig{})
	grid := a.Grid()

	if len(grid) != 69 {
		t.Fatalf("expected 69 grid points, got %d", len(grid))
	}
	if grid[0] != 200 || grid[68] != 13800 {
		t.Errorf("expected grid 200..13800, got %v..%v", grid[0], grid[68])
	}
}

func TestPeriodicHann(t *testing.T) {
	const n = 8
	w := periodicHann(n)

	if len(w) != n {
		t.Fatalf("expected %d coefficients, got %d", n, len(w))
	}
	for i, c := range w {
		want := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/n))
		if math.Abs(c-want) > 1e-12 {
			t.Errorf("w[%d] = %v, want %v", i, c, want)
		}
	}
	// peak sits at n/2 and the last point is not a repeat of the first zero
	if w[n/2] != 1 || w[n-1] == 0 {
		t.Errorf("not the periodic form: %v", w)
	}
}

func TestBinAlignedSineHasSinglePeak(t *testing.T) {
	const (
		n          = 2048
		sampleRate = 51200 // 25 Hz bins
		freq       = 1000  // bin 40
		amplitude  = 10000
	)
	a := New(config.DefaultSpectrum())

	bins, err := a.Spectrum(sine(n, freq, amplitude, sampleRate), sampleRate)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}

	byIndex := make(map[int]Bin, len(bins))
	var peak Bin
	for _, b := range bins {
		byIndex[b.Index] = b
		if b.Magnitude > peak.Magnitude {
			peak = b
		}
	}

	if peak.Index != 40 || peak.Frequency != freq {
		t.Fatalf("expected peak at bin 40 (%d Hz), got bin %d (%v Hz)", freq, peak.Index, peak.Frequency)
	}

	// Hann coherent gain 0.5 on a one-sided amplitude of A/2
	want := amplitude / 4.0
	if math.Abs(peak.Magnitude-want)/want > 0.01 {
		t.Errorf("expected peak magnitude ~%v, got %v", want, peak.Magnitude)
	}

	peakPower := peak.Magnitude * peak.Magnitude
	for _, b := range bins {
		if b.Index >= 38 && b.Index <= 42 {
			continue
		}
		if p := b.Magnitude * b.Magnitude; p > 1e-3*peakPower {
			t.Errorf("bin %d power %v exceeds 1e-3 of peak %v", b.Index, p, peakPower)
		}
	}
	for _, idx := range []int{38, 42} {
		if p := byIndex[idx].Magnitude * byIndex[idx].Magnitude; p > 1e-3*peakPower {
			t.Errorf("bin %d power %v exceeds 1e-3 of peak", idx, p)
		}
	}
	// the periodic window puts exactly half the peak magnitude in each neighbour
	for _, idx := range []int{39, 41} {
		if got := byIndex[idx].Magnitude; math.Abs(got-want/2)/want > 0.01 {
			t.Errorf("bin %d magnitude %v, want ~%v", idx, got, want/2)
		}
	}
}

func TestSpectrumRange(t *testing.T) {
	a := New(config.DefaultSpectrum())

	bins, err := a.Spectrum(make([]float64, 2048), 48000)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	if len(bins) == 0 {
		t.Fatal("expected bins")
	}
	if bins[0].Frequency < 60 {
		t.Errorf("first bin %v Hz below 60 Hz", bins[0].Frequency)
	}
	if last := bins[len(bins)-1].Frequency; last > 15000 {
		t.Errorf("last bin %v Hz above 15000 Hz", last)
	}
}

func TestSpectrumCapsAtNyquist(t *testing.T) {
	a := New(config.DefaultSpectrum())

	bins, err := a.Spectrum(make([]float64, 1024), 16000)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	if last := bins[len(bins)-1]; last.Frequency > 8000 || last.Index > 512 {
		t.Errorf("bin beyond Nyquist: %+v", last)
	}
}

func TestAnalyzeGrid48k(t *testing.T) {
	a := New(config.DefaultSpectrum())

	points, err := a.Analyze(sine(2048, 3000, 5000, 48000), 48000)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(points) != 69 {
		t.Fatalf("expected 69 points, got %d", len(points))
	}
	for k, p := range points {
		if want := 200 * float64(k+1); p.Frequency != want {
			t.Fatalf("point %d: expected %v Hz, got %v", k, want, p.Frequency)
		}
		if p.Power < 0 {
			t.Errorf("negative power at %v Hz", p.Frequency)
		}
	}
	if peak := Peak(points); peak.Frequency != 3000 {
		t.Errorf("expected peak at 3000 Hz, got %v", peak.Frequency)
	}
}

func TestAnalyzeUsesSquaredMagnitude(t *testing.T) {
	const sampleRate = 51200
	a := New(config.DefaultSpectrum())
	samples := sine(2048, 1000, 8000, sampleRate)

	bins, err := a.Spectrum(samples, sampleRate)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	points, err := a.Analyze(samples, sampleRate)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	var mag float64
	for _, b := range bins {
		if b.Index == 40 {
			mag = b.Magnitude
		}
	}
	// grid point 5 is 1000 Hz
	if got := points[4]; got.Frequency != 1000 || got.Power != mag*mag {
		t.Errorf("expected power %v at 1000 Hz, got %+v", mag*mag, got)
	}
}

func TestAnalyzeMissingBin(t *testing.T) {
	a := New(config.DefaultSpectrum())

	_, err := a.Analyze(make([]float64, 2048), 8000)
	if !errors.Is(err, ErrBinNotFound) {
		t.Fatalf("expected ErrBinNotFound above Nyquist, got %v", err)
	}
}

func TestAnalyzeInvalidInput(t *testing.T) {
	a := New(config.DefaultSpectrum())

	if _, err := a.Analyze(nil, 48000); !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("expected ErrEmptyWindow, got %v", err)
	}
	if _, err := a.Analyze(make([]float64, 2048), 0); !errors.Is(err, ErrSampleRate) {
		t.Errorf("expected ErrSampleRate, got %v", err)
	}
}

func TestPeakEmpty(t *testing.T) {
	if p := Peak(nil); p != (Point{}) {
		t.Errorf("expected zero point, got %+v", p)
	}
}

func TestCSV(t *testing.T) {
	got := CSV([]Point{{Frequency: 200, Power: 1.5}, {Frequency: 400, Power: 0}})
	want := "frequency_hz,power\n200,1.5\n400,0\n"
	if got != want {
		t.Errorf("CSV() = %q, want %q", got, want)
	}
}
