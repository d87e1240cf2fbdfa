package spectral

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-arp/algorithms/windowing"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidBufferSize is returned when a frame does not match the
// configured transform size
var ErrInvalidBufferSize = errors.New("invalid buffer size")

// Spectrum is the magnitude spectrum of one analysis frame
type Spectrum struct {
	Magnitudes []float64     `json:"magnitudes"` // bins 0..Size/2
	BinWidth   float64       `json:"bin_width"`  // Hz per bin
	Size       int           `json:"size"`
	SampleRate int           `json:"sample_rate"`
	Timestamp  time.Duration `json:"timestamp"` // stream time at the end of the frame
}

// Frequency returns the centre frequency of a (possibly fractional) bin
func (s Spectrum) Frequency(bin float64) float64 {
	return bin * s.BinWidth
}

// Bin returns the fractional bin index of a frequency
func (s Spectrum) Bin(freq float64) float64 {
	if s.BinWidth == 0 {
		return 0
	}
	return freq / s.BinWidth
}

// Analyzer turns fixed-size frames into window-normalized magnitude spectra.
// go-dsp fans large transforms out to a process-wide worker pool; realtime
// callers size it once at startup with fft.SetWorkerPoolSize.
// It keeps no state between frames; the scratch buffers only avoid
// reallocating the windowed frame and the magnitude slice.
type Analyzer struct {
	sampleRate int
	size       int
	window     windowing.Window
	fft        *FFT
	scale      float64

	windowed   []float64
	magnitudes []float64
}

// NewAnalyzer builds an analyzer for frames of exactly size samples
func NewAnalyzer(sampleRate, size int, window string) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	w, err := windowing.New(window, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis window: %w", err)
	}

	return &Analyzer{
		sampleRate: sampleRate,
		size:       size,
		window:     w,
		fft:        NewFFT(size),
		// a sinusoid of amplitude A lands at A*gain/2 in its bin
		scale:      2 / w.CoherentGain(),
		windowed:   make([]float64, size),
		magnitudes: make([]float64, size/2+1),
	}, nil
}

// Size returns the frame length the analyzer accepts
func (a *Analyzer) Size() int {
	return a.size
}

// Analyze windows buf and returns its magnitude spectrum. The returned
// Magnitudes slice is reused by the next call.
func (a *Analyzer) Analyze(buf []float64) (Spectrum, error) {
	if len(buf) != a.size {
		return Spectrum{}, fmt.Errorf("%w: got %d samples, want %d", ErrInvalidBufferSize, len(buf), a.size)
	}

	if err := a.window.ApplyTo(a.windowed, buf); err != nil {
		return Spectrum{}, fmt.Errorf("failed to apply window: %w", err)
	}

	mags := a.fft.MagnitudesTo(a.magnitudes, a.windowed)
	floats.Scale(a.scale, mags)

	return Spectrum{
		Magnitudes: mags,
		BinWidth:   float64(a.sampleRate) / float64(a.size),
		Size:       a.size,
		SampleRate: a.sampleRate,
	}, nil
}
