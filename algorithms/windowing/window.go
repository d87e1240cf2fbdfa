package windowing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Window is a precomputed analysis window
type Window interface {
	// ApplyTo writes src*window into dst without allocating
	ApplyTo(dst, src []float64) error
	// CoherentGain is the sum of the coefficients; dividing an FFT bin by
	// CoherentGain/2 recovers the amplitude of a sinusoid
	CoherentGain() float64
	GetCoefficients() []float64
	GetSize() int
	GetType() string
}

// New builds a periodic window by name. Analysis frames use periodic
// windows so consecutive frames tile without a repeated endpoint.
func New(name string, size int) (Window, error) {
	if size < 2 {
		return nil, fmt.Errorf("window size %d too small", size)
	}
	switch name {
	case "", "hann":
		return NewHann(size, false), nil
	case "hamming":
		return NewHamming(size, false), nil
	case "blackman":
		return NewBlackman(size, false), nil
	case "blackman_harris":
		return NewBlackmanHarris(size, false), nil
	case "kaiser":
		return NewKaiser(size, DefaultKaiserBeta, false), nil
	default:
		return nil, fmt.Errorf("unknown window %q", name)
	}
}

// Names lists the windows New understands
func Names() []string {
	return []string{"hann", "hamming", "blackman", "blackman_harris", "kaiser"}
}

// table holds the coefficients shared by every window type
type table struct {
	coefficients []float64
	gain         float64
}

func newTable(size int, symmetric bool, fn func(phase float64) float64) table {
	coeffs := make([]float64, size)

	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}
	for i := range size {
		coeffs[i] = fn(float64(i) / denominator)
	}

	return table{coefficients: coeffs, gain: floats.Sum(coeffs)}
}

func (t *table) ApplyTo(dst, src []float64) error {
	n := len(t.coefficients)
	if len(src) != n || len(dst) != n {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(src), n)
	}
	floats.MulTo(dst, src, t.coefficients)
	return nil
}

func (t *table) CoherentGain() float64 {
	return t.gain
}

// GetCoefficients returns a copy of the window coefficients
func (t *table) GetCoefficients() []float64 {
	coeffs := make([]float64, len(t.coefficients))
	copy(coeffs, t.coefficients)
	return coeffs
}

func (t *table) GetSize() int {
	return len(t.coefficients)
}
