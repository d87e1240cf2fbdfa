package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp for a fixed transform size. Twiddle factors are
// computed at construction so the first call on the audio goroutine does
// not pay for them.
type FFT struct {
	size int
}

// NewFFT creates a new FFT calculator for inputs of exactly size samples
func NewFFT(size int) *FFT {
	fft.EnsureRadix2Factors(size)
	return &FFT{size: size}
}

// Size returns the transform length
func (f *FFT) Size() int {
	return f.size
}

// Compute computes the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// MagnitudesTo writes |X[k]| for k in [0, len(dst)) and returns dst
func (f *FFT) MagnitudesTo(dst []float64, x []float64) []float64 {
	spectrum := f.Compute(x)
	n := min(len(dst), len(spectrum))
	for k := range n {
		dst[k] = cmplx.Abs(spectrum[k])
	}
	return dst[:n]
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}
