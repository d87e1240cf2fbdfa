package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// Pickups and cheap interfaces often carry an offset that would otherwise
// leak into the lowest FFT bins. See J.O. Smith, "Introduction to Digital
// Filters", DC Blocker.
type DCRemoval struct {
	pole   float64
	cutoff float64

	x1, y1 float64
}

// NewDCRemoval places the -3 dB point at cutoff Hz using the small angle
// approximation R = 1 - 2*pi*fc/fs
func NewDCRemoval(sampleRate int, cutoff float64) *DCRemoval {
	pole := 1 - 2*math.Pi*cutoff/float64(sampleRate)
	return &DCRemoval{
		pole:   min(0.9999, max(0.001, pole)),
		cutoff: cutoff,
	}
}

func (dc *DCRemoval) Process(x float64) float64 {
	y := x - dc.x1 + dc.pole*dc.y1
	dc.x1 = x
	dc.y1 = y
	return y
}

// ProcessTo filters src into dst, which must be at least as long
func (dc *DCRemoval) ProcessTo(dst, src []float64) []float64 {
	dst = dst[:len(src)]
	for i, x := range src {
		dst[i] = dc.Process(x)
	}
	return dst
}

func (dc *DCRemoval) Reset() {
	dc.x1, dc.y1 = 0, 0
}

func (dc *DCRemoval) Pole() float64 {
	return dc.pole
}

// Gain is the magnitude response at freq Hz
func (dc *DCRemoval) Gain(freq float64, sampleRate int) float64 {
	w := 2 * math.Pi * freq / float64(sampleRate)
	// H(z) = (1 - z^-1) / (1 - R z^-1)
	num := math.Hypot(1-math.Cos(w), math.Sin(w))
	den := math.Hypot(1-dc.pole*math.Cos(w), dc.pole*math.Sin(w))
	return num / den
}
