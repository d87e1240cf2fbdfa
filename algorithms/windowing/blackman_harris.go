package windowing

import (
	"math"
)

// BlackmanHarris is the 4-term minimum sidelobe window (-92 dB). Weak upper
// partials next to a loud root stay separable, at about twice Hann's main
// lobe width.
type BlackmanHarris struct {
	table
	symmetric bool
}

func NewBlackmanHarris(size int, symmetric bool) *BlackmanHarris {
	a0, a1, a2, a3 := 0.35875, 0.48829, 0.14128, 0.01168
	return &BlackmanHarris{
		table: newTable(size, symmetric, func(phase float64) float64 {
			arg := 2 * math.Pi * phase
			return a0 - a1*math.Cos(arg) + a2*math.Cos(2*arg) - a3*math.Cos(3*arg)
		}),
		symmetric: symmetric,
	}
}

func (bh *BlackmanHarris) GetType() string {
	return "blackman_harris"
}
