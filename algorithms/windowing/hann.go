package windowing

import (
	"math"
)

// Hann is the default chord-analysis window: -31 dB first sidelobe, which
// keeps leakage below the detector's relative floor
type Hann struct {
	table
	symmetric bool
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	return &Hann{
		table: newTable(size, symmetric, func(phase float64) float64 {
			return 0.5 * (1.0 - math.Cos(2*math.Pi*phase))
		}),
		symmetric: symmetric,
	}
}

// GetType returns the window type
func (h *Hann) GetType() string {
	return "hann"
}
