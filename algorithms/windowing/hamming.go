package windowing

import (
	"math"
)

// Hamming trades the Hann window's sidelobe roll-off for a narrower main lobe
type Hamming struct {
	table
	symmetric bool
}

func NewHamming(size int, symmetric bool) *Hamming {
	return &Hamming{
		table: newTable(size, symmetric, func(phase float64) float64 {
			return 0.54 - 0.46*math.Cos(2*math.Pi*phase)
		}),
		symmetric: symmetric,
	}
}

func (h *Hamming) GetType() string {
	return "hamming"
}
