package windowing

import (
	"math"
)

// Blackman has the lowest leakage of the three; useful for noisy pickups at
// the cost of a wider main lobe
type Blackman struct {
	table
	symmetric bool
}

// NewBlackman creates a new Blackman window
func NewBlackman(size int, symmetric bool) *Blackman {
	a0, a1, a2 := 0.42, 0.5, 0.08
	return &Blackman{
		table: newTable(size, symmetric, func(phase float64) float64 {
			arg := 2 * math.Pi * phase
			return a0 - a1*math.Cos(arg) + a2*math.Cos(2*arg)
		}),
		symmetric: symmetric,
	}
}

// GetType returns the window type
func (b *Blackman) GetType() string {
	return "blackman"
}
