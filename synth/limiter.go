package synth

import (
	"github.com/RyanBlaney/sonido-arp/algorithms/common"
	"gonum.org/v1/gonum/floats"
)

// SoftLimit scales buf by 1/peak when its peak exceeds unity and leaves it
// untouched otherwise, so relative dynamics survive. Returns the gain
// applied.
func SoftLimit(buf []float64) float64 {
	peak := common.Peak(buf)
	if peak <= 1 {
		return 1
	}
	gain := 1 / peak
	floats.Scale(gain, buf)
	return gain
}
