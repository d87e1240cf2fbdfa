package windowing

import (
	"math"
)

// DefaultKaiserBeta trades leakage against main lobe width roughly like
// Blackman-Harris
const DefaultKaiserBeta = 8.6

// Kaiser approximates the prolate spheroidal window; beta sets the
// sidelobe level
type Kaiser struct {
	table
	beta      float64
	symmetric bool
}

func NewKaiser(size int, beta float64, symmetric bool) *Kaiser {
	norm := besselI0(beta)
	return &Kaiser{
		table: newTable(size, symmetric, func(phase float64) float64 {
			x := 2*phase - 1
			return besselI0(beta*math.Sqrt(max(0, 1-x*x))) / norm
		}),
		beta:      beta,
		symmetric: symmetric,
	}
}

func (k *Kaiser) GetType() string {
	return "kaiser"
}

func (k *Kaiser) Beta() float64 {
	return k.beta
}

// besselI0 is the zero-order modified Bessel function of the first kind,
// summed until the next term drops below 1e-12 of the total
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	half := x / 2
	for i := 1; i < 64; i++ {
		f := half / float64(i)
		term *= f * f
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}
