package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Level helpers shared by the meters, limiter and detectors. gonum does the
// vector work.

// Mean is the arithmetic mean, used to report an input's DC offset
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Peak returns the largest absolute sample value
func Peak(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Max(floats.Max(data), -floats.Min(data))
}

// LinearToDB converts an amplitude to dBFS, flooring silence at -120 dB
func LinearToDB(amplitude float64) float64 {
	if amplitude <= 1e-6 {
		return -120
	}
	return 20 * math.Log10(amplitude)
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// IsFinite reports whether every sample is a real number. A single NaN in
// the mix would otherwise poison every later buffer through the delay line.
func IsFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
