package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy) over a band.
// Chordal input sits well below 0.3; broadband noise approaches 1.
type SpectralFlatness struct {
	minThreshold float64 // Minimum value to avoid log(0)
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// Compute returns the ratio of geometric to arithmetic mean of the
// magnitudes between lowHz and highHz (0-1 range)
func (sf *SpectralFlatness) Compute(spec Spectrum, lowHz, highHz float64) float64 {
	lo := max(0, int(math.Ceil(spec.Bin(lowHz))))
	hi := min(len(spec.Magnitudes)-1, int(math.Floor(spec.Bin(highHz))))
	if hi < lo {
		return 0.0
	}

	logSum := 0.0
	sum := 0.0
	count := 0
	for _, magnitude := range spec.Magnitudes[lo : hi+1] {
		sum += magnitude
		// bins below threshold enter the geometric mean at the threshold
		logSum += math.Log(max(magnitude, sf.minThreshold))
		count++
	}

	arithmeticMean := sum / float64(count)
	if arithmeticMean <= sf.minThreshold {
		return 0.0
	}

	geometricMean := math.Exp(logSum / float64(count))
	return min(geometricMean/arithmeticMean, 1.0)
}
