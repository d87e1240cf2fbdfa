package harmonic

import (
	"cmp"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-arp/algorithms/spectral"
	"gonum.org/v1/gonum/floats"
)

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 // Interpolated peak frequency in Hz
	Magnitude float64 // Interpolated peak magnitude
	BinIndex  int     // Original FFT bin index
	Partial   int     // 1 unless the peak is the nth partial of a stronger, lower peak
}

// SpectralPeaks picks the strongest local maxima of a magnitude spectrum
// inside a frequency band
type SpectralPeaks struct {
	minFrequency  float64
	maxFrequency  float64
	noiseFloor    float64 // absolute floor
	relativeFloor float64 // fraction of the strongest in-band bin
	maxPeaks      int

	candidates []SpectralPeak
}

// NewSpectralPeaks creates a new spectral peaks analyzer
func NewSpectralPeaks(minFrequency, maxFrequency, noiseFloor, relativeFloor float64, maxPeaks int) *SpectralPeaks {
	return &SpectralPeaks{
		minFrequency:  minFrequency,
		maxFrequency:  maxFrequency,
		noiseFloor:    noiseFloor,
		relativeFloor: relativeFloor,
		maxPeaks:      maxPeaks,
	}
}

// Threshold returns the magnitude a bin must reach to count as a peak
func (sp *SpectralPeaks) Threshold(band []float64) float64 {
	if len(band) == 0 {
		return sp.noiseFloor
	}
	return max(sp.noiseFloor, sp.relativeFloor*floats.Max(band))
}

// DetectPeaks appends the strongest peaks of spec to dst[:0], strongest
// first, and returns it. The scratch space is kept between calls so a
// steady-state caller does not allocate.
func (sp *SpectralPeaks) DetectPeaks(dst []SpectralPeak, spec spectral.Spectrum) []SpectralPeak {
	dst = dst[:0]
	mags := spec.Magnitudes
	if len(mags) < 3 || spec.BinWidth <= 0 {
		return dst
	}

	lo := max(1, int(math.Ceil(spec.Bin(sp.minFrequency))))
	hi := min(len(mags)-2, int(math.Floor(spec.Bin(sp.maxFrequency))))
	if hi < lo {
		return dst
	}

	threshold := sp.Threshold(mags[lo : hi+1])

	candidates := sp.candidates[:0]
	for i := lo; i <= hi; i++ {
		m := mags[i]
		// strict on the left and loose on the right so a flat top yields one peak
		if m < threshold || m <= mags[i-1] || m < mags[i+1] {
			continue
		}
		freq, mag := interpolate(mags, i)
		candidates = append(candidates, SpectralPeak{
			Frequency: freq * spec.BinWidth,
			Magnitude: mag,
			BinIndex:  i,
			Partial:   1,
		})
	}
	sp.candidates = candidates

	slices.SortFunc(candidates, func(a, b SpectralPeak) int {
		return cmp.Compare(b.Magnitude, a.Magnitude)
	})

	if len(candidates) > sp.maxPeaks {
		candidates = candidates[:sp.maxPeaks]
	}
	return append(dst, candidates...)
}

// interpolate refines a peak with a parabola through the log magnitudes of
// the bin and its neighbours. Under a Hann window the main lobe is close to
// Gaussian, which makes the log-domain fit far tighter than a linear one.
func interpolate(mags []float64, i int) (bin, magnitude float64) {
	const eps = 1e-12
	y1 := math.Log(mags[i-1] + eps)
	y2 := math.Log(mags[i] + eps)
	y3 := math.Log(mags[i+1] + eps)

	denom := y1 - 2*y2 + y3
	if math.Abs(denom) < 1e-12 {
		return float64(i), mags[i]
	}

	offset := 0.5 * (y1 - y3) / denom
	offset = max(-0.5, min(0.5, offset))
	return float64(i) + offset, math.Exp(y2 - 0.25*(y1-y3)*offset)
}

// AssignHarmonics marks peaks that sit on an integer partial (2..maxPartial)
// of a stronger, lower peak within toleranceCents. Overtones of a root
// otherwise leak pitch classes the player never fingered, e.g. the fifth
// partial of a minor chord's root is its major third.
func AssignHarmonics(peaks []SpectralPeak, maxPartial int, toleranceCents float64) {
	for i := range peaks {
		p := &peaks[i]
		p.Partial = 1
		for _, q := range peaks {
			if q.Frequency <= 0 || q.Frequency >= p.Frequency || q.Magnitude < p.Magnitude {
				continue
			}
			ratio := p.Frequency / q.Frequency
			n := math.Round(ratio)
			if n < 2 || int(n) > maxPartial {
				continue
			}
			if math.Abs(1200*math.Log2(ratio/n)) <= toleranceCents {
				p.Partial = max(p.Partial, int(n))
			}
		}
	}
}
