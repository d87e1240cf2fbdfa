package harmonic

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-arp/algorithms/spectral"
)

func analyze(t *testing.T, freqs []float64, amp float64) spectral.Spectrum {
	t.Helper()
	const sr, n = 48000, 8192
	a, err := spectral.NewAnalyzer(sr, n, "hann")
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]float64, n)
	for i := range buf {
		for _, f := range freqs {
			buf[i] += amp * math.Sin(2*math.Pi*f*float64(i)/sr)
		}
	}
	spec, err := a.Analyze(buf)
	if err != nil {
		t.Fatal(err)
	}
	return spec
}

func TestDetectPeaksInterpolatesFrequency(t *testing.T) {
	freqs := []float64{164.81, 196.00, 246.94}
	spec := analyze(t, freqs, 0.25)

	sp := NewSpectralPeaks(70, 2000, 1e-3, 0.05, 12)
	peaks := sp.DetectPeaks(nil, spec)
	if len(peaks) != 3 {
		t.Fatalf("got %d peaks, want 3: %+v", len(peaks), peaks)
	}

	for _, f := range freqs {
		found := false
		for _, p := range peaks {
			cents := 1200 * math.Log2(p.Frequency/f)
			if math.Abs(cents) < 5 {
				found = true
				if math.Abs(p.Magnitude-0.25) > 0.03 {
					t.Errorf("%v Hz: magnitude %v, want ~0.25", f, p.Magnitude)
				}
			}
		}
		if !found {
			t.Errorf("no peak within 5 cents of %v Hz", f)
		}
	}
}

func TestDetectPeaksBandAndLimit(t *testing.T) {
	// 50 Hz is below the band and 3000 Hz above it
	spec := analyze(t, []float64{50, 440, 880, 1320, 3000}, 0.2)

	sp := NewSpectralPeaks(70, 2000, 1e-3, 0.05, 2)
	peaks := sp.DetectPeaks(make([]SpectralPeak, 0, 4), spec)
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2", len(peaks))
	}
	for _, p := range peaks {
		if p.Frequency < 70 || p.Frequency > 2000 {
			t.Errorf("peak at %v Hz outside band", p.Frequency)
		}
	}
	if peaks[0].Magnitude < peaks[1].Magnitude {
		t.Error("peaks not sorted strongest first")
	}
}

func TestDetectPeaksSilence(t *testing.T) {
	spec := analyze(t, nil, 0)
	sp := NewSpectralPeaks(70, 2000, 1e-3, 0.05, 12)
	if peaks := sp.DetectPeaks(nil, spec); len(peaks) != 0 {
		t.Errorf("silence produced %d peaks", len(peaks))
	}
}

func TestAssignHarmonics(t *testing.T) {
	peaks := []SpectralPeak{
		{Frequency: 82.41, Magnitude: 1.0},
		{Frequency: 123.47, Magnitude: 0.8}, // fifth, not a partial
		{Frequency: 164.82, Magnitude: 0.5}, // 2nd partial
		{Frequency: 412.05, Magnitude: 0.3}, // 5th partial
		{Frequency: 329.63, Magnitude: 2.0}, // louder than its root
	}
	AssignHarmonics(peaks, 8, 30)

	want := []int{1, 1, 2, 5, 1}
	for i, p := range peaks {
		if p.Partial != want[i] {
			t.Errorf("peak %v Hz: partial %d, want %d", p.Frequency, p.Partial, want[i])
		}
	}
}
