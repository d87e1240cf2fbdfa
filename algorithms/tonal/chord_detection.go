package tonal

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-arp/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-arp/algorithms/spectral"
	"gonum.org/v1/gonum/floats"
)

// ChordDetectionParams contains parameters for chord detection
type ChordDetectionParams struct {
	// Peak picking
	MinFrequency   float64 `json:"min_frequency"`
	MaxFrequency   float64 `json:"max_frequency"`
	NoiseFloor     float64 `json:"noise_floor"`
	RelativeFloor  float64 `json:"relative_floor"`
	MaxPeaks       int     `json:"max_peaks"`
	CentsTolerance float64 `json:"cents_tolerance"` // reject peaks further than this from a tempered pitch
	MaxPartial     int     `json:"max_partial"`     // overtones up to this partial are down-weighted
	MaxFlatness    float64 `json:"max_flatness"`    // 0 disables the noise gate

	// Template matching
	StrongClass     float64 `json:"strong_class"` // chroma level counted as present
	MinPitchClasses int     `json:"min_pitch_classes"`
	MinConfidence   float64 `json:"min_confidence"`

	// Hysteresis
	ConfidenceMargin float64       `json:"confidence_margin"`
	HoldTime         time.Duration `json:"hold_time"`

	BaseOctave int `json:"base_octave"` // octave the voiced root sits in
}

// DefaultChordDetectionParams returns the tuning used for clean guitar or
// keyboard input at 48 kHz with an 8192-point frame
func DefaultChordDetectionParams() ChordDetectionParams {
	return ChordDetectionParams{
		MinFrequency:     70.0,
		MaxFrequency:     2000.0,
		NoiseFloor:       1e-3,
		RelativeFloor:    0.05,
		MaxPeaks:         12,
		CentsTolerance:   40.0,
		MaxPartial:       8,
		MaxFlatness:      0.5,
		StrongClass:      0.25,
		MinPitchClasses:  2,
		MinConfidence:    0.6,
		ConfidenceMargin: 0.15,
		HoldTime:         500 * time.Millisecond,
		BaseOctave:       4,
	}
}

// ChordState is the active chord. Values are never modified after they are
// returned by Detect, so they can be published to other goroutines.
type ChordState struct {
	Root       PitchClass    `json:"root"`
	Template   string        `json:"template"`
	Pitches    []int         `json:"pitches"` // MIDI notes to sound, ascending
	Confidence float64       `json:"confidence"`
	Timestamp  time.Duration `json:"timestamp"` // stream time the chord became active
	LastSeen   time.Duration `json:"last_seen"` // stream time of the last confirming frame
}

// Name returns a compact chord symbol such as "E minor"
func (c *ChordState) Name() string {
	if c == nil {
		return "none"
	}
	return fmt.Sprintf("%s %s", c.Root, c.Template)
}

// Is reports whether c is the given root/template pair
func (c *ChordState) Is(root PitchClass, template string) bool {
	return c != nil && c.Root == root && c.Template == template
}

// Candidate is the best scoring root/template pair of one frame
type Candidate struct {
	Root      PitchClass `json:"root"`
	Template  string     `json:"template"`
	Score     float64    `json:"score"`
	Recall    float64    `json:"recall"`
	Precision float64    `json:"precision"`
}

// Detection is the full intermediate result of one frame. Its slices are
// owned by the detector and overwritten by the next call.
type Detection struct {
	Peaks       []harmonic.SpectralPeak `json:"peaks"`
	Pitches     []DetectedPitch         `json:"pitches"`
	Chroma      [12]float64             `json:"chroma"`
	StrongCount int                     `json:"strong_count"`
	Flatness    float64                 `json:"flatness"`
	Best        Candidate               `json:"best"`
	Found       bool                    `json:"found"`
}

// ChordDetector turns magnitude spectra into a stable chord. It is not safe
// for concurrent use; the scheduler owns exactly one.
type ChordDetector struct {
	params    ChordDetectionParams
	catalogue *Catalogue

	peakPicker *harmonic.SpectralPeaks
	flatness   *spectral.SpectralFlatness

	// scratch reused across frames
	peaks   []harmonic.SpectralPeak
	pitches []DetectedPitch
}

// NewChordDetector creates a detector over an injected template catalogue
func NewChordDetector(catalogue *Catalogue, params ChordDetectionParams) *ChordDetector {
	return &ChordDetector{
		params:    params,
		catalogue: catalogue,
		peakPicker: harmonic.NewSpectralPeaks(
			params.MinFrequency, params.MaxFrequency,
			params.NoiseFloor, params.RelativeFloor, params.MaxPeaks,
		),
		flatness: spectral.NewSpectralFlatness(),
		peaks:    make([]harmonic.SpectralPeak, 0, params.MaxPeaks),
		pitches:  make([]DetectedPitch, 0, params.MaxPeaks),
	}
}

// Params returns the detector's parameters
func (cd *ChordDetector) Params() ChordDetectionParams {
	return cd.params
}

// Catalogue returns the injected template catalogue
func (cd *ChordDetector) Catalogue() *Catalogue {
	return cd.catalogue
}

// Detect updates the active chord from one spectrum. previous may be nil.
// The result is previous itself when nothing changes, a refreshed copy when
// the same chord is confirmed, a new state when a candidate wins the
// hysteresis check, or nil once silence outlasts the hold time.
func (cd *ChordDetector) Detect(spec spectral.Spectrum, previous *ChordState) *ChordState {
	d := cd.analyze(spec, previous)
	now := spec.Timestamp

	if !d.Found {
		return cd.Silence(now, previous)
	}

	best := d.Best
	if previous.Is(best.Root, best.Template) {
		refreshed := *previous
		refreshed.LastSeen = now
		refreshed.Confidence = best.Score
		return &refreshed
	}

	if previous == nil ||
		now-previous.Timestamp >= cd.params.HoldTime ||
		best.Score >= previous.Confidence+cd.params.ConfidenceMargin {
		pitches, err := cd.catalogue.Voice(best.Root, best.Template, cd.params.BaseOctave)
		if err != nil {
			// the candidate came from this catalogue
			return previous
		}
		return &ChordState{
			Root:       best.Root,
			Template:   best.Template,
			Pitches:    pitches,
			Confidence: best.Score,
			Timestamp:  now,
			LastSeen:   now,
		}
	}

	return previous
}

// Silence advances the hold timer for a frame that carried no chord. The
// previous chord survives until HoldTime after it was last seen.
func (cd *ChordDetector) Silence(now time.Duration, previous *ChordState) *ChordState {
	if previous == nil || now-previous.LastSeen >= cd.params.HoldTime {
		return nil
	}
	return previous
}

// Analyze runs peak picking, pitch mapping, chroma folding and template
// scoring without hysteresis
func (cd *ChordDetector) Analyze(spec spectral.Spectrum) Detection {
	return cd.analyze(spec, nil)
}

func (cd *ChordDetector) analyze(spec spectral.Spectrum, previous *ChordState) Detection {
	var d Detection

	if cd.params.MaxFlatness > 0 {
		d.Flatness = cd.flatness.Compute(spec, cd.params.MinFrequency, cd.params.MaxFrequency)
		if d.Flatness > cd.params.MaxFlatness {
			return d
		}
	}

	cd.peaks = cd.peakPicker.DetectPeaks(cd.peaks, spec)
	harmonic.AssignHarmonics(cd.peaks, cd.params.MaxPartial, cd.params.CentsTolerance)
	d.Peaks = cd.peaks

	cd.pitches = cd.pitches[:0]
	for _, p := range cd.peaks {
		note, cents, ok := NearestPitch(p.Frequency, cd.params.CentsTolerance)
		if !ok {
			continue
		}
		pitch := DetectedPitch{
			Class:     ClassOf(note),
			MIDI:      note,
			Frequency: p.Frequency,
			Magnitude: p.Magnitude,
			Cents:     cents,
			Partial:   p.Partial,
		}
		cd.pitches = append(cd.pitches, pitch)
		// overtones count 1/n so they cannot outvote the notes played
		d.Chroma[pitch.Class] += p.Magnitude / float64(p.Partial)
	}
	d.Pitches = cd.pitches

	peak := floats.Max(d.Chroma[:])
	if peak <= 0 {
		return d
	}
	floats.Scale(1/peak, d.Chroma[:])

	for _, v := range d.Chroma {
		if v >= cd.params.StrongClass {
			d.StrongCount++
		}
	}
	if d.StrongCount < cd.params.MinPitchClasses {
		return d
	}

	d.Best, d.Found = cd.bestCandidate(&d.Chroma, previous)
	return d
}

// bestCandidate scores every root and template. Scores within tieEpsilon
// are ties, and a tie goes to the previous chord.
func (cd *ChordDetector) bestCandidate(chroma *[12]float64, previous *ChordState) (Candidate, bool) {
	const tieEpsilon = 1e-9

	total := floats.Sum(chroma[:])
	best := Candidate{Score: math.Inf(-1)}

	for ti, t := range cd.catalogue.templates {
		classes := cd.catalogue.classes[ti]
		for root := range 12 {
			strong := 0
			energy := 0.0
			for _, pc := range classes {
				v := chroma[(root+pc)%12]
				energy += v
				if v >= cd.params.StrongClass {
					strong++
				}
			}
			if strong == 0 {
				continue
			}

			recall := float64(strong) / float64(len(classes))
			precision := energy / total
			score := t.Weight * 2 * recall * precision / (recall + precision)

			better := score > best.Score+tieEpsilon
			tie := math.Abs(score-best.Score) <= tieEpsilon
			if better || (tie && previous.Is(PitchClass(root), t.Name)) {
				best = Candidate{
					Root:      PitchClass(root),
					Template:  t.Name,
					Score:     score,
					Recall:    recall,
					Precision: precision,
				}
			}
		}
	}

	if best.Score < cd.params.MinConfidence {
		return best, false
	}
	return best, true
}
