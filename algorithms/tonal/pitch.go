package tonal

import (
	"fmt"
	"math"
	"strings"
)

// PitchClass is a note identity modulo octave (0=C, 1=C#, ..., 11=B)
type PitchClass int

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// flats accepted by ParsePitchClass
var flatNames = map[string]PitchClass{"DB": 1, "EB": 3, "GB": 6, "AB": 8, "BB": 10}

func (p PitchClass) String() string {
	return noteNames[((int(p)%12)+12)%12]
}

// ParsePitchClass accepts sharps ("F#") and flats ("Bb"), case-insensitive
func ParsePitchClass(name string) (PitchClass, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range noteNames {
		if n == upper {
			return PitchClass(i), nil
		}
	}
	if pc, ok := flatNames[upper]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unknown note name %q", name)
}

// DetectedPitch is a spectral peak snapped to the equal-tempered grid
type DetectedPitch struct {
	Class     PitchClass `json:"class"`
	MIDI      int        `json:"midi"`
	Frequency float64    `json:"frequency"` // measured, not the grid frequency
	Magnitude float64    `json:"magnitude"`
	Cents     float64    `json:"cents"`   // deviation from the grid note
	Partial   int        `json:"partial"` // 1 for a fundamental
}

// A4 reference
const (
	referenceFrequency = 440.0
	referenceMIDI      = 69
)

// FrequencyToMIDI returns the fractional MIDI note number of freq
func FrequencyToMIDI(freq float64) float64 {
	return referenceMIDI + 12*math.Log2(freq/referenceFrequency)
}

// MIDIToFrequency returns the equal-tempered frequency of a MIDI note
func MIDIToFrequency(note int) float64 {
	return referenceFrequency * math.Exp2(float64(note-referenceMIDI)/12)
}

// NearestPitch snaps freq to the closest MIDI note. ok is false when the
// peak is further than toleranceCents from every tempered pitch.
func NearestPitch(freq, toleranceCents float64) (note int, cents float64, ok bool) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, 0, false
	}
	exact := FrequencyToMIDI(freq)
	rounded := math.Round(exact)
	cents = 100 * (exact - rounded)
	return int(rounded), cents, math.Abs(cents) <= toleranceCents
}

// ClassOf returns the pitch class of a MIDI note
func ClassOf(note int) PitchClass {
	return PitchClass(((note % 12) + 12) % 12)
}
