package engine

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-arp/algorithms/common"
	"github.com/RyanBlaney/sonido-arp/algorithms/tonal"
	"github.com/RyanBlaney/sonido-arp/effects"
)

// telemetry is written by the audio goroutine and read by Status. Every
// field is a single atomic, so readers may see fields from adjacent
// buffers but never a torn value.
type telemetry struct {
	chord      atomic.Pointer[tonal.ChordState]
	inputRMS   atomic.Uint64 // float64 bits
	inputPeak  atomic.Uint64 // float64 bits
	inputDC    atomic.Uint64 // float64 bits, mean of the raw input
	voices     atomic.Int32
	stolen     atomic.Int64
	faults     atomic.Int64
	dropped    atomic.Int64 // detection cycles lost to analyzer errors
	detections atomic.Int64
	buffers    atomic.Int64
}

func (t *telemetry) meter(in []float64) {
	t.inputRMS.Store(math.Float64bits(common.RMS(in)))
	t.inputPeak.Store(math.Float64bits(common.Peak(in)))
	t.inputDC.Store(math.Float64bits(common.Mean(in)))
}

// Status is a point-in-time view of the controls and of what the audio
// goroutine last published
type Status struct {
	Running  bool             `json:"running"`
	Tempo    int              `json:"tempo"`
	Pattern  string           `json:"pattern"`
	Synth    string           `json:"synth"`
	Duration float64          `json:"duration"`
	Gain     float64          `json:"gain"`
	Delay    effects.Settings `json:"delay"`
	Version  uint64           `json:"version"`

	ActiveChord  string  `json:"active_chord"` // "none" when silent
	Confidence   float64 `json:"confidence"`
	ChordPitches []int   `json:"chord_pitches,omitempty"`

	InputRMS     float64 `json:"input_rms"`
	InputPeak    float64 `json:"input_peak"`
	InputDC      float64 `json:"input_dc"`
	ActiveVoices int     `json:"active_voices"`
	Stolen       int64   `json:"stolen"`
	Faults       int64   `json:"faults"`
	Dropped      int64   `json:"dropped"`
	Detections   int64   `json:"detections"`
	Buffers      int64   `json:"buffers"`
}

func (s Status) String() string {
	var b strings.Builder
	state := "stopped"
	if s.Running {
		state = "running"
	}
	fmt.Fprintf(&b, "%s  %d BPM  pattern=%s  synth=%s  phrase=%.1fs  gain=%.2f\n",
		state, s.Tempo, s.Pattern, s.Synth, s.Duration, s.Gain)
	if s.Delay.Enabled {
		fmt.Fprintf(&b, "delay %s %s  feedback=%.2f  wet=%.2f\n", s.Delay.ModeName(), s.Delay.Division, s.Delay.Feedback, s.Delay.Wet)
	}
	fmt.Fprintf(&b, "chord %s (%.2f) %v\n", s.ActiveChord, s.Confidence, s.ChordPitches)
	fmt.Fprintf(&b, "input %.1f dBFS rms, %.1f dBFS peak, dc %+.3f  voices=%d stolen=%d faults=%d",
		common.LinearToDB(s.InputRMS), common.LinearToDB(s.InputPeak), s.InputDC, s.ActiveVoices, s.Stolen, s.Faults)
	return b.String()
}
