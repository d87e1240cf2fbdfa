package arpeggio

import (
	"fmt"

	"github.com/RyanBlaney/sonido-arp/config"
)

// NoteEvent is one note emitted by the engine. Immutable once emitted.
type NoteEvent struct {
	Pitch         int     `json:"pitch"`    // MIDI note
	Velocity      float64 `json:"velocity"` // 0..1
	StartTick     int64   `json:"start_tick"`
	DurationTicks int     `json:"duration_ticks"` // slot length
	Gate          float64 `json:"gate"`           // sounding fraction of the slot
}

// Settings is the slice of the run state the engine reads each tick
type Settings struct {
	Running     bool
	Pattern     string
	PhraseTicks int // restart the pattern every N ticks, 0 never
}

// StepState is the engine's per-stream position. The zero value is Idle.
type StepState struct {
	Index      int   // pattern step, advances once per onset slot
	Countdown  int   // ticks left in the current slot
	Beat       int   // position in the rhythm
	PhraseTick int   // ticks since the phrase began
	Tick       int64 // ticks since Running began
	running    bool
}

// Running reports whether the state machine is in Running
func (s *StepState) Running() bool {
	return s.running
}

// Reset returns the state to Idle
func (s *StepState) Reset() {
	*s = StepState{}
}

// Options are fixed for the lifetime of an engine
type Options struct {
	OctaveSpan int
	Seed       uint64
}

// Engine sequences chord tones on a sixteenth-note tick grid. It holds no
// mutable state of its own; everything that advances lives in StepState.
type Engine struct {
	table *PatternTable
	opts  Options
}

// NewEngine creates an engine over an injected pattern table
func NewEngine(table *PatternTable, opts Options) *Engine {
	if opts.OctaveSpan < 1 {
		opts.OctaveSpan = 1
	}
	return &Engine{table: table, opts: opts}
}

// Table returns the injected pattern table
func (e *Engine) Table() *PatternTable {
	return e.table
}

// Tick advances st by one tick of the grid and returns the note that starts
// on it, if any. pitches must be ascending; an empty slice is a rest that
// still advances the step index, so a returning chord resumes in phase.
func (e *Engine) Tick(s Settings, pitches []int, st *StepState) (NoteEvent, bool) {
	if !s.Running {
		if st.running {
			st.Reset()
		}
		return NoteEvent{}, false
	}
	if !st.running {
		*st = StepState{running: true}
	}

	pattern, ok := e.table.Lookup(s.Pattern)
	if !ok {
		// names are validated before they reach the run state
		st.Tick++
		return NoteEvent{}, false
	}

	if s.PhraseTicks > 0 && st.PhraseTick >= s.PhraseTicks {
		st.PhraseTick = 0
		st.Index = 0
		st.Beat = 0
		st.Countdown = 0
	}

	var (
		ev      NoteEvent
		emitted bool
	)
	if st.Countdown <= 0 {
		beat := pattern.Rhythm[st.Beat%len(pattern.Rhythm)]
		st.Countdown = beat.Ticks
		if !beat.Rest {
			if note, octave, ok := pattern.Pitch(pitches, st.Index, e.opts.OctaveSpan, e.opts.Seed); ok {
				ev = NoteEvent{
					Pitch:         note,
					Velocity:      pattern.Velocity(beat, octave),
					StartTick:     st.Tick,
					DurationTicks: beat.Ticks,
					Gate:          pattern.Gate,
				}
				emitted = true
			}
		}
		st.Index++
		st.Beat = (st.Beat + 1) % len(pattern.Rhythm)
	}

	st.Countdown--
	st.PhraseTick++
	st.Tick++
	return ev, emitted
}

// ValidateTempo enforces the supported BPM range
func ValidateTempo(bpm int) error {
	if bpm < config.MinTempo || bpm > config.MaxTempo {
		return config.Invalid("tempo", bpm, fmt.Sprintf("must be within [%d, %d] BPM", config.MinTempo, config.MaxTempo))
	}
	return nil
}

// ValidateDuration enforces the supported phrase length in seconds
func ValidateDuration(seconds float64) error {
	if !(seconds >= config.MinDuration && seconds <= config.MaxDuration) {
		return config.Invalid("duration", seconds, fmt.Sprintf("must be within [%.1f, %.1f] seconds", config.MinDuration, config.MaxDuration))
	}
	return nil
}

// TickSeconds is the grid interval: 60 / BPM / ticksPerBeat
func TickSeconds(bpm, ticksPerBeat int) float64 {
	return 60.0 / float64(bpm) / float64(ticksPerBeat)
}

// TickSamples is the grid interval in (fractional) samples
func TickSamples(bpm, ticksPerBeat, sampleRate int) float64 {
	return TickSeconds(bpm, ticksPerBeat) * float64(sampleRate)
}

// PhraseTicks converts a phrase length to whole ticks, at least one
func PhraseTicks(seconds float64, bpm, ticksPerBeat int) int {
	ticks := int(seconds/TickSeconds(bpm, ticksPerBeat) + 0.5)
	return max(ticks, 1)
}
