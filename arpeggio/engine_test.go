package arpeggio

import (
	"errors"
	"slices"
	"testing"

	"github.com/RyanBlaney/sonido-arp/config"
)

var triad = []int{60, 64, 67}

func steps(t *testing.T, name string, pitches []int, n int, seed uint64) []int {
	t.Helper()
	p, ok := DefaultPatterns().Lookup(name)
	if !ok {
		t.Fatalf("pattern %q missing", name)
	}
	out := make([]int, n)
	for i := range n {
		note, _, ok := p.Pitch(pitches, i, 3, seed)
		if !ok {
			t.Fatalf("%s: no pitch at step %d", name, i)
		}
		out[i] = note
	}
	return out
}

func TestPatternOrderOverTwoN(t *testing.T) {
	tests := []struct {
		pattern string
		want    []int
	}{
		{"up", []int{60, 64, 67, 60, 64, 67}},
		{"down", []int{67, 64, 60, 67, 64, 60}},
		{"up_down", []int{60, 64, 67, 64, 60, 64}},
		{"down_up", []int{67, 64, 60, 64, 67, 64}},
		{"octave_up", []int{48, 52, 55, 60, 64, 67}},
		{"octave_down", []int{79, 76, 72, 67, 64, 60}},
		{"trance_16th", []int{60, 64, 67, 60, 64, 67}},
		{"rock_eighth", []int{60, 64, 67, 60, 64, 67}},
		{"dubstep_chop", []int{60, 64, 67, 60, 64, 67}},
		{"ambient_flow", []int{60, 64, 67, 60, 64, 67}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got := steps(t, tt.pattern, triad, 2*len(triad), 1)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEveryPatternVisitsEveryPitchClass(t *testing.T) {
	for _, name := range DefaultPatterns().Names() {
		got := steps(t, name, triad, 2*len(triad), 42)
		for _, p := range triad {
			if !slices.ContainsFunc(got, func(n int) bool { return (n-p)%12 == 0 }) {
				t.Errorf("%s never plays pitch class of %d in %v", name, p, got)
			}
		}
	}
}

func TestRandomIsSeededShuffle(t *testing.T) {
	a := steps(t, "random", triad, 30, 7)
	b := steps(t, "random", triad, 30, 7)
	if !slices.Equal(a, b) {
		t.Fatal("same seed produced different sequences")
	}
	if c := steps(t, "random", triad, 30, 8); slices.Equal(a, c) {
		t.Error("different seeds produced the same 30 steps")
	}

	// each cycle is a permutation of the chord
	for cycle := 0; cycle < 10; cycle++ {
		window := slices.Clone(a[cycle*3 : cycle*3+3])
		slices.Sort(window)
		if !slices.Equal(window, triad) {
			t.Errorf("cycle %d = %v is not a permutation", cycle, a[cycle*3:cycle*3+3])
		}
	}
}

func TestCycleLengthSinglePitch(t *testing.T) {
	for _, name := range DefaultPatterns().Names() {
		p, _ := DefaultPatterns().Lookup(name)
		for step := range 5 {
			note, _, ok := p.Pitch([]int{62}, step, 3, 1)
			if !ok || (note-62)%12 != 0 {
				t.Errorf("%s step %d = %d,%v", name, step, note, ok)
			}
		}
		if _, _, ok := p.Pitch(nil, 0, 3, 1); ok {
			t.Errorf("%s produced a pitch for an empty chord", name)
		}
	}
}

type emitted struct {
	tick  int64
	pitch int
}

func run(e *Engine, s Settings, chord func(tick int) []int, ticks int, st *StepState) []emitted {
	var out []emitted
	for i := range ticks {
		if ev, ok := e.Tick(s, chord(i), st); ok {
			out = append(out, emitted{ev.StartTick, ev.Pitch})
		}
	}
	return out
}

func always(p []int) func(int) []int { return func(int) []int { return p } }

func TestTickEmitsOnRhythmSlots(t *testing.T) {
	e := NewEngine(DefaultPatterns(), Options{OctaveSpan: 3, Seed: 1})
	var st StepState

	got := run(e, Settings{Running: true, Pattern: "up"}, always(triad), 8, &st)
	want := []emitted{{0, 60}, {2, 64}, {4, 67}, {6, 60}}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTickEventShape(t *testing.T) {
	e := NewEngine(DefaultPatterns(), Options{OctaveSpan: 3, Seed: 1})
	var st StepState

	ev, ok := e.Tick(Settings{Running: true, Pattern: "rock_eighth"}, triad, &st)
	if !ok {
		t.Fatal("no event on first tick")
	}
	if ev.DurationTicks != 2 || ev.Gate != 0.9 || ev.Velocity != 0.8 || ev.StartTick != 0 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestRestsStillAdvanceIndex(t *testing.T) {
	e := NewEngine(DefaultPatterns(), Options{OctaveSpan: 3, Seed: 1})
	var st StepState

	// no chord for the first two slots, then the pattern resumes in phase
	chord := func(tick int) []int {
		if tick < 4 {
			return nil
		}
		return triad
	}
	got := run(e, Settings{Running: true, Pattern: "up"}, chord, 8, &st)
	want := []emitted{{4, 67}, {6, 60}}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRhythmRests(t *testing.T) {
	e := NewEngine(DefaultPatterns(), Options{OctaveSpan: 3, Seed: 1})
	var st StepState

	got := run(e, Settings{Running: true, Pattern: "dubstep_chop"}, always(triad), 8, &st)
	// slots: 0 (2 ticks), 2, 3, 4 rest (2 ticks), 6
	want := []emitted{{0, 60}, {2, 64}, {3, 67}, {6, 64}}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPhraseRestartsPattern(t *testing.T) {
	e := NewEngine(DefaultPatterns(), Options{OctaveSpan: 3, Seed: 1})
	var st StepState
	seventh := []int{60, 64, 67, 71}

	got := run(e, Settings{Running: true, Pattern: "up", PhraseTicks: 6}, always(seventh), 12, &st)
	want := []emitted{{0, 60}, {2, 64}, {4, 67}, {6, 60}, {8, 64}, {10, 67}}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestIdleResetsState(t *testing.T) {
	e := NewEngine(DefaultPatterns(), Options{OctaveSpan: 3, Seed: 1})
	var st StepState
	on := Settings{Running: true, Pattern: "up"}

	run(e, on, always(triad), 5, &st)
	if !st.Running() || st.Index == 0 {
		t.Fatalf("state did not advance: %+v", st)
	}

	if _, ok := e.Tick(Settings{Pattern: "up"}, triad, &st); ok {
		t.Error("idle engine emitted a note")
	}
	if st.Running() || st.Index != 0 || st.Tick != 0 {
		t.Errorf("stop did not reset state: %+v", st)
	}

	ev, ok := e.Tick(on, triad, &st)
	if !ok || ev.Pitch != 60 || ev.StartTick != 0 {
		t.Errorf("restart did not begin at step 0: %+v", ev)
	}
}

func TestValidateTempo(t *testing.T) {
	for _, bpm := range []int{59, 201, 0, -120} {
		if err := ValidateTempo(bpm); !errors.Is(err, config.ErrInvalidParameter) {
			t.Errorf("ValidateTempo(%d) = %v", bpm, err)
		}
	}
	for _, bpm := range []int{60, 120, 200} {
		if err := ValidateTempo(bpm); err != nil {
			t.Errorf("ValidateTempo(%d) = %v", bpm, err)
		}
	}
	if err := ValidateDuration(0.4); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("ValidateDuration(0.4) = %v", err)
	}
	if err := DefaultPatterns().Validate("arp_up"); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("Validate(arp_up) = %v", err)
	}
}

func TestTiming(t *testing.T) {
	if got := TickSamples(120, 4, 48000); got != 6000 {
		t.Errorf("TickSamples = %v, want 6000", got)
	}
	if got := PhraseTicks(2.0, 120, 4); got != 16 {
		t.Errorf("PhraseTicks = %d, want 16", got)
	}
	if got := PhraseTicks(0.01, 60, 4); got != 1 {
		t.Errorf("PhraseTicks floor = %d, want 1", got)
	}
}

func TestNewPatternTableRejects(t *testing.T) {
	cases := map[string]Pattern{
		"no rhythm":  {Name: "a", Gate: 1},
		"zero ticks": {Name: "a", Gate: 1, Rhythm: []Beat{{Ticks: 0}}},
		"bad gate":   {Name: "a", Gate: 0, Rhythm: eighths},
		"no name":    {Gate: 1, Rhythm: eighths},
	}
	for name, p := range cases {
		if _, err := NewPatternTable(p); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
