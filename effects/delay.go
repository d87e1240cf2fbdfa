package effects

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-arp/algorithms/common"
	"github.com/RyanBlaney/sonido-arp/config"
)

const MaxFeedback = 0.9

// Delay modes. Echo repeats the signal once per division; Multi adds taps
// at two and three divisions, each quieter than the last.
const (
	ModeEcho  = "echo"
	ModeMulti = "multi"
)

// multiTaps are the levels of the taps at 1, 2 and 3 divisions
var multiTaps = [...]float64{0.8, 0.6, 0.4}

// Modes lists the accepted delay modes
func Modes() []string {
	return []string{ModeEcho, ModeMulti}
}

// divisions maps a note division to its length in beats. "T" marks
// triplets, "D" dotted notes.
var divisions = map[string]float64{
	"1/32": 0.125,
	"1/16": 0.25,
	"1/8":  0.5,
	"1/4":  1,
	"1/2":  2,
	"1/1":  4,
	"3/8":  0.375,
	"3/4":  0.75,

	"1/16T": 0.25 * 2 / 3,
	"1/8T":  0.5 * 2 / 3,
	"1/4T":  2.0 / 3,

	"1/16D": 0.375,
	"1/8D":  0.75,
	"1/4D":  1.5,
	"1/2D":  3,
}

// Divisions lists the accepted note divisions, shortest first
func Divisions() []string {
	names := make([]string, 0, len(divisions))
	for name := range divisions {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(divisions[a], divisions[b]), strings.Compare(a, b))
	})
	return names
}

// Settings are the user-facing delay controls
type Settings struct {
	Enabled  bool
	Mode     string // empty means ModeEcho
	Division string
	Feedback float64
	Wet      float64
}

// SettingsFrom converts the config section
func SettingsFrom(c config.DelayConfig) Settings {
	return Settings{Enabled: c.Enabled, Mode: c.Mode, Division: c.Division, Feedback: c.Feedback, Wet: c.Wet}
}

// ModeName is Mode with the default filled in
func (s Settings) ModeName() string {
	if s.Mode == "" {
		return ModeEcho
	}
	return s.Mode
}

// Validate rejects unknown divisions and out-of-range levels
func (s Settings) Validate() error {
	if m := s.ModeName(); m != ModeEcho && m != ModeMulti {
		return config.Invalid("delay.mode", s.Mode, fmt.Sprintf("unknown mode, have %v", Modes()))
	}
	if _, ok := divisions[s.Division]; !ok {
		return config.Invalid("delay.division", s.Division, fmt.Sprintf("unknown division, have %v", Divisions()))
	}
	if !(s.Feedback >= 0 && s.Feedback <= MaxFeedback) {
		return config.Invalid("delay.feedback", s.Feedback, "must be within [0, 0.9]")
	}
	if !(s.Wet >= 0 && s.Wet <= 1) {
		return config.Invalid("delay.wet", s.Wet, "must be within [0, 1]")
	}
	return nil
}

// TempoDelay is a feedback echo whose time follows the tempo. The delay
// line is allocated once for the longest time it will ever need; Process
// does not allocate.
type TempoDelay struct {
	sampleRate int
	line       *common.DelayLine

	tempo    int
	division string
	delay    int
	multi    bool
	feedback float64
	wet      float64
}

// NewTempoDelay allocates maxSeconds of delay line
func NewTempoDelay(sampleRate int, maxSeconds float64) *TempoDelay {
	return &TempoDelay{
		sampleRate: sampleRate,
		line:       common.NewDelayLine(int(maxSeconds*float64(sampleRate)) + 1),
		delay:      1,
	}
}

// Update applies tempo and settings. Unchanged values cost a comparison,
// so it is safe to call once per buffer. Delays longer than the line are
// clamped to its capacity.
func (d *TempoDelay) Update(tempo int, s Settings) {
	d.feedback = min(max(s.Feedback, 0), MaxFeedback)
	d.wet = min(max(s.Wet, 0), 1)
	d.multi = s.Mode == ModeMulti
	if tempo == d.tempo && s.Division == d.division {
		return
	}
	beats, ok := divisions[s.Division]
	if !ok || tempo <= 0 {
		return
	}
	d.tempo = tempo
	d.division = s.Division
	seconds := 60 / float64(tempo) * beats
	d.delay = min(max(1, int(seconds*float64(d.sampleRate)+0.5)), d.line.Capacity())
}

// DelaySamples is the current echo time
func (d *TempoDelay) DelaySamples() int {
	return d.delay
}

// Process runs buf through the delay in place. The dry level is 1 - wet.
// Only the first tap feeds back, so multi mode is as stable as echo mode.
// Taps beyond the line's capacity read from its far end.
func (d *TempoDelay) Process(buf []float64) {
	dry := 1 - d.wet
	for i, x := range buf {
		first := d.line.Read(d.delay)
		echo := first
		if d.multi {
			echo = 0
			for k, level := range multiTaps {
				echo += level * d.line.Read((k+1)*d.delay)
			}
		}
		d.line.Write(x + d.feedback*first)
		buf[i] = dry*x + d.wet*echo
	}
}

// Clear drops every pending echo
func (d *TempoDelay) Clear() {
	d.line.Clear()
}
