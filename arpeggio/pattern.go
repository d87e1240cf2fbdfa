package arpeggio

import (
	"fmt"

	"github.com/RyanBlaney/sonido-arp/config"
)

// Order selects which chord tone a step plays
type Order int

const (
	OrderUp Order = iota
	OrderDown
	OrderUpDown
	OrderDownUp
	OrderRandom
	OrderOctaveUp
	OrderOctaveDown
)

func (o Order) String() string {
	switch o {
	case OrderUp:
		return "ascending"
	case OrderDown:
		return "descending"
	case OrderUpDown:
		return "up-then-down"
	case OrderDownUp:
		return "down-then-up"
	case OrderRandom:
		return "seeded shuffle"
	case OrderOctaveUp:
		return "ascending across octaves"
	case OrderOctaveDown:
		return "descending across octaves"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// Beat is one onset slot of a rhythm
type Beat struct {
	Ticks  int     `json:"ticks"`  // slot length on the sixteenth grid
	Accent float64 `json:"accent"` // note velocity, 0..1
	Rest   bool    `json:"rest"`
}

// Pattern pairs a pitch order with a rhythm. Rhythmic variants share the
// ascending order and only differ in slot lengths and accents.
type Pattern struct {
	Name         string  `json:"name"`
	Order        Order   `json:"order"`
	Rhythm       []Beat  `json:"rhythm"` // cycled
	Gate         float64 `json:"gate"`   // sounding fraction of a slot, above 1 overlaps the next note
	OctaveAccent float64 `json:"octave_accent"`
	Description  string  `json:"description"`
}

// CycleLength is the number of steps after which the order repeats
func (p *Pattern) CycleLength(n, octaveSpan int) int {
	if n <= 0 {
		return 0
	}
	switch p.Order {
	case OrderUpDown, OrderDownUp:
		if n == 1 {
			return 1
		}
		return 2*n - 2
	case OrderOctaveUp, OrderOctaveDown:
		return n * max(octaveSpan, 1)
	default:
		return n
	}
}

// Pitch is the pure pitch-selection function: the MIDI note played at step
// for an ascending pitch list. It returns ok=false only for an empty chord.
func (p *Pattern) Pitch(pitches []int, step, octaveSpan int, seed uint64) (note int, octave int, ok bool) {
	n := len(pitches)
	if n == 0 {
		return 0, 0, false
	}
	step = max(step, 0)
	pos := step % p.CycleLength(n, octaveSpan)

	switch p.Order {
	case OrderDown:
		return pitches[n-1-pos], 0, true
	case OrderUpDown:
		if pos < n {
			return pitches[pos], 0, true
		}
		return pitches[2*n-2-pos], 0, true
	case OrderDownUp:
		if pos < n {
			return pitches[n-1-pos], 0, true
		}
		return pitches[pos-n+1], 0, true
	case OrderRandom:
		return pitches[shuffled(n, uint64(step/n), pos, seed)], 0, true
	case OrderOctaveUp, OrderOctaveDown:
		span := max(octaveSpan, 1)
		oct := pos / n
		idx := pos % n
		if p.Order == OrderOctaveDown {
			oct = span - 1 - oct
			idx = n - 1 - idx
		}
		// octaves are centred on the voiced chord: span 3 plays -1, 0, +1
		octave = oct - (span-1)/2
		return pitches[idx] + 12*octave, octave, true
	default:
		return pitches[pos], 0, true
	}
}

// Velocity returns the note velocity for a beat at a given octave offset
func (p *Pattern) Velocity(beat Beat, octave int) float64 {
	return min(1, max(0, beat.Accent+p.OctaveAccent*float64(octave)))
}

// shuffled returns the index at pos of a Fisher-Yates permutation of n
// elements. The permutation is a pure function of seed and cycle, so every
// cycle visits each chord tone once and a fixed seed replays exactly.
func shuffled(n int, cycle uint64, pos int, seed uint64) int {
	var perm [16]int
	if n > len(perm) {
		return int(splitmix64(seed^cycle*0x9e3779b97f4a7c15^uint64(pos)) % uint64(n))
	}
	for i := range n {
		perm[i] = i
	}
	state := seed ^ (cycle+1)*0x9e3779b97f4a7c15
	for i := n - 1; i > 0; i-- {
		state = splitmix64(state)
		j := int(state % uint64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[pos]
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// PatternTable is the immutable, injected set of patterns
type PatternTable struct {
	patterns []Pattern
	index    map[string]int
}

// NewPatternTable validates and freezes patterns
func NewPatternTable(patterns ...Pattern) (*PatternTable, error) {
	t := &PatternTable{index: make(map[string]int, len(patterns))}
	for _, p := range patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("pattern without name")
		}
		if _, dup := t.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate pattern %q", p.Name)
		}
		if len(p.Rhythm) == 0 {
			return nil, fmt.Errorf("pattern %q has no rhythm", p.Name)
		}
		for _, b := range p.Rhythm {
			if b.Ticks < 1 {
				return nil, fmt.Errorf("pattern %q has a beat shorter than one tick", p.Name)
			}
		}
		if p.Gate <= 0 || p.Gate > 2 {
			return nil, fmt.Errorf("pattern %q gate %v outside (0, 2]", p.Name, p.Gate)
		}
		frozen := p
		frozen.Rhythm = append([]Beat(nil), p.Rhythm...)
		t.index[p.Name] = len(t.patterns)
		t.patterns = append(t.patterns, frozen)
	}
	if len(t.patterns) == 0 {
		return nil, fmt.Errorf("empty pattern table")
	}
	return t, nil
}

// Lookup finds a pattern by name. The pattern must not be modified.
func (t *PatternTable) Lookup(name string) (*Pattern, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.patterns[i], true
}

// Validate returns config.ErrInvalidParameter for unknown names
func (t *PatternTable) Validate(name string) error {
	if _, ok := t.index[name]; !ok {
		return config.Invalid("pattern", name, fmt.Sprintf("unknown pattern, have %v", t.Names()))
	}
	return nil
}

// Names lists pattern names in table order
func (t *PatternTable) Names() []string {
	names := make([]string, len(t.patterns))
	for i, p := range t.patterns {
		names[i] = p.Name
	}
	return names
}

// Patterns returns a copy of the table in order
func (t *PatternTable) Patterns() []Pattern {
	return append([]Pattern(nil), t.patterns...)
}
