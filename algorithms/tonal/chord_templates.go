package tonal

import (
	"fmt"
	"slices"
)

// ChordTemplate is a chord quality expressed as semitone intervals above the
// root. Intervals above an octave (add9) fold onto their pitch class for
// matching but keep their height when voiced.
type ChordTemplate struct {
	Name      string  `json:"name"`
	Intervals []int   `json:"intervals"`
	Weight    float64 `json:"weight"` // template importance weight
}

// classes returns the distinct pitch classes of the template rooted at C
func (t ChordTemplate) classes() []int {
	var out []int
	for _, iv := range t.Intervals {
		pc := ((iv % 12) + 12) % 12
		if !slices.Contains(out, pc) {
			out = append(out, pc)
		}
	}
	return out
}

// Catalogue is the fixed set of chord templates a detector matches against.
// It is immutable once built and safe to share between goroutines.
type Catalogue struct {
	templates []ChordTemplate
	classes   [][]int
	index     map[string]int
}

// NewCatalogue validates and freezes a template list. Order matters: when two
// templates score the same, the earlier one wins unless the previous chord
// breaks the tie.
func NewCatalogue(templates ...ChordTemplate) (*Catalogue, error) {
	c := &Catalogue{index: make(map[string]int, len(templates))}
	for _, t := range templates {
		if t.Name == "" {
			return nil, fmt.Errorf("chord template without name")
		}
		if _, dup := c.index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate chord template %q", t.Name)
		}
		if len(t.Intervals) == 0 || t.Intervals[0] != 0 {
			return nil, fmt.Errorf("chord template %q must start at the root", t.Name)
		}
		if !slices.IsSorted(t.Intervals) {
			return nil, fmt.Errorf("chord template %q intervals must ascend", t.Name)
		}
		if t.Weight <= 0 || t.Weight > 1 {
			return nil, fmt.Errorf("chord template %q weight %v outside (0, 1]", t.Name, t.Weight)
		}

		frozen := ChordTemplate{Name: t.Name, Intervals: slices.Clone(t.Intervals), Weight: t.Weight}
		c.index[t.Name] = len(c.templates)
		c.templates = append(c.templates, frozen)
		c.classes = append(c.classes, frozen.classes())
	}
	if len(c.templates) == 0 {
		return nil, fmt.Errorf("empty chord catalogue")
	}
	return c, nil
}

// DefaultCatalogue returns the built-in triads, sevenths and dyads
func DefaultCatalogue() *Catalogue {
	c, err := NewCatalogue(
		ChordTemplate{Name: "major", Intervals: []int{0, 4, 7}, Weight: 1.0},
		ChordTemplate{Name: "minor", Intervals: []int{0, 3, 7}, Weight: 1.0},
		ChordTemplate{Name: "dominant7", Intervals: []int{0, 4, 7, 10}, Weight: 0.9},
		ChordTemplate{Name: "major7", Intervals: []int{0, 4, 7, 11}, Weight: 0.85},
		ChordTemplate{Name: "minor7", Intervals: []int{0, 3, 7, 10}, Weight: 0.85},
		ChordTemplate{Name: "diminished", Intervals: []int{0, 3, 6}, Weight: 0.8},
		ChordTemplate{Name: "augmented", Intervals: []int{0, 4, 8}, Weight: 0.7},
		ChordTemplate{Name: "sus2", Intervals: []int{0, 2, 7}, Weight: 0.7},
		ChordTemplate{Name: "sus4", Intervals: []int{0, 5, 7}, Weight: 0.7},
		ChordTemplate{Name: "add9", Intervals: []int{0, 4, 7, 14}, Weight: 0.75},
		ChordTemplate{Name: "power", Intervals: []int{0, 7}, Weight: 0.6},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of templates
func (c *Catalogue) Len() int {
	return len(c.templates)
}

// Lookup finds a template by name. The returned intervals must not be
// modified.
func (c *Catalogue) Lookup(name string) (ChordTemplate, bool) {
	i, ok := c.index[name]
	if !ok {
		return ChordTemplate{}, false
	}
	return c.templates[i], true
}

// Names lists template names in catalogue order
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.templates))
	for i, t := range c.templates {
		names[i] = t.Name
	}
	return names
}

// Voice returns the absolute MIDI pitches of template rooted at root, with
// the root in octave baseOctave (C4 = 60), ascending
func (c *Catalogue) Voice(root PitchClass, template string, baseOctave int) ([]int, error) {
	t, ok := c.Lookup(template)
	if !ok {
		return nil, fmt.Errorf("unknown chord template %q", template)
	}
	base := 12*(baseOctave+1) + int(root)
	pitches := make([]int, len(t.Intervals))
	for i, iv := range t.Intervals {
		pitches[i] = base + iv
	}
	return pitches, nil
}
