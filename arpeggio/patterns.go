package arpeggio

var (
	eighths    = []Beat{{Ticks: 2, Accent: 0.8}}
	sixteenths = []Beat{{Ticks: 1, Accent: 0.8}}
)

// DefaultPatterns returns the built-in pattern table
func DefaultPatterns() *PatternTable {
	t, err := NewPatternTable(
		Pattern{Name: "up", Order: OrderUp, Rhythm: eighths, Gate: 0.9,
			Description: "classic ascending eighths"},
		Pattern{Name: "down", Order: OrderDown, Rhythm: eighths, Gate: 0.9,
			Description: "descending eighths"},
		Pattern{Name: "up_down", Order: OrderUpDown, Rhythm: eighths, Gate: 0.9,
			Description: "up then down without repeating the ends"},
		Pattern{Name: "down_up", Order: OrderDownUp, Rhythm: eighths, Gate: 0.9,
			Description: "down then up without repeating the ends"},
		Pattern{Name: "random", Order: OrderRandom, Rhythm: eighths, Gate: 0.9,
			Description: "seeded shuffle, every tone once per cycle"},
		Pattern{Name: "octave_up", Order: OrderOctaveUp, Rhythm: sixteenths, Gate: 0.9, OctaveAccent: 0.1,
			Description: "ascending sixteenths across the octave span"},
		Pattern{Name: "octave_down", Order: OrderOctaveDown, Rhythm: sixteenths, Gate: 0.9, OctaveAccent: 0.1,
			Description: "descending sixteenths across the octave span"},
		Pattern{Name: "trance_16th", Order: OrderUp, Gate: 0.5,
			Rhythm: []Beat{
				{Ticks: 1, Accent: 0.8},
				{Ticks: 1, Accent: 0.48},
				{Ticks: 1, Accent: 0.64},
				{Ticks: 1, Accent: 0.56},
			},
			Description: "gated sixteenths, strong-weak-medium-weak"},
		Pattern{Name: "rock_eighth", Order: OrderUp, Gate: 0.9,
			Rhythm: []Beat{
				{Ticks: 2, Accent: 0.8},
				{Ticks: 2, Accent: 0.56},
				{Ticks: 2, Accent: 0.72},
				{Ticks: 2, Accent: 0.56},
			},
			Description: "detached eighths accented on 1 and 3"},
		Pattern{Name: "dubstep_chop", Order: OrderUp, Gate: 0.8,
			Rhythm: []Beat{
				{Ticks: 2, Accent: 0.9},
				{Ticks: 1, Accent: 0.7},
				{Ticks: 1, Accent: 0.7},
				{Ticks: 2, Rest: true},
			},
			Description: "long-short-short-pause chops"},
		Pattern{Name: "ambient_flow", Order: OrderUp, Gate: 1.5,
			Rhythm: []Beat{
				{Ticks: 8, Accent: 0.5},
				{Ticks: 8, Accent: 0.4},
			},
			Description: "overlapping half notes"},
	)
	if err != nil {
		panic(err)
	}
	return t
}
