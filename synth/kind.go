package synth

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-arp/config"
)

// Kind selects a voice algorithm
type Kind int

const (
	Saw Kind = iota
	Square
	Sine
	Triangle
	FM
	Pluck
	Pad
	Lead
	Bass
)

var kindNames = [...]string{"saw", "square", "sine", "triangle", "fm", "pluck", "pad", "lead", "bass"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k names a voice
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// ParseKind resolves a synth name. Unknown names are rejected here, at
// selection time, so rendering never sees an invalid kind.
func ParseKind(name string) (Kind, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == lower {
			return Kind(i), nil
		}
	}
	return 0, config.Invalid("synth", name, fmt.Sprintf("unknown synth, have %v", Kinds()))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Kinds lists every voice name
func Kinds() []string {
	return append([]string(nil), kindNames[:]...)
}

// ADSR is an envelope preset in seconds; Sustain is a level in [0, 1]
type ADSR struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

// Preset returns the envelope each voice is shaped with
func (k Kind) Preset() ADSR {
	switch k {
	case Pad:
		return ADSR{Attack: 0.1, Decay: 0.1, Sustain: 0.7, Release: 0.3}
	case Lead:
		return ADSR{Attack: 0.01, Decay: 0.1, Sustain: 0.7, Release: 0.1}
	case Bass:
		return ADSR{Attack: 0.05, Decay: 0.1, Sustain: 0.7, Release: 0.4}
	case Pluck:
		// the string decays on its own; the envelope only removes the
		// excitation edge and the tail
		return ADSR{Attack: 0.002, Decay: 0.4, Sustain: 0.3, Release: 0.08}
	default:
		return ADSR{Attack: 0.01, Decay: 0.1, Sustain: 0.7, Release: 0.2}
	}
}
