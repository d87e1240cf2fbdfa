package engine

import (
	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/config"
	"github.com/RyanBlaney/sonido-arp/effects"
	"github.com/RyanBlaney/sonido-arp/synth"
)

// RunState is one immutable snapshot of the user controls. The scheduler
// loads the current snapshot once per buffer and never sees a partial
// update; the controller publishes a new snapshot for every change.
type RunState struct {
	Running  bool             `json:"running"`
	Tempo    int              `json:"tempo"`
	Pattern  string           `json:"pattern"`
	Synth    synth.Kind       `json:"synth"`
	Duration float64          `json:"duration"` // phrase length in seconds
	Gain     float64          `json:"gain"`
	Delay    effects.Settings `json:"delay"`

	// Tone counts test tone requests; the scheduler plays one per increase
	Tone uint64 `json:"tone"`

	// Version increases by one with every published snapshot
	Version uint64 `json:"version"`
}

// InitialRunState builds the first snapshot from config. The arpeggiator
// starts stopped.
func InitialRunState(cfg *config.Config) (RunState, error) {
	kind, err := synth.ParseKind(cfg.Synth.Voice)
	if err != nil {
		return RunState{}, err
	}
	return RunState{
		Tempo:    cfg.Arpeggio.Tempo,
		Pattern:  cfg.Arpeggio.Pattern,
		Synth:    kind,
		Duration: cfg.Arpeggio.Duration,
		Gain:     cfg.Synth.Gain,
		Delay:    effects.SettingsFrom(cfg.Delay),
	}, nil
}

// validate checks every control against the tables that own them
func (s *RunState) validate(patterns *arpeggio.PatternTable) error {
	if err := arpeggio.ValidateTempo(s.Tempo); err != nil {
		return err
	}
	if err := patterns.Validate(s.Pattern); err != nil {
		return err
	}
	if !s.Synth.Valid() {
		return config.Invalid("synth", int(s.Synth), "unknown synth")
	}
	if err := arpeggio.ValidateDuration(s.Duration); err != nil {
		return err
	}
	if err := validateGain(s.Gain); err != nil {
		return err
	}
	return s.Delay.Validate()
}

// sameControls compares everything but the version
func (s *RunState) sameControls(o *RunState) bool {
	a, b := *s, *o
	a.Version, b.Version = 0, 0
	return a == b
}

func (s *RunState) arpeggio(ticksPerBeat int) arpeggio.Settings {
	return arpeggio.Settings{
		Running:     s.Running,
		Pattern:     s.Pattern,
		PhraseTicks: arpeggio.PhraseTicks(s.Duration, s.Tempo, ticksPerBeat),
	}
}

func validateGain(gain float64) error {
	if !(gain >= 0 && gain <= config.MaxGain) {
		return config.Invalid("gain", gain, "must be within [0, 2]")
	}
	return nil
}
