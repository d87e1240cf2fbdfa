package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/effects"
	"github.com/RyanBlaney/sonido-arp/logging"
	"github.com/RyanBlaney/sonido-arp/synth"
)

// Controller is the single writer of the run state. Setters validate,
// then publish a new snapshot that the scheduler picks up on its next
// buffer. The mutex serializes writers only; the audio goroutine reads
// through the atomic pointer and never blocks.
type Controller struct {
	mu       sync.Mutex
	state    atomic.Pointer[RunState]
	patterns *arpeggio.PatternTable
	live     telemetry
	logger   logging.Logger
}

// NewController validates initial and publishes it as version 1
func NewController(initial RunState, patterns *arpeggio.PatternTable, logger logging.Logger) (*Controller, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if err := initial.validate(patterns); err != nil {
		return nil, fmt.Errorf("initial run state: %w", err)
	}
	initial.Version = 1

	c := &Controller{
		patterns: patterns,
		logger:   logger.WithFields(logging.Fields{"component": "controller"}),
	}
	c.state.Store(&initial)
	return c, nil
}

// Snapshot returns the current run state. The value must not be modified.
func (c *Controller) Snapshot() *RunState {
	return c.state.Load()
}

// Patterns returns the injected pattern table
func (c *Controller) Patterns() *arpeggio.PatternTable {
	return c.patterns
}

// update applies fn to a copy of the current state. A failed fn leaves the
// published state untouched; an fn that changes nothing publishes nothing.
func (c *Controller) update(what string, fn func(*RunState) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Load()
	next := *cur
	if err := fn(&next); err != nil {
		c.logger.Warn("rejected control change", logging.Fields{"control": what, "error": err.Error()})
		return err
	}
	if next.sameControls(cur) {
		return nil
	}
	next.Version = cur.Version + 1
	c.state.Store(&next)

	c.logger.Info("control changed", logging.Fields{
		"control": what,
		"version": next.Version,
	})
	return nil
}

// Start moves the arpeggiator to Running on the next tick
func (c *Controller) Start() {
	_ = c.update("start", func(s *RunState) error {
		s.Running = true
		return nil
	})
}

// Stop returns the arpeggiator to Idle; sounding notes fade out through
// their normal release
func (c *Controller) Stop() {
	_ = c.update("stop", func(s *RunState) error {
		s.Running = false
		return nil
	})
}

// SetTempo sets the arpeggio tempo in BPM. The new tick length applies from
// the next tick; ticks already placed keep their position.
func (c *Controller) SetTempo(bpm int) error {
	return c.update("tempo", func(s *RunState) error {
		if err := arpeggio.ValidateTempo(bpm); err != nil {
			return err
		}
		s.Tempo = bpm
		return nil
	})
}

// AdjustTempo changes the tempo by delta BPM, validating the result
func (c *Controller) AdjustTempo(delta int) error {
	return c.update("tempo", func(s *RunState) error {
		bpm := s.Tempo + delta
		if err := arpeggio.ValidateTempo(bpm); err != nil {
			return err
		}
		s.Tempo = bpm
		return nil
	})
}

// SetPattern selects a pattern from the injected table
func (c *Controller) SetPattern(name string) error {
	return c.update("pattern", func(s *RunState) error {
		if err := c.patterns.Validate(name); err != nil {
			return err
		}
		s.Pattern = name
		return nil
	})
}

// SetSynth selects the voice used for notes started after the change
func (c *Controller) SetSynth(name string) error {
	return c.update("synth", func(s *RunState) error {
		kind, err := synth.ParseKind(name)
		if err != nil {
			return err
		}
		s.Synth = kind
		return nil
	})
}

// SetDuration sets the phrase length in seconds
func (c *Controller) SetDuration(seconds float64) error {
	return c.update("duration", func(s *RunState) error {
		if err := arpeggio.ValidateDuration(seconds); err != nil {
			return err
		}
		s.Duration = seconds
		return nil
	})
}

// SetGain sets the arpeggio output level
func (c *Controller) SetGain(gain float64) error {
	return c.update("gain", func(s *RunState) error {
		if err := validateGain(gain); err != nil {
			return err
		}
		s.Gain = gain
		return nil
	})
}

// SetDelay replaces every delay setting at once
func (c *Controller) SetDelay(d effects.Settings) error {
	return c.update("delay", func(s *RunState) error {
		if err := d.Validate(); err != nil {
			return err
		}
		s.Delay = d
		return nil
	})
}

// UpdateDelay changes only the delay fields present in args
func (c *Controller) UpdateDelay(args DelayArgs) error {
	return c.update("delay", func(s *RunState) error {
		d := args.apply(s.Delay)
		if err := d.Validate(); err != nil {
			return err
		}
		s.Delay = d
		return nil
	})
}

// PlayTone asks the scheduler for a one second 440 Hz sine, whether or not
// the arpeggiator is running
func (c *Controller) PlayTone() {
	_ = c.update("tone", func(s *RunState) error {
		s.Tone++
		return nil
	})
}

// Status combines the current controls with the audio goroutine's latest
// published values
func (c *Controller) Status() Status {
	s := c.state.Load()
	st := Status{
		Running:  s.Running,
		Tempo:    s.Tempo,
		Pattern:  s.Pattern,
		Synth:    s.Synth.String(),
		Duration: s.Duration,
		Gain:     s.Gain,
		Delay:    s.Delay,
		Version:  s.Version,

		ActiveChord:  "none",
		InputRMS:     math.Float64frombits(c.live.inputRMS.Load()),
		InputPeak:    math.Float64frombits(c.live.inputPeak.Load()),
		InputDC:      math.Float64frombits(c.live.inputDC.Load()),
		ActiveVoices: int(c.live.voices.Load()),
		Stolen:       c.live.stolen.Load(),
		Faults:       c.live.faults.Load(),
		Dropped:      c.live.dropped.Load(),
		Detections:   c.live.detections.Load(),
		Buffers:      c.live.buffers.Load(),
	}
	if chord := c.live.chord.Load(); chord != nil {
		st.ActiveChord = chord.Name()
		st.Confidence = chord.Confidence
		st.ChordPitches = append([]int(nil), chord.Pitches...)
	}
	return st
}

// Run applies commands until ctx is done or cmds is closed
func (c *Controller) Run(ctx context.Context, cmds <-chan Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			err := c.Apply(cmd)
			if cmd.Reply != nil {
				// replies are buffered by the sender; never stall the loop
				select {
				case cmd.Reply <- Reply{Status: c.Status(), Err: err}:
				default:
				}
			}
		}
	}
}

// Apply executes one command synchronously
func (c *Controller) Apply(cmd Command) error {
	switch cmd.Kind {
	case CmdStart:
		c.Start()
	case CmdStop:
		c.Stop()
	case CmdTempo:
		if cmd.Relative {
			return c.AdjustTempo(cmd.Int)
		}
		return c.SetTempo(cmd.Int)
	case CmdPattern:
		return c.SetPattern(cmd.Name)
	case CmdSynth:
		return c.SetSynth(cmd.Name)
	case CmdDuration:
		return c.SetDuration(cmd.Float)
	case CmdGain:
		return c.SetGain(cmd.Float)
	case CmdDelay:
		return c.UpdateDelay(cmd.Delay)
	case CmdTone:
		c.PlayTone()
	case CmdStatus:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}
