package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/config"
	"github.com/RyanBlaney/sonido-arp/synth"
)

func newController(t *testing.T) *Controller {
	t.Helper()
	initial, err := InitialRunState(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewController(initial, arpeggio.DefaultPatterns(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestInitialRunState(t *testing.T) {
	c := newController(t)
	s := c.Snapshot()
	if s.Running || s.Tempo != 120 || s.Pattern != "up" || s.Synth != synth.Saw || s.Duration != 2 || s.Version != 1 {
		t.Errorf("initial state = %+v", *s)
	}

	cfg := config.DefaultConfig()
	cfg.Synth.Voice = "kazoo"
	if _, err := InitialRunState(cfg); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("unknown voice: %v", err)
	}

	bad := *s
	bad.Pattern = "sideways"
	if _, err := NewController(bad, arpeggio.DefaultPatterns(), nil); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("unknown pattern: %v", err)
	}
}

func TestSetTempoBoundaries(t *testing.T) {
	tests := []struct {
		bpm   int
		valid bool
	}{
		{59, false},
		{60, true},
		{128, true},
		{200, true},
		{201, false},
		{-1, false},
	}
	for _, tt := range tests {
		c := newController(t)
		before := c.Snapshot()

		err := c.SetTempo(tt.bpm)
		if tt.valid {
			if err != nil {
				t.Errorf("SetTempo(%d): %v", tt.bpm, err)
			}
			if c.Snapshot().Tempo != tt.bpm {
				t.Errorf("SetTempo(%d) not applied", tt.bpm)
			}
			continue
		}

		var perr *config.ParameterError
		if !errors.As(err, &perr) || perr.Name != "tempo" {
			t.Errorf("SetTempo(%d) = %v, want tempo ParameterError", tt.bpm, err)
		}
		if c.Snapshot() != before {
			t.Errorf("SetTempo(%d) changed the state after failing", tt.bpm)
		}
	}
}

func TestSetTempoIdempotent(t *testing.T) {
	c := newController(t)

	if err := c.SetTempo(128); err != nil {
		t.Fatal(err)
	}
	after := c.Snapshot()
	if after.Version != 2 {
		t.Fatalf("version = %d, want 2", after.Version)
	}

	if err := c.SetTempo(128); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot() != after {
		t.Error("setting the same tempo published a new snapshot")
	}

	c.Start()
	c.Start()
	if got := c.Snapshot().Version; got != 3 {
		t.Errorf("version after repeated Start = %d, want 3", got)
	}
}

func TestRelativeTempo(t *testing.T) {
	c := newController(t)

	if err := c.Apply(Command{Kind: CmdTempo, Int: 5, Relative: true}); err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().Tempo; got != 125 {
		t.Fatalf("tempo +5 from 120 = %d, want 125", got)
	}
	if err := c.AdjustTempo(-20); err != nil || c.Snapshot().Tempo != 105 {
		t.Errorf("tempo -20 = %d, %v", c.Snapshot().Tempo, err)
	}

	before := c.Snapshot()
	if err := c.AdjustTempo(-50); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("tempo below 60: %v", err)
	}
	if c.Snapshot() != before {
		t.Error("rejected adjustment changed the state")
	}

	// an absolute command with the same number is not a delta
	if err := c.Apply(Command{Kind: CmdTempo, Int: 90}); err != nil || c.Snapshot().Tempo != 90 {
		t.Errorf("tempo 90 = %d, %v", c.Snapshot().Tempo, err)
	}
}

func TestPlayToneAlwaysPublishes(t *testing.T) {
	c := newController(t)
	c.PlayTone()
	c.PlayTone()
	if s := c.Snapshot(); s.Tone != 2 || s.Version != 3 {
		t.Errorf("tone = %d, version = %d after two requests", s.Tone, s.Version)
	}
}

func TestSettersRejectWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Controller) error
	}{
		{"pattern", func(c *Controller) error { return c.SetPattern("sideways") }},
		{"synth", func(c *Controller) error { return c.SetSynth("kazoo") }},
		{"duration short", func(c *Controller) error { return c.SetDuration(0.4) }},
		{"duration long", func(c *Controller) error { return c.SetDuration(10.5) }},
		{"gain", func(c *Controller) error { return c.SetGain(2.5) }},
		{"delay division", func(c *Controller) error {
			d := c.Snapshot().Delay
			d.Division = "1/5"
			return c.SetDelay(d)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t)
			before := c.Snapshot()
			if err := tt.set(c); !errors.Is(err, config.ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
			if c.Snapshot() != before {
				t.Error("failed setter changed the state")
			}
		})
	}
}

func TestSettersApply(t *testing.T) {
	c := newController(t)

	if err := c.SetPattern("trance_16th"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSynth("PLUCK"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetDuration(0.5); err != nil {
		t.Fatal(err)
	}
	if err := c.SetGain(0); err != nil {
		t.Fatal(err)
	}

	s := c.Status()
	if s.Pattern != "trance_16th" || s.Synth != "pluck" || s.Duration != 0.5 || s.Gain != 0 {
		t.Errorf("status = %+v", s)
	}
	if s.Version != 5 {
		t.Errorf("version = %d, want 5", s.Version)
	}
	if s.ActiveChord != "none" {
		t.Errorf("active chord = %q before any audio", s.ActiveChord)
	}
}

func TestUpdateDelayPartial(t *testing.T) {
	c := newController(t)

	cmd, err := ParseCommand("delay 1/8d 0.6")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Apply(cmd); err != nil {
		t.Fatal(err)
	}
	d := c.Snapshot().Delay
	if !d.Enabled || d.Division != "1/8D" || d.Feedback != 0.6 || d.Wet != 0.35 {
		t.Errorf("delay = %+v", d)
	}

	cmd, _ = ParseCommand("feedback 0.95")
	if err := c.Apply(cmd); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("feedback 0.95 = %v", err)
	}
	if c.Snapshot().Delay.Feedback != 0.6 {
		t.Error("rejected feedback was applied")
	}

	cmd, _ = ParseCommand("delay off")
	if err := c.Apply(cmd); err != nil {
		t.Fatal(err)
	}
	if d := c.Snapshot().Delay; d.Enabled || d.Division != "1/8D" {
		t.Errorf("delay off = %+v", d)
	}
}

func TestRunAppliesCommands(t *testing.T) {
	c := newController(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmds := make(chan Command)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, cmds)
		close(done)
	}()

	reply, err := Submit(ctx, cmds, Command{Kind: CmdTempo, Int: 90})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Err != nil || reply.Status.Tempo != 90 {
		t.Errorf("reply = %+v", reply)
	}

	reply, err = Submit(ctx, cmds, Command{Kind: CmdTempo, Int: 300})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(reply.Err, config.ErrInvalidParameter) || reply.Status.Tempo != 90 {
		t.Errorf("reply = %+v", reply)
	}

	reply, err = Submit(ctx, cmds, Command{Kind: CmdStart})
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Status.Running {
		t.Error("start did not run")
	}

	close(cmds)
	<-done
}
