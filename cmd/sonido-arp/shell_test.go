package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/config"
	"github.com/RyanBlaney/sonido-arp/engine"
)

func newTestShell(t *testing.T) (*Shell, *engine.Controller, *bytes.Buffer) {
	t.Helper()
	initial, err := engine.InitialRunState(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	patterns := arpeggio.DefaultPatterns()
	ctrl, err := engine.NewController(initial, patterns, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cmds := make(chan engine.Command)
	go ctrl.Run(ctx, cmds)

	var out bytes.Buffer
	return NewShell(cmds, patterns.Names(), &out), ctrl, &out
}

func TestShellAppliesCommands(t *testing.T) {
	sh, ctrl, out := newTestShell(t)
	ctx := context.Background()

	for _, line := range []string{"start", "tempo 90", "pattern down", "synth sine", "delay 1/4 0.3 0.2"} {
		if !sh.Handle(ctx, line) {
			t.Fatalf("%q ended the shell", line)
		}
	}

	s := ctrl.Snapshot()
	if !s.Running || s.Tempo != 90 || s.Pattern != "down" || s.Synth.String() != "sine" {
		t.Errorf("state = %+v", *s)
	}
	if !s.Delay.Enabled || s.Delay.Division != "1/4" || s.Delay.Feedback != 0.3 || s.Delay.Wet != 0.2 {
		t.Errorf("delay = %+v", s.Delay)
	}
	if !strings.Contains(out.String(), "ok (version 6)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestShellReportsErrors(t *testing.T) {
	sh, ctrl, out := newTestShell(t)
	ctx := context.Background()

	sh.Handle(ctx, "tempo 500")
	sh.Handle(ctx, "wobble")
	if ctrl.Snapshot().Tempo != 120 {
		t.Error("rejected tempo was applied")
	}
	got := out.String()
	if !strings.Contains(got, "error: invalid parameter tempo=500") {
		t.Errorf("missing tempo error in %q", got)
	}
	if !strings.Contains(got, "type help") {
		t.Errorf("missing help hint in %q", got)
	}
}

func TestShellLocalCommands(t *testing.T) {
	sh, _, out := newTestShell(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want string
		more bool
	}{
		{"patterns", "up_down", true},
		{"synths", "square", true},
		{"divisions", "1/8D", true},
		{"help", "delay on|off", true},
		{"status", "stopped  120 BPM", true},
		{"", "", true},
		{"quit", "", false},
	}
	for _, tt := range tests {
		out.Reset()
		if more := sh.Handle(ctx, tt.line); more != tt.more {
			t.Errorf("Handle(%q) = %v, want %v", tt.line, more, tt.more)
		}
		if !strings.Contains(out.String(), tt.want) {
			t.Errorf("Handle(%q) printed %q, want %q", tt.line, out.String(), tt.want)
		}
	}
}

func TestShellStopsWhenContextEnds(t *testing.T) {
	// nothing reads this channel, so Submit can only return through ctx
	sh := NewShell(make(chan engine.Command), nil, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sh.Handle(ctx, "start") {
		t.Error("shell kept going after cancellation")
	}
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-backend", "demo", "-no-shell", "-midi-channel", "10"})
	if err != nil {
		t.Fatal(err)
	}
	if o.backend != "demo" || !o.noShell || o.midiChannel != 10 {
		t.Errorf("options = %+v", o)
	}

	if _, err := parseFlags([]string{"-midi-channel", "17"}); !errors.Is(err, config.ErrInvalidParameter) {
		t.Errorf("channel 17: %v", err)
	}
	if _, err := parseFlags([]string{"-bogus"}); err == nil || errors.Is(err, flag.ErrHelp) {
		t.Errorf("unknown flag: %v", err)
	}
}
