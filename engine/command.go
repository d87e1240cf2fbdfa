package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-arp/config"
	"github.com/RyanBlaney/sonido-arp/effects"
)

// ErrUnknownCommand is returned for text that names no command
var ErrUnknownCommand = errors.New("unknown command")

type CommandKind int

const (
	CmdStatus CommandKind = iota
	CmdStart
	CmdStop
	CmdTempo
	CmdPattern
	CmdSynth
	CmdDuration
	CmdGain
	CmdDelay
	CmdTone
)

// Command is one control message for Controller.Run. Only the argument
// field matching Kind is read.
type Command struct {
	Kind  CommandKind
	Int   int
	// Relative makes Int a change to the current value (tempo +5)
	Relative bool
	Float float64
	Name  string
	Delay DelayArgs

	// Reply, when set, receives the outcome. It should be buffered.
	Reply chan<- Reply
}

type Reply struct {
	Status Status
	Err    error
}

// DelayArgs is a partial delay update; unset fields keep their value
type DelayArgs struct {
	Enabled  *bool
	Mode     string
	Division string
	Feedback *float64
	Wet      *float64
}

func (a DelayArgs) apply(s effects.Settings) effects.Settings {
	if a.Enabled != nil {
		s.Enabled = *a.Enabled
	}
	if a.Mode != "" {
		s.Mode = a.Mode
	}
	if a.Division != "" {
		s.Division = a.Division
	}
	if a.Feedback != nil {
		s.Feedback = *a.Feedback
	}
	if a.Wet != nil {
		s.Wet = *a.Wet
	}
	return s
}

// Commands lists the text commands ParseCommand accepts
var Commands = []string{"status", "start", "stop", "tempo", "pattern", "synth", "duration", "gain", "delay", "feedback", "wet", "tone"}

// ParseCommand turns one line of text into a Command. Arguments are checked
// for syntax only; ranges and names are validated when the command is
// applied.
//
//	tempo 128
//	tempo -10
//	pattern up_down
//	delay 1/8D 0.4 0.3
//	delay multi 1/4
//	delay off
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "status":
		return Command{Kind: CmdStatus}, nil
	case "start":
		return Command{Kind: CmdStart}, nil
	case "stop":
		return Command{Kind: CmdStop}, nil
	case "tempo", "bpm":
		v, err := intArg(name, args)
		relative := err == nil && strings.ContainsAny(args[0][:1], "+-")
		return Command{Kind: CmdTempo, Int: v, Relative: relative}, err
	case "tone", "test_audio":
		return Command{Kind: CmdTone}, nil
	case "pattern":
		v, err := nameArg(name, args)
		return Command{Kind: CmdPattern, Name: v}, err
	case "synth":
		v, err := nameArg(name, args)
		return Command{Kind: CmdSynth, Name: v}, err
	case "duration":
		v, err := floatArg(name, args)
		return Command{Kind: CmdDuration, Float: v}, err
	case "gain":
		v, err := floatArg(name, args)
		return Command{Kind: CmdGain, Float: v}, err
	case "feedback":
		v, err := floatArg(name, args)
		return Command{Kind: CmdDelay, Delay: DelayArgs{Feedback: &v}}, err
	case "wet", "wet_mix":
		v, err := floatArg(name, args)
		return Command{Kind: CmdDelay, Delay: DelayArgs{Wet: &v}}, err
	case "delay":
		return parseDelay(args)
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

func parseDelay(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, config.Invalid("delay", "", "usage: delay on|off|[echo|multi] <division> [feedback [wet]]")
	}
	enabled := true
	d := DelayArgs{Enabled: &enabled}
	if args[0] == effects.ModeEcho || args[0] == effects.ModeMulti {
		d.Mode = args[0]
		args = args[1:]
	}
	if len(args) == 0 {
		return Command{Kind: CmdDelay, Delay: d}, nil
	}
	switch args[0] {
	case "off":
		if d.Mode != "" {
			return Command{}, config.Invalid("delay", strings.Join(args, " "), "off takes no mode")
		}
		enabled = false
		return Command{Kind: CmdDelay, Delay: d}, nil
	case "on":
	default:
		// divisions carry upper-case T and D suffixes
		d.Division = strings.ToUpper(args[0])
	}
	if len(args) > 1 {
		v, err := parseNumber("feedback", args[1])
		if err != nil {
			return Command{}, err
		}
		d.Feedback = &v
	}
	if len(args) > 2 {
		v, err := parseNumber("wet", args[2])
		if err != nil {
			return Command{}, err
		}
		d.Wet = &v
	}
	return Command{Kind: CmdDelay, Delay: d}, nil
}

func nameArg(name string, args []string) (string, error) {
	if len(args) != 1 {
		return "", config.Invalid(name, strings.Join(args, " "), "expects one name")
	}
	return args[0], nil
}

func intArg(name string, args []string) (int, error) {
	s, err := nameArg(name, args)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, config.Invalid(name, s, "not an integer")
	}
	return v, nil
}

func floatArg(name string, args []string) (float64, error) {
	s, err := nameArg(name, args)
	if err != nil {
		return 0, err
	}
	return parseNumber(name, s)
}

func parseNumber(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, config.Invalid(name, s, "not a number")
	}
	return v, nil
}

// Submit posts cmd and waits for its reply
func Submit(ctx context.Context, cmds chan<- Command, cmd Command) (Reply, error) {
	reply := make(chan Reply, 1)
	cmd.Reply = reply
	select {
	case cmds <- cmd:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}
