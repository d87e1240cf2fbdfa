package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/RyanBlaney/sonido-arp/effects"
	"github.com/RyanBlaney/sonido-arp/engine"
	"github.com/RyanBlaney/sonido-arp/synth"
)

const shellHelp = `commands:
  start | stop | status | tone (440 Hz test tone)
  tempo <60-200>|+n|-n       pattern <name>
  synth <name>               duration <0.5-10 seconds>
  gain <0-2>                 delay on|off|[echo|multi] <division> [feedback [wet]]
  feedback <0-0.9>           wet <0-1>
  patterns | synths | divisions | help | quit`

// Shell is the interactive control surface. Every control command goes
// through the controller's command channel, the same as any other client.
type Shell struct {
	cmds     chan<- engine.Command
	patterns []string
	out      io.Writer
}

func NewShell(cmds chan<- engine.Command, patterns []string, out io.Writer) *Shell {
	return &Shell{cmds: cmds, patterns: patterns, out: out}
}

// Handle executes one line and reports whether the shell should exit
func (s *Shell) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return true
	case "patterns":
		fmt.Fprintln(s.out, strings.Join(s.patterns, " "))
		return true
	case "synths":
		fmt.Fprintln(s.out, strings.Join(synth.Kinds(), " "))
		return true
	case "divisions":
		fmt.Fprintln(s.out, strings.Join(effects.Divisions(), " "))
		return true
	}

	cmd, err := engine.ParseCommand(line)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		if errors.Is(err, engine.ErrUnknownCommand) {
			fmt.Fprintln(s.out, "type help for the command list")
		}
		return true
	}

	reply, err := engine.Submit(ctx, s.cmds, cmd)
	if err != nil {
		return false
	}
	if reply.Err != nil {
		fmt.Fprintf(s.out, "error: %v\n", reply.Err)
		return true
	}
	if cmd.Kind == engine.CmdStatus {
		fmt.Fprintln(s.out, reply.Status.String())
	} else {
		fmt.Fprintf(s.out, "ok (version %d)\n", reply.Status.Version)
	}
	return true
}

func (s *Shell) completer() readline.AutoCompleter {
	items := func(names []string) []readline.PrefixCompleterInterface {
		out := make([]readline.PrefixCompleterInterface, 0, len(names))
		for _, n := range names {
			out = append(out, readline.PcItem(n))
		}
		return out
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("start"),
		readline.PcItem("stop"),
		readline.PcItem("status"),
		readline.PcItem("tone"),
		readline.PcItem("tempo"),
		readline.PcItem("pattern", items(s.patterns)...),
		readline.PcItem("synth", items(synth.Kinds())...),
		readline.PcItem("duration"),
		readline.PcItem("gain"),
		readline.PcItem("delay", append(items(append([]string{"on", "off"}, effects.Modes()...)), items(effects.Divisions())...)...),
		readline.PcItem("feedback"),
		readline.PcItem("wet"),
		readline.PcItem("patterns"),
		readline.PcItem("synths"),
		readline.PcItem("divisions"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// newReadline opens the terminal with history in the user's home directory
func (s *Shell) newReadline() (*readline.Instance, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return readline.NewEx(&readline.Config{
		Prompt:          "arp> ",
		HistoryFile:     filepath.Join(home, ".sonido_arp_history"),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
}

// Run reads lines from rl until the user quits or ctx is done
func (s *Shell) Run(ctx context.Context, rl *readline.Instance) {
	stop := context.AfterFunc(ctx, func() { rl.Close() })
	defer stop()

	fmt.Fprintln(s.out, "sonido-arp: type help for commands, start to begin")
	for {
		line, err := rl.Readline()
		if err != nil {
			// ErrInterrupt, io.EOF, or a closed terminal
			return
		}
		if !s.Handle(ctx, line) {
			return
		}
	}
}
