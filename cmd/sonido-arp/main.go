// Command sonido-arp listens to an instrument, detects the chord being
// played and arpeggiates it in time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-arp/algorithms/tonal"
	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/audio"
	"github.com/RyanBlaney/sonido-arp/config"
	"github.com/RyanBlaney/sonido-arp/engine"
	"github.com/RyanBlaney/sonido-arp/logging"
	"github.com/RyanBlaney/sonido-arp/midiout"
	"github.com/RyanBlaney/sonido-arp/transcode"
)

type options struct {
	configPath  string
	backend     string
	logLevel    string
	logFormat   string
	input       string
	midiOut     string
	midiChannel int
	noShell     bool
	start       bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("sonido-arp", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "JSON config file, defaults apply when empty")
	fs.StringVar(&o.backend, "backend", "", "audio backend, overrides the config: "+strings.Join(audio.Names(), ", "))
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error, overrides the config")
	fs.StringVar(&o.logFormat, "log-format", "", "text or json, overrides the config")
	fs.StringVar(&o.input, "input", "", "audio file to play in place of the demo progression, decoded with ffmpeg")
	fs.StringVar(&o.midiOut, "midi-out", "", "also send notes to the MIDI output whose name contains this, '*' for the first port")
	fs.IntVar(&o.midiChannel, "midi-channel", 1, "MIDI channel for -midi-out (1-16)")
	fs.BoolVar(&o.noShell, "no-shell", false, "run without the interactive shell; implies -start")
	fs.BoolVar(&o.start, "start", false, "start arpeggiating immediately")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.midiChannel < 1 || o.midiChannel > 16 {
		return o, config.Invalid("midi-channel", o.midiChannel, "must be within [1, 16]")
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "sonido-arp:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	if opts.input != "" {
		cfg.Input.File = opts.input
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}

	backend, err := audio.New(cfg.Backend)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(audio.Names(), ", "))
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	patterns := arpeggio.DefaultPatterns()
	cmds := make(chan engine.Command, 16)

	var (
		shell *Shell
		rl    *readline.Instance
		base  logging.Logger = logging.NewDefaultLogger()
	)
	if format == logging.JSONFormat {
		base = logging.NewLogger(logging.Options{Format: format, Level: level})
	}
	if !opts.noShell {
		shell = NewShell(cmds, patterns.Names(), os.Stdout)
		if rl, err = shell.newReadline(); err != nil {
			return fmt.Errorf("failed to open terminal: %w", err)
		}
		defer rl.Close()
		// log lines go above the prompt instead of through it, always as text
		shell.out = rl.Stdout()
		base = logging.NewWriterLogger(rl.Stdout())
	}
	base.SetLevel(level)

	// every logger below may be reached from the audio callback
	logger := logging.NewAsyncLogger(base, 1024)
	logger.SetLevel(level)
	logCtx, stopLogs := context.WithCancel(context.Background())
	logsDone := make(chan struct{})
	go func() {
		logger.Run(logCtx)
		close(logsDone)
	}()
	defer func() {
		stopLogs()
		<-logsDone
	}()
	logging.SetGlobalLogger(logger)

	// chord frames are transformed on the audio goroutine; one worker keeps
	// go-dsp from fanning out to GOMAXPROCS goroutines mid-callback. The
	// setting is process-wide.
	fft.SetWorkerPoolSize(1)

	initial, err := engine.InitialRunState(cfg)
	if err != nil {
		return err
	}
	initial.Running = opts.start || opts.noShell
	ctrl, err := engine.NewController(initial, patterns, logger)
	if err != nil {
		return err
	}

	schedOpts := engine.Options{
		Config:    cfg,
		Catalogue: tonal.DefaultCatalogue(),
		Logger:    logger,
	}
	if opts.midiOut != "" {
		port, err := midiout.OpenPort(strings.TrimPrefix(opts.midiOut, "*"))
		if err != nil {
			return err
		}
		sink := midiout.NewSink(port, uint8(opts.midiChannel-1), 256, logger)
		sinkDone := make(chan struct{})
		go func() {
			sink.Run(ctx)
			close(sinkDone)
		}()
		// the sink sends its note offs before the port goes away
		defer func() {
			cancel()
			<-sinkDone
			port.Close()
		}()
		schedOpts.Observer = sink
		logger.Info("midi output open", logging.Fields{"port": port.String(), "channel": opts.midiChannel})
	}

	sched, err := engine.NewScheduler(ctrl, schedOpts)
	if err != nil {
		return err
	}
	go ctrl.Run(ctx, cmds)

	stream := audio.StreamConfig{
		SampleRate: cfg.SampleRate,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	}
	if cfg.Input.File != "" {
		if stream.Source, err = decodeInput(ctx, cfg, logger); err != nil {
			return err
		}
		if backend.Name() == "portaudio" {
			logger.Warn("portaudio captures live input; ignoring input file", logging.Fields{"file": cfg.Input.File})
		}
	}

	errc := make(chan error, 1)
	go func() {
		errc <- backend.Run(ctx, stream, sched)
	}()
	logger.Info("sonido-arp running", logging.Fields{
		"backend":     backend.Name(),
		"sample_rate": cfg.SampleRate,
		"buffer_size": cfg.BufferSize,
		"running":     initial.Running,
	})

	if shell != nil {
		go func() {
			shell.Run(ctx, rl)
			cancel()
		}()
	}

	select {
	case err = <-errc:
		cancel()
	case <-ctx.Done():
		err = <-errc
	}

	st := ctrl.Status()
	logger.Info("sonido-arp stopped", logging.Fields{
		"buffers":    st.Buffers,
		"detections": st.Detections,
		"faults":     st.Faults,
		"dropped":    st.Dropped,
	})
	return err
}

func decodeInput(ctx context.Context, cfg *config.Config, logger logging.Logger) (audio.Source, error) {
	dc := transcode.DefaultDecoderConfig()
	dc.FFmpegPath = cfg.Input.FFmpegPath
	dc.SampleRate = cfg.SampleRate
	dc.MaxDuration = cfg.Input.MaxDuration

	pcm, err := transcode.NewDecoder(dc, logger).DecodeFile(ctx, cfg.Input.File)
	if err != nil {
		return nil, err
	}
	return audio.NewSamples(pcm, cfg.Input.Loop), nil
}
