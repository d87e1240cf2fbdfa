package engine

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/RyanBlaney/sonido-arp/algorithms/common"
	"github.com/RyanBlaney/sonido-arp/algorithms/filters"
	"github.com/RyanBlaney/sonido-arp/algorithms/spectral"
	"github.com/RyanBlaney/sonido-arp/algorithms/temporal"
	"github.com/RyanBlaney/sonido-arp/algorithms/tonal"
	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/config"
	"github.com/RyanBlaney/sonido-arp/effects"
	"github.com/RyanBlaney/sonido-arp/logging"
	"github.com/RyanBlaney/sonido-arp/synth"
	"gonum.org/v1/gonum/floats"
)

const (
	gateHysteresisDB = 6

	// test tone
	tonePitch   = 69 // A4, 440 Hz
	toneSeconds = 1
)

// NoteObserver is told about every emitted note. It is called on the audio
// goroutine and must not block.
type NoteObserver interface {
	ObserveNote(ev arpeggio.NoteEvent, gate time.Duration)
}

// Options wire a Scheduler to its collaborators. Catalogue and Patterns are
// shared read-only tables.
type Options struct {
	Config    *config.Config
	Catalogue *tonal.Catalogue
	Logger    logging.Logger // must not block, see logging.AsyncLogger
	Observer  NoteObserver
}

// DetectionParams maps the config section onto detector parameters
func DetectionParams(cfg *config.Config) tonal.ChordDetectionParams {
	d := cfg.Detection
	p := tonal.DefaultChordDetectionParams()
	p.MinFrequency = d.MinFrequency
	p.MaxFrequency = d.MaxFrequency
	p.NoiseFloor = d.NoiseFloor
	p.RelativeFloor = d.RelativeFloor
	p.MaxPeaks = d.MaxPeaks
	p.CentsTolerance = d.CentsTolerance
	p.MaxFlatness = d.MaxFlatness
	p.StrongClass = d.StrongClass
	p.MinPitchClasses = d.MinPitchClasses
	p.MinConfidence = d.MinConfidence
	p.ConfidenceMargin = d.ConfidenceMargin
	p.HoldTime = d.HoldTime
	p.BaseOctave = cfg.Arpeggio.BaseOctave
	return p
}

// Scheduler runs the whole signal chain once per audio buffer. Process is
// the only entry point and is called from the backend's callback
// goroutine; everything it touches is preallocated.
type Scheduler struct {
	ctrl     *Controller
	live     *telemetry
	logger   logging.Logger
	observer NoteObserver

	sampleRate   int
	ticksPerBeat int
	detectEvery  int64
	monitorGain  float64

	// detection
	dc       *filters.DCRemoval // nil when disabled
	clean    []float64
	gate     *temporal.SilenceGate // nil when disabled
	ring     *common.CircularBuffer
	frame    []float64
	analyzer *spectral.Analyzer
	detector *tonal.ChordDetector
	chord    *tonal.ChordState

	// sequencing
	arp      *arpeggio.Engine
	step     arpeggio.StepState
	running  bool
	tone     uint64 // last Tone request played
	nextTick float64 // samples from the start of the next buffer to the next tick
	ticking  bool

	// rendering
	synth    *synth.Engine
	delay    *effects.TempoDelay
	delayOn  bool
	events   []synth.ScheduledEvent
	eventSeq iter.Seq[synth.ScheduledEvent]

	samples int64 // stream position in samples
	buffers int64
}

// NewScheduler builds every stage from cfg and attaches to ctrl, whose
// snapshot it reads and whose Status it feeds
func NewScheduler(ctrl *Controller, opts Options) (*Scheduler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	catalogue := opts.Catalogue
	if catalogue == nil {
		catalogue = tonal.DefaultCatalogue()
	}
	logger := opts.Logger
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	analyzer, err := spectral.NewAnalyzer(cfg.SampleRate, cfg.Analysis.TransformSize, cfg.Analysis.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	s := &Scheduler{
		ctrl:         ctrl,
		live:         &ctrl.live,
		logger:       logger.WithFields(logging.Fields{"component": "scheduler"}),
		observer:     opts.Observer,
		sampleRate:   cfg.SampleRate,
		ticksPerBeat: cfg.Arpeggio.TicksPerBeat,
		detectEvery:  int64(cfg.Analysis.DetectEvery),
		monitorGain:  cfg.Monitor.Gain,

		clean:    make([]float64, cfg.BufferSize),
		ring:     common.NewCircularBuffer(cfg.Analysis.TransformSize),
		frame:    make([]float64, cfg.Analysis.TransformSize),
		analyzer: analyzer,
		detector: tonal.NewChordDetector(catalogue, DetectionParams(cfg)),

		arp: arpeggio.NewEngine(ctrl.Patterns(), arpeggio.Options{
			OctaveSpan: cfg.Arpeggio.OctaveSpan,
			Seed:       cfg.Arpeggio.Seed,
		}),

		synth: synth.NewEngine(synth.Options{
			SampleRate: cfg.SampleRate,
			MaxVoices:  cfg.Synth.MaxVoices,
			VoiceGain:  cfg.Synth.VoiceGain,
		}),
		delay: effects.NewTempoDelay(cfg.SampleRate, cfg.Delay.MaxSeconds),
	}

	if cfg.Analysis.DCCutoff > 0 {
		s.dc = filters.NewDCRemoval(cfg.SampleRate, cfg.Analysis.DCCutoff)
	}
	if cfg.Detection.GateDB < 0 {
		s.gate = temporal.NewSilenceGate(cfg.Detection.GateDB, gateHysteresisDB)
	}

	// enough room for every tick of the fastest grid in the largest buffer
	fastest := arpeggio.TickSamples(config.MaxTempo, cfg.Arpeggio.TicksPerBeat, cfg.SampleRate)
	// plus one for a test tone
	s.events = make([]synth.ScheduledEvent, 0, int(float64(cfg.BufferSize)/fastest)+3)
	s.tone = ctrl.Snapshot().Tone
	s.eventSeq = func(yield func(synth.ScheduledEvent) bool) {
		for _, ev := range s.events {
			if !yield(ev) {
				return
			}
		}
	}
	return s, nil
}

// Chord returns the active chord. Only the audio goroutine may call it;
// other goroutines use Controller.Status.
func (s *Scheduler) Chord() *tonal.ChordState {
	return s.chord
}

// Process consumes one input buffer and fills out. in may be shorter than
// out or nil for output-only backends; missing input is silence. Process
// never returns an error: a fault is counted, logged through the
// non-blocking logger, and the buffer degrades to monitor passthrough.
func (s *Scheduler) Process(in, out []float64) {
	defer s.finish(in, out)

	st := s.ctrl.Snapshot()

	s.live.meter(in)
	s.detect(in)
	s.schedule(st, len(out))
	s.playTone(st)

	s.synth.Render(out, s.eventSeq)

	if st.Delay.Enabled {
		s.delay.Update(st.Tempo, st.Delay)
		s.delay.Process(out)
		s.delayOn = true
	} else if s.delayOn {
		s.delay.Clear()
		s.delayOn = false
	}

	floats.Scale(st.Gain, out)
	s.monitor(in, out)
	synth.SoftLimit(out)

	if !common.IsFinite(out) {
		s.fault(errors.New("non-finite output"), in, out)
	}
}

// finish recovers a panicking buffer and advances the stream position
// whether or not the buffer completed
func (s *Scheduler) finish(in, out []float64) {
	if r := recover(); r != nil {
		s.fault(fmt.Errorf("panic: %v", r), in, out)
	}
	s.samples += int64(len(out))
	s.buffers++
	s.live.buffers.Store(s.buffers)
	s.live.voices.Store(int32(s.synth.ActiveVoices()))
	s.live.stolen.Store(s.synth.Stolen())
}

// detect feeds the analysis ring and runs the detector every detectEvery
// buffers once the ring holds a full frame. Frames the silence gate holds
// closed skip the transform and only age the active chord.
func (s *Scheduler) detect(in []float64) {
	if s.dc == nil {
		s.ring.Write(in)
	} else {
		for rest := in; len(rest) > 0; {
			n := min(len(rest), len(s.clean))
			s.ring.Write(s.dc.ProcessTo(s.clean, rest[:n]))
			rest = rest[n:]
		}
	}
	if !s.ring.IsFull() || s.buffers%s.detectEvery != 0 {
		return
	}

	n := s.ring.Snapshot(s.frame)
	now := s.streamTime(s.samples + int64(len(in)))
	s.live.detections.Add(1)

	if s.gate != nil && !s.gate.Update(s.frame[:n]) {
		s.adopt(s.detector.Silence(now, s.chord), now)
		return
	}

	spec, err := s.analyzer.Analyze(s.frame[:n])
	if err != nil {
		s.live.dropped.Add(1)
		s.logger.Warn("dropped detection cycle", logging.Fields{"error": err.Error()})
		return
	}
	spec.Timestamp = now
	s.adopt(s.detector.Detect(spec, s.chord), now)
}

// adopt makes next the active chord, logging changes of identity
func (s *Scheduler) adopt(next *tonal.ChordState, now time.Duration) {
	if next == s.chord {
		return
	}
	if next == nil || s.chord == nil || !next.Is(s.chord.Root, s.chord.Template) {
		s.logger.Info("chord changed", logging.Fields{
			"from":       s.chord.Name(),
			"to":         next.Name(),
			"confidence": confidence(next),
			"at":         now.String(),
		})
	}
	s.chord = next
	s.live.chord.Store(next)
}

func (s *Scheduler) streamTime(samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(s.sampleRate) * float64(time.Second))
}

func confidence(c *tonal.ChordState) float64 {
	if c == nil {
		return 0
	}
	return c.Confidence
}

// schedule runs the arpeggio engine for every tick that falls inside the
// next n samples and queues the resulting notes at their exact offsets.
// Tick positions are kept fractional so long runs do not drift.
func (s *Scheduler) schedule(st *RunState, n int) {
	s.events = s.events[:0]

	if st.Running != s.running {
		s.running = st.Running
		if st.Running {
			s.nextTick = 0
			s.logger.Info("arpeggio started", logging.Fields{"tempo": st.Tempo, "pattern": st.Pattern})
		} else {
			s.synth.ReleaseAll()
			s.logger.Info("arpeggio stopped")
		}
	}

	settings := st.arpeggio(s.ticksPerBeat)
	if !st.Running {
		s.arp.Tick(settings, nil, &s.step)
		return
	}

	var pitches []int
	if s.chord != nil {
		pitches = s.chord.Pitches
	}
	tick := arpeggio.TickSamples(st.Tempo, s.ticksPerBeat, s.sampleRate)
	s.ticking = true
	for s.nextTick < float64(n) {
		offset := int(s.nextTick)
		s.nextTick += tick

		ev, ok := s.arp.Tick(settings, pitches, &s.step)
		if !ok {
			continue
		}
		gate := int(float64(ev.DurationTicks)*tick*ev.Gate + 0.5)
		s.events = append(s.events, synth.ScheduledEvent{
			Offset:      offset,
			Note:        ev,
			Kind:        st.Synth,
			GateSamples: gate,
		})
		if s.observer != nil {
			s.observer.ObserveNote(ev, s.streamTime(int64(gate)))
		}
	}
	s.nextTick -= float64(n)
	s.ticking = false
}

// playTone starts a test tone at the head of the buffer when one was
// requested since the last buffer
func (s *Scheduler) playTone(st *RunState) {
	if st.Tone == s.tone {
		return
	}
	s.tone = st.Tone
	s.events = slices.Insert(s.events, 0, synth.ScheduledEvent{
		Note:        arpeggio.NoteEvent{Pitch: tonePitch, Velocity: 1, Gate: 1},
		Kind:        synth.Sine,
		GateSamples: toneSeconds * s.sampleRate,
	})
	s.logger.Info("test tone", logging.Fields{"hz": tonal.MIDIToFrequency(tonePitch)})
}

func (s *Scheduler) monitor(in, out []float64) {
	if s.monitorGain == 0 {
		return
	}
	n := min(len(in), len(out))
	floats.AddScaled(out[:n], s.monitorGain, in[:n])
}

// fault replaces out with monitor passthrough, or silence
func (s *Scheduler) fault(err error, in, out []float64) {
	s.live.faults.Add(1)
	s.logger.Error(err, "audio buffer degraded", logging.Fields{"buffer": s.buffers})
	if s.ticking {
		// ticks left in the failed buffer move to the start of the next
		s.nextTick = max(0, s.nextTick-float64(len(out)))
		s.ticking = false
	}
	clear(out)
	s.monitor(in, out)
	if !common.IsFinite(out) {
		clear(out)
	}
}
