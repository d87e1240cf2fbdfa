package audio

import (
	"context"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-arp/logging"
)

func init() {
	Register("demo", func() Backend { return &Demo{} })
}

// ProgressionChord is one step of a demo progression
type ProgressionChord struct {
	Name  string
	Freqs []float64
}

// DefaultChords is C major, E minor, A minor, F major, voiced around the
// guitar's middle register
var DefaultChords = []ProgressionChord{
	{"C major", []float64{130.81, 164.81, 196.00}},
	{"E minor", []float64{164.81, 196.00, 246.94}},
	{"A minor", []float64{220.00, 261.63, 329.63}},
	{"F major", []float64{174.61, 220.00, 261.63}},
}

// Progression synthesizes a looping chord sequence as stand-in input
type Progression struct {
	sampleRate int
	chords     []ProgressionChord
	hold       int64 // samples per chord
	amplitude  float64
	pos        int64
}

// NewProgression holds each chord for the given time
func NewProgression(sampleRate int, chords []ProgressionChord, hold time.Duration) *Progression {
	if len(chords) == 0 {
		chords = DefaultChords
	}
	return &Progression{
		sampleRate: sampleRate,
		chords:     chords,
		hold:       max(1, int64(hold.Seconds()*float64(sampleRate))),
		amplitude:  0.25,
	}
}

// Index is the chord sounding at the current position
func (p *Progression) Index() int {
	return int(p.pos / p.hold % int64(len(p.chords)))
}

// Chord is the chord sounding at the current position
func (p *Progression) Chord() ProgressionChord {
	return p.chords[p.Index()]
}

// Fill writes the next len(buf) samples
func (p *Progression) Fill(buf []float64) {
	sr := float64(p.sampleRate)
	for i := range buf {
		n := p.pos + int64(i)
		chord := p.chords[n/p.hold%int64(len(p.chords))]
		// short ramps at chord boundaries avoid clicks in the input
		edge := min(n%p.hold, p.hold-1-n%p.hold)
		env := min(1, float64(edge)/(0.005*sr))

		x := 0.0
		t := float64(n) / sr
		for _, f := range chord.Freqs {
			x += math.Sin(2 * math.Pi * f * t)
		}
		buf[i] = p.amplitude * env * x
	}
	p.pos += int64(len(buf))
}

// Demo is the headless backend: it feeds StreamConfig.Source, or a
// Progression, to the processor at the buffer rate and discards the
// output, so the whole chain runs without audio hardware
type Demo struct {
	Chords []ProgressionChord
	Hold   time.Duration // per chord, default 4s
	// Unpaced processes buffers as fast as possible
	Unpaced bool
	// Buffers stops after this many buffers when positive
	Buffers int

	peak float64
}

func (d *Demo) Name() string {
	return "demo"
}

// Peak is the loudest output sample seen by the last Run
func (d *Demo) Peak() float64 {
	return d.peak
}

func (d *Demo) Run(ctx context.Context, cfg StreamConfig, p Processor) error {
	logger := cfg.logger().WithFields(logging.Fields{"backend": "demo"})
	src := cfg.source(d.Chords, d.Hold)
	prog, _ := src.(*Progression)
	in := make([]float64, cfg.BufferSize)
	out := make([]float64, cfg.BufferSize)

	var tick <-chan time.Time
	if !d.Unpaced {
		ticker := time.NewTicker(cfg.Period())
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Info("demo stream started", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"buffer_size": cfg.BufferSize,
	})

	last := -1
	for n := 0; d.Buffers <= 0 || n < d.Buffers; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if prog != nil && prog.Index() != last {
			last = prog.Index()
			logger.Info("demo chord", logging.Fields{"chord": prog.Chord().Name})
		}
		if s, ok := src.(*Samples); ok && s.Done() {
			logger.Info("input file finished")
			return nil
		}
		src.Fill(in)
		p.Process(in, out)
		for _, x := range out {
			d.peak = max(d.peak, math.Abs(x))
		}
	}
	return nil
}
