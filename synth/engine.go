package synth

import (
	"iter"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-arp/algorithms/common"
	"github.com/RyanBlaney/sonido-arp/algorithms/tonal"
	"github.com/RyanBlaney/sonido-arp/arpeggio"
)

// Held is a gate long enough to mean "until released"
const Held = 1 << 30

// ScheduledEvent is a NoteEvent placed at a sample offset of the buffer
// being rendered
type ScheduledEvent struct {
	Offset      int
	Note        arpeggio.NoteEvent
	Kind        Kind
	GateSamples int // samples the key is held before release
}

// Options configure an Engine
type Options struct {
	SampleRate int
	MaxVoices  int     // concurrently held notes
	VoiceGain  float64 // per-voice level before mixing
}

type voice struct {
	active  bool
	note    int
	amp     float64
	elapsed int
	gate    int
	release int
	started uint64
	env     envelope
	osc     oscillator

	// fadeLen > 0 ramps the voice to zero over fadeLen samples from fadeAt,
	// on top of the envelope
	fadeAt  int
	fadeLen int
}

func (v *voice) held() bool {
	return v.active && v.elapsed < v.gate
}

// end is the elapsed count at which the voice falls silent
func (v *voice) end() int {
	end := v.gate + v.release
	if v.fadeLen > 0 {
		end = min(end, v.fadeAt+v.fadeLen)
	}
	return end
}

func (v *voice) level() float64 {
	l := v.env.level(v.elapsed, v.gate, v.release)
	if v.fadeLen > 0 && v.elapsed >= v.fadeAt {
		l *= max(0, 1-float64(v.elapsed-v.fadeAt)/float64(v.fadeLen))
	}
	return l
}

// VoiceInfo is a read-only view of one sounding voice
type VoiceInfo struct {
	Note    int
	Kind    Kind
	Stage   Stage
	Elapsed int
	Started uint64
}

// Engine renders note events into audio. It owns every voice; all methods
// except ActiveVoices and Stolen must be called from the audio goroutine.
type Engine struct {
	sampleRate int
	maxVoices  int
	voiceGain  float64
	stealFade  int

	// twice the voice limit, so stolen voices can fade while their
	// replacements start
	slots []voice
	order uint64

	active atomic.Int32
	stolen atomic.Int64
}

// NewEngine preallocates every voice slot, including pluck delay lines
func NewEngine(opts Options) *Engine {
	opts.MaxVoices = max(opts.MaxVoices, 1)
	if opts.VoiceGain <= 0 {
		opts.VoiceGain = 0.3
	}

	e := &Engine{
		sampleRate: opts.SampleRate,
		maxVoices:  opts.MaxVoices,
		voiceGain:  opts.VoiceGain,
		stealFade:  max(1, opts.SampleRate*stealFadeMs/1000),
		slots:      make([]voice, 2*opts.MaxVoices),
	}
	strLen := int(float64(opts.SampleRate)/minPluckHz) + 2
	for i := range e.slots {
		e.slots[i].osc.str = common.NewDelayLine(strLen)
	}
	return e
}

// MaxVoices returns the held-voice limit
func (e *Engine) MaxVoices() int {
	return e.maxVoices
}

// NoteOn starts a voice immediately. When the held-voice limit is reached
// the oldest-started held voice is forced into a short fade; the new note
// is never dropped.
func (e *Engine) NoteOn(ev ScheduledEvent) {
	held := 0
	oldestHeld := -1
	for i := range e.slots {
		if !e.slots[i].held() {
			continue
		}
		held++
		if oldestHeld < 0 || e.slots[i].started < e.slots[oldestHeld].started {
			oldestHeld = i
		}
	}
	if held >= e.maxVoices && oldestHeld >= 0 {
		e.steal(&e.slots[oldestHeld])
	}

	v := e.freeSlot()
	e.order++
	kind := ev.Kind
	env := newEnvelope(kind.Preset(), e.sampleRate)
	*v = voice{
		active:  true,
		note:    ev.Note.Pitch,
		amp:     e.voiceGain * min(1, max(0, ev.Note.Velocity)),
		gate:    max(1, ev.GateSamples),
		release: env.release,
		started: e.order,
		env:     env,
		osc:     oscillator{str: v.osc.str},
	}
	v.osc.start(kind, tonal.MIDIToFrequency(ev.Note.Pitch), e.sampleRate, e.order*0x9e3779b97f4a7c15)

	e.reserve()
}

// reserve keeps a slot for the next note. When the pool is full it fades
// the release tail closest to its end over stealFade, so the slot is idle
// again before another onset can claim it.
func (e *Engine) reserve() {
	shortest := -1
	for i := range e.slots {
		v := &e.slots[i]
		if !v.active {
			return
		}
		if !v.held() && (shortest < 0 || v.end()-v.elapsed < e.slots[shortest].end()-e.slots[shortest].elapsed) {
			shortest = i
		}
	}
	if shortest < 0 {
		return
	}
	if v := &e.slots[shortest]; v.end()-v.elapsed > e.stealFade {
		v.fadeAt = v.elapsed
		v.fadeLen = e.stealFade
	}
}

// steal releases v now with a fade no longer than stealFade
func (e *Engine) steal(v *voice) {
	v.gate = v.elapsed
	v.release = min(v.release, e.stealFade)
	e.stolen.Add(1)
}

// freeSlot returns an idle slot. reserve leaves one behind after every
// note, so recycling only happens for onsets closer together than
// stealFade; the quietest release tail is taken then.
func (e *Engine) freeSlot() *voice {
	quietest := -1
	for i := range e.slots {
		v := &e.slots[i]
		if !v.active {
			return v
		}
		if !v.held() && (quietest < 0 || v.level() < e.slots[quietest].level()) {
			quietest = i
		}
	}
	if quietest < 0 {
		// held voices never fill the pool, but stay total
		quietest = 0
	}
	return &e.slots[quietest]
}

// ReleaseAll moves every held voice into its normal release
func (e *Engine) ReleaseAll() {
	for i := range e.slots {
		if v := &e.slots[i]; v.held() {
			v.gate = v.elapsed
		}
	}
}

// Render overwrites out with the mix of all voices, starting each event at
// its offset. Events must arrive in offset order; offsets outside the
// buffer are clamped, so nothing is ever written past len(out).
func (e *Engine) Render(out []float64, events iter.Seq[ScheduledEvent]) {
	clear(out)
	cursor := 0
	if events != nil {
		for ev := range events {
			at := min(max(ev.Offset, cursor), len(out))
			e.renderSegment(out[cursor:at])
			cursor = at
			e.NoteOn(ev)
		}
	}
	e.renderSegment(out[cursor:])

	count := 0
	for i := range e.slots {
		if e.slots[i].active {
			count++
		}
	}
	e.active.Store(int32(count))
}

func (e *Engine) renderSegment(out []float64) {
	if len(out) == 0 {
		return
	}
	for i := range e.slots {
		v := &e.slots[i]
		if !v.active {
			continue
		}
		end := v.end()
		for j := range out {
			out[j] += v.amp * v.level() * v.osc.next()
			v.elapsed++
			if v.elapsed >= end {
				v.active = false
				break
			}
		}
	}
}

// Voices appends a view of every sounding voice to dst
func (e *Engine) Voices(dst []VoiceInfo) []VoiceInfo {
	for i := range e.slots {
		v := &e.slots[i]
		if !v.active {
			continue
		}
		dst = append(dst, VoiceInfo{
			Note:    v.note,
			Kind:    v.osc.kind,
			Stage:   v.env.stage(v.elapsed, v.gate, min(v.release, v.end()-v.gate)),
			Elapsed: v.elapsed,
			Started: v.started,
		})
	}
	return dst
}

// ActiveVoices is the number of sounding voices after the last Render.
// Safe to call from any goroutine.
func (e *Engine) ActiveVoices() int {
	return int(e.active.Load())
}

// Stolen counts voices forced into release by the voice limit. Safe to
// call from any goroutine.
func (e *Engine) Stolen() int64 {
	return e.stolen.Load()
}
