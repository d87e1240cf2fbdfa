package synth

import (
	"math"

	"github.com/RyanBlaney/sonido-arp/algorithms/common"
)

const (
	fmRatio     = 2.1 // slightly inharmonic modulator
	fmIndex     = 3.0
	padDetune   = 1.003
	pluckDecay  = 0.996
	minPluckHz  = 20.0
	twoPi       = 2 * math.Pi
	stealFadeMs = 5
)

// polyBLEP removes the aliasing step of a naive discontinuity at phase t
// for a phase increment dt
func polyBLEP(t, dt float64) float64 {
	switch {
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	default:
		return 0
	}
}

func saw(phase, dt float64) float64 {
	return 2*phase - 1 - polyBLEP(phase, dt)
}

func square(phase, dt float64) float64 {
	v := 1.0
	if phase >= 0.5 {
		v = -1.0
	}
	v += polyBLEP(phase, dt)
	v -= polyBLEP(math.Mod(phase+0.5, 1), dt)
	return v
}

func triangle(phase float64) float64 {
	return 1 - 4*math.Abs(phase-0.5)
}

// oscillator is the waveform state of one voice
type oscillator struct {
	kind   Kind
	dt     float64 // phase increment per sample
	phase  float64
	phase2 float64 // modulator or detuned layer

	// Karplus-Strong string, preallocated per slot
	str      *common.DelayLine
	strLen   float64
	strPrev  float64
	strNoise uint64
}

func (o *oscillator) start(kind Kind, freq float64, sampleRate int, seed uint64) {
	o.kind = kind
	o.dt = freq / float64(sampleRate)
	o.phase = 0
	o.phase2 = 0

	if kind == Pluck {
		// the two-point average in the loop delays by another half sample
		o.strLen = min(float64(sampleRate)/freq-0.5, float64(o.str.Capacity()-1))
		o.strPrev = 0
		o.strNoise = seed | 1
		o.str.Clear()
		// a burst of noise one period long is the plucked excitation
		for range int(math.Ceil(o.strLen)) + 1 {
			o.str.Write(o.noise())
		}
	}
}

// xorshift64 white noise in [-1, 1]
func (o *oscillator) noise() float64 {
	x := o.strNoise
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	o.strNoise = x
	return float64(x>>11)/float64(1<<52) - 1
}

func (o *oscillator) next() float64 {
	var v float64
	switch o.kind {
	case Saw:
		v = saw(o.phase, o.dt)
	case Square:
		v = square(o.phase, o.dt)
	case Sine:
		v = math.Sin(twoPi * o.phase)
	case Triangle:
		v = triangle(o.phase)
	case FM:
		v = math.Sin(twoPi*o.phase + fmIndex*math.Sin(twoPi*o.phase2))
		o.phase2 = advance(o.phase2, o.dt*fmRatio)
	case Pluck:
		out := o.str.ReadInterpolated(o.strLen)
		// two-point average is the string's lowpass loss
		o.str.Write(pluckDecay * 0.5 * (out + o.strPrev))
		o.strPrev = out
		v = out
	case Pad:
		v = (math.Sin(twoPi*o.phase) + 0.5*math.Sin(2*twoPi*o.phase) + 0.25*math.Sin(3*twoPi*o.phase) +
			math.Sin(twoPi*o.phase2)) / 2.75
		o.phase2 = advance(o.phase2, o.dt*padDetune)
	case Lead:
		v = (saw(o.phase, o.dt) + 0.3*square(o.phase, o.dt)) / 1.3
	case Bass:
		v = (math.Sin(twoPi*o.phase) + 0.3*square(o.phase, o.dt)) / 1.3
	}
	o.phase = advance(o.phase, o.dt)
	return v
}

func advance(phase, dt float64) float64 {
	phase += dt
	if phase >= 1 {
		phase -= math.Floor(phase)
	}
	return phase
}
