package synth

// Stage is the envelope segment a voice is in
type Stage int

const (
	StageAttack Stage = iota
	StageDecay
	StageSustain
	StageRelease
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	default:
		return "done"
	}
}

// envelope is a linear ADSR in samples. Every method is a pure function of
// the elapsed sample count, the gate (samples held before release) and the
// release length, so a voice needs no envelope state of its own.
type envelope struct {
	attack  int
	decay   int
	sustain float64
	release int
}

func newEnvelope(a ADSR, sampleRate int) envelope {
	sr := float64(sampleRate)
	return envelope{
		// at least one sample so the first output is always zero
		attack:  max(1, int(a.Attack*sr)),
		decay:   max(0, int(a.Decay*sr)),
		sustain: min(1, max(0, a.Sustain)),
		release: max(1, int(a.Release*sr)),
	}
}

// held is the level while the key is down
func (e envelope) held(n int) float64 {
	switch {
	case n < e.attack:
		return float64(n) / float64(e.attack)
	case n < e.attack+e.decay:
		return 1 - (1-e.sustain)*float64(n-e.attack)/float64(e.decay)
	default:
		return e.sustain
	}
}

// level returns the amplitude at elapsed. The release ramps linearly from
// wherever the held curve was at the gate, so an early release never jumps.
func (e envelope) level(elapsed, gate, release int) float64 {
	if elapsed < gate {
		return e.held(elapsed)
	}
	r := elapsed - gate
	if r >= release {
		return 0
	}
	return e.held(gate) * (1 - float64(r)/float64(release))
}

func (e envelope) stage(elapsed, gate, release int) Stage {
	switch {
	case elapsed >= gate+release:
		return StageDone
	case elapsed >= gate:
		return StageRelease
	case elapsed < e.attack:
		return StageAttack
	case elapsed < e.attack+e.decay:
		return StageDecay
	default:
		return StageSustain
	}
}
