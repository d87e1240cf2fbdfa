package audio

// Source produces input for backends without a capture side
type Source interface {
	Fill(buf []float64)
}

// Samples plays a decoded recording, looping or followed by silence
type Samples struct {
	pcm  []float64
	pos  int
	loop bool
}

func NewSamples(pcm []float64, loop bool) *Samples {
	return &Samples{pcm: pcm, loop: loop}
}

func (s *Samples) Fill(buf []float64) {
	for len(buf) > 0 {
		if s.pos >= len(s.pcm) {
			if !s.loop || len(s.pcm) == 0 {
				clear(buf)
				return
			}
			s.pos = 0
		}
		n := copy(buf, s.pcm[s.pos:])
		s.pos += n
		buf = buf[n:]
	}
}

// Done reports whether a non-looping recording has been played out
func (s *Samples) Done() bool {
	return !s.loop && s.pos >= len(s.pcm)
}
