package audio

import "sync/atomic"

// pullSource adapts the push-style Processor to a pull-style io.Reader
// such as an oto player. The reader's goroutine is the realtime one.
type pullSource struct {
	p    Processor
	src  Source
	in   []float64
	out  []float64

	buffers atomic.Int64
}

func newPullSource(cfg StreamConfig, p Processor, src Source) *pullSource {
	return &pullSource{
		p:    p,
		src:  src,
		in:   make([]float64, cfg.BufferSize),
		out:  make([]float64, cfg.BufferSize),
	}
}

// Read fills buf with whole float32 samples, processing at most one
// configured buffer per chunk
func (s *pullSource) Read(buf []byte) (int, error) {
	samples := len(buf) / 4
	written := 0
	for written < samples {
		n := min(samples-written, len(s.out))
		in, out := s.in[:n], s.out[:n]
		s.src.Fill(in)
		s.p.Process(in, out)
		PutFloat32LE(buf[written*4:], out)
		written += n
		s.buffers.Add(1)
	}
	return written * 4, nil
}
