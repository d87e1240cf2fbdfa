package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

type countingProcessor struct {
	calls   int
	samples int
	inPeak  float64
	fill    float64
}

func (c *countingProcessor) Process(in, out []float64) {
	c.calls++
	c.samples += len(out)
	for _, x := range in {
		c.inPeak = max(c.inPeak, math.Abs(x))
	}
	for i := range out {
		out[i] = c.fill
	}
}

func TestRegistry(t *testing.T) {
	if !slices.Contains(Names(), "demo") {
		t.Fatalf("names = %v, want demo", Names())
	}
	b, err := New("demo")
	if err != nil || b.Name() != "demo" {
		t.Errorf("New(demo) = %v, %v", b, err)
	}
	if _, err := New("jack"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New(jack) = %v", err)
	}
}

func TestProgressionAdvances(t *testing.T) {
	p := NewProgression(1000, nil, time.Second)
	buf := make([]float64, 1000)

	if p.Chord().Name != "C major" {
		t.Errorf("first chord = %s", p.Chord().Name)
	}
	p.Fill(buf)
	if buf[0] != 0 {
		t.Errorf("chord starts at %v, want a ramp from 0", buf[0])
	}
	if p.Index() != 1 || p.Chord().Name != "E minor" {
		t.Errorf("after one hold: chord %d %s", p.Index(), p.Chord().Name)
	}
	for range 3 {
		p.Fill(buf)
	}
	if p.Index() != 0 {
		t.Errorf("progression did not loop, index %d", p.Index())
	}
}

func TestDemoRunsUnpaced(t *testing.T) {
	d := &Demo{Unpaced: true, Buffers: 10}
	proc := &countingProcessor{fill: 0.5}

	err := d.Run(context.Background(), StreamConfig{SampleRate: 48000, BufferSize: 256}, proc)
	if err != nil {
		t.Fatal(err)
	}
	if proc.calls != 10 || proc.samples != 2560 {
		t.Errorf("processed %d buffers, %d samples", proc.calls, proc.samples)
	}
	if proc.inPeak == 0 {
		t.Error("demo input was silent")
	}
	if d.Peak() != 0.5 {
		t.Errorf("peak = %v, want 0.5", d.Peak())
	}
}

func TestDemoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- (&Demo{}).Run(ctx, StreamConfig{SampleRate: 48000, BufferSize: 512}, &countingProcessor{})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestPullSourceChunks(t *testing.T) {
	cfg := StreamConfig{SampleRate: 48000, BufferSize: 128}
	proc := &countingProcessor{fill: 0.25}
	src := newPullSource(cfg, proc, NewProgression(48000, nil, time.Second))

	buf := make([]byte, 1500)
	n, err := src.Read(buf)
	if err != nil || n != 1500 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if proc.calls != 3 || proc.samples != 375 {
		t.Errorf("processed %d calls, %d samples", proc.calls, proc.samples)
	}
	for i := 0; i < n; i += 4 {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])); got != 0.25 {
			t.Fatalf("sample %d = %v, want 0.25", i/4, got)
		}
	}
}

func TestConvertClamps(t *testing.T) {
	out := make([]float32, 3)
	ToFloat32(out, []float64{2, -0.5, -3})
	if !slices.Equal(out, []float32{1, -0.5, -1}) {
		t.Errorf("ToFloat32 = %v", out)
	}

	wide := ToFloat64(make([]float64, 4), []float32{0.5, -1})
	if !slices.Equal(wide, []float64{0.5, -1}) {
		t.Errorf("ToFloat64 = %v", wide)
	}
}

func TestSamplesLoopAndEnd(t *testing.T) {
	buf := make([]float64, 5)

	looped := NewSamples([]float64{1, 2, 3}, true)
	looped.Fill(buf)
	if !slices.Equal(buf, []float64{1, 2, 3, 1, 2}) || looped.Done() {
		t.Errorf("looping fill = %v", buf)
	}

	once := NewSamples([]float64{1, 2, 3}, false)
	once.Fill(buf)
	if !slices.Equal(buf, []float64{1, 2, 3, 0, 0}) || !once.Done() {
		t.Errorf("single fill = %v, done %v", buf, once.Done())
	}

	NewSamples(nil, true).Fill(buf)
	if !slices.Equal(buf, make([]float64, 5)) {
		t.Errorf("empty looping source = %v", buf)
	}
}

func TestDemoStopsWhenFileEnds(t *testing.T) {
	proc := &countingProcessor{}
	cfg := StreamConfig{
		SampleRate: 48000,
		BufferSize: 100,
		Source:     NewSamples(make([]float64, 250), false),
	}
	if err := (&Demo{Unpaced: true}).Run(context.Background(), cfg, proc); err != nil {
		t.Fatal(err)
	}
	// 250 samples fill two whole buffers and part of a third
	if proc.calls != 3 {
		t.Errorf("processed %d buffers, want 3", proc.calls)
	}
}
