package midiout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-arp/arpeggio"
)

type fakeOut struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (f *fakeOut) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, append([]byte(nil), msg...))
	return f.err
}

func (f *fakeOut) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

func waitFor(t *testing.T, out *fakeOut, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := out.sent(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("got %d messages, want %d", len(out.sent()), n)
	return nil
}

func TestNoteOnThenTimedNoteOff(t *testing.T) {
	out := &fakeOut{}
	s := NewSink(out, 2, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.ObserveNote(arpeggio.NoteEvent{Pitch: 64, Velocity: 1}, 10*time.Millisecond)
	msgs := waitFor(t, out, 2)

	if on := msgs[0]; on[0] != 0x92 || on[1] != 64 || on[2] != 127 {
		t.Errorf("note on = % x", on)
	}
	// NoteOff may be encoded as 0x8n or as NoteOn velocity 0
	if off := msgs[1]; off[1] != 64 || (off[0]&0xf0 != 0x80 && off[2] != 0) {
		t.Errorf("note off = % x", off)
	}
}

func TestVelocityMapping(t *testing.T) {
	tests := []struct {
		velocity float64
		want     byte
	}{
		{0, 1},
		{0.5, 64},
		{1, 127},
		{3, 127},
		{-1, 1},
	}
	for _, tt := range tests {
		s := NewSink(&fakeOut{}, 0, 1, nil)
		s.ObserveNote(arpeggio.NoteEvent{Pitch: 60, Velocity: tt.velocity}, time.Second)
		if n := <-s.queue; n.velocity != tt.want {
			t.Errorf("velocity %v -> %d, want %d", tt.velocity, n.velocity, tt.want)
		}
	}
}

func TestFullQueueDrops(t *testing.T) {
	s := NewSink(&fakeOut{}, 0, 2, nil)
	for range 5 {
		s.ObserveNote(arpeggio.NoteEvent{Pitch: 60, Velocity: 1}, time.Second)
	}
	if s.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", s.Dropped())
	}

	s.ObserveNote(arpeggio.NoteEvent{Pitch: 200}, time.Second)
	if s.Dropped() != 3 || len(s.queue) != 2 {
		t.Error("out of range pitch should be ignored")
	}
}

func TestRetriggerKeepsNewNote(t *testing.T) {
	out := &fakeOut{}
	s := NewSink(out, 0, 8, nil)

	s.noteOn(note{key: 60, velocity: 100, gate: time.Hour})
	first := s.gen[60]
	s.noteOn(note{key: 60, velocity: 100, gate: time.Hour})

	// the first note's NoteOff fires late and must not cut the second
	s.noteOff(60, first)
	if !s.on[60] {
		t.Fatal("stale note off silenced the retriggered note")
	}
	if got := len(out.sent()); got != 3 {
		t.Errorf("sent %d messages, want on, off, on", got)
	}
}

func TestRunSilencesOnExit(t *testing.T) {
	out := &fakeOut{}
	s := NewSink(out, 0, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.ObserveNote(arpeggio.NoteEvent{Pitch: 60, Velocity: 1}, time.Hour)
	s.ObserveNote(arpeggio.NoteEvent{Pitch: 67, Velocity: 1}, time.Hour)
	waitFor(t, out, 2)
	cancel()
	<-done

	if msgs := out.sent(); len(msgs) != 4 {
		t.Fatalf("sent %d messages, want 2 on and 2 off", len(msgs))
	}
	for key, on := range s.on {
		if on {
			t.Errorf("key %d still sounding", key)
		}
	}
}

func TestSendErrorsAreLogged(t *testing.T) {
	out := &fakeOut{err: errors.New("port closed")}
	s := NewSink(out, 0, 1, nil)
	s.noteOn(note{key: 60, velocity: 90, gate: time.Hour})
	if !s.on[60] {
		t.Error("a send error should not lose track of the key")
	}
}
