// Package midiout mirrors the arpeggio to an external MIDI device
package midiout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/RyanBlaney/sonido-arp/arpeggio"
	"github.com/RyanBlaney/sonido-arp/logging"
)

// Sender transmits one raw MIDI message. drivers.Out satisfies it.
type Sender interface {
	Send(msg []byte) error
}

type note struct {
	key      uint8
	velocity uint8
	gate     time.Duration
}

// Sink turns observed NoteEvents into NoteOn/NoteOff pairs. ObserveNote
// only enqueues, so it is safe on the audio goroutine; Run does the
// sending.
type Sink struct {
	out     Sender
	channel uint8
	queue   chan note
	dropped atomic.Uint64
	logger  logging.Logger

	mu  sync.Mutex
	gen [128]uint64 // per key, so a stale NoteOff never cuts a retriggered note
	on  [128]bool
}

// NewSink sends on the given channel (0-15) with a queue of capacity notes
func NewSink(out Sender, channel uint8, capacity int, logger logging.Logger) *Sink {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Sink{
		out:     out,
		channel: channel & 0x0f,
		queue:   make(chan note, max(capacity, 1)),
		logger:  logger.WithFields(logging.Fields{"component": "midi"}),
	}
}

// ObserveNote queues ev without blocking. Notes that do not fit are
// dropped and counted.
func (s *Sink) ObserveNote(ev arpeggio.NoteEvent, gate time.Duration) {
	if ev.Pitch < 0 || ev.Pitch > 127 {
		return
	}
	n := note{
		key:      uint8(ev.Pitch),
		velocity: uint8(1 + min(1, max(0, ev.Velocity))*126),
		gate:     gate,
	}
	select {
	case s.queue <- n:
	default:
		s.dropped.Add(1)
	}
}

// Dropped counts notes lost to a full queue
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run sends queued notes until ctx is done, then silences every key it
// left sounding
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case n := <-s.queue:
			s.noteOn(n)
		case <-ctx.Done():
			s.allOff()
			return
		}
	}
}

func (s *Sink) noteOn(n note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.on[n.key] {
		s.send(midi.NoteOff(s.channel, n.key))
	}
	s.gen[n.key]++
	s.on[n.key] = true
	s.send(midi.NoteOn(s.channel, n.key, n.velocity))

	gen := s.gen[n.key]
	time.AfterFunc(n.gate, func() { s.noteOff(n.key, gen) })
}

func (s *Sink) noteOff(key uint8, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[key] != gen || !s.on[key] {
		return
	}
	s.on[key] = false
	s.send(midi.NoteOff(s.channel, key))
}

func (s *Sink) allOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.on {
		if s.on[key] {
			s.on[key] = false
			s.gen[key]++
			s.send(midi.NoteOff(s.channel, uint8(key)))
		}
	}
}

// send must be called with mu held
func (s *Sink) send(msg midi.Message) {
	if err := s.out.Send(msg.Bytes()); err != nil {
		s.logger.Warn("midi send failed", logging.Fields{"error": err.Error(), "message": msg.String()})
	}
}

// OpenPort opens the first output port whose name contains name, or the
// first port at all when name is empty. A driver must be registered by a
// blank import first.
func OpenPort(name string) (drivers.Out, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, fmt.Errorf("failed to list midi outputs: %w", err)
	}
	for _, out := range outs {
		if name != "" && !strings.Contains(out.String(), name) {
			continue
		}
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("failed to open midi output %q: %w", out.String(), err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("no midi output matching %q", name)
}
