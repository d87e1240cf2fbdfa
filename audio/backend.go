package audio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-arp/logging"
)

// ErrUnknownBackend is returned by New for names nothing registered
var ErrUnknownBackend = errors.New("unknown audio backend")

// Processor fills out from in once per device buffer. It is called on the
// backend's realtime goroutine and must not block. in may be nil when the
// backend has no input.
type Processor interface {
	Process(in, out []float64)
}

// StreamConfig is the format every backend opens with. Audio is mono.
type StreamConfig struct {
	SampleRate int
	BufferSize int // frames per Process call
	Logger     logging.Logger

	// Source feeds backends without a capture side. Nil means the demo
	// progression.
	Source Source
}

// Period is the time one buffer covers
func (c StreamConfig) Period() time.Duration {
	return time.Duration(float64(c.BufferSize) / float64(c.SampleRate) * float64(time.Second))
}

// source returns the configured Source or a default progression
func (c StreamConfig) source(chords []ProgressionChord, hold time.Duration) Source {
	if c.Source != nil {
		return c.Source
	}
	if hold <= 0 {
		hold = 4 * time.Second
	}
	return NewProgression(c.SampleRate, chords, hold)
}

func (c StreamConfig) logger() logging.Logger {
	if c.Logger == nil {
		return &logging.NoOpLogger{}
	}
	return c.Logger
}

// Backend moves audio between a device and a Processor. The core selects a
// backend once by name and never branches on platform.
type Backend interface {
	Name() string

	// Run streams until ctx is done. It returns nil on a clean shutdown.
	Run(ctx context.Context, cfg StreamConfig, p Processor) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Backend{}
)

// Register makes a backend constructor available to New. Backends that
// need cgo register themselves from files excluded by the headless tag.
func Register(name string, factory func() Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs the backend registered under name
func New(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q, have %v", ErrUnknownBackend, name, Names())
	}
	return factory(), nil
}

// Names lists the registered backends in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
