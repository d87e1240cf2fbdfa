//go:build !headless

package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/sonido-arp/logging"
)

func init() {
	Register("portaudio", func() Backend { return &PortAudio{} })
}

// PortAudio is the live duplex backend: mono capture from the default
// input, mono playback on the default output, one callback per buffer
type PortAudio struct{}

func (PortAudio) Name() string {
	return "portaudio"
}

func (PortAudio) Run(ctx context.Context, cfg StreamConfig, p Processor) error {
	logger := cfg.logger().WithFields(logging.Fields{"backend": "portaudio"})

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	in := make([]float64, cfg.BufferSize)
	out := make([]float64, cfg.BufferSize)
	callback := func(input, output []float32) {
		n := min(len(input), len(in))
		m := min(len(output), len(out))
		p.Process(ToFloat64(in, input[:n]), out[:m])
		ToFloat32(output, out[:m])
	}

	stream, err := portaudio.OpenDefaultStream(1, 1, float64(cfg.SampleRate), cfg.BufferSize, callback)
	if err != nil {
		return fmt.Errorf("failed to open duplex stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	logger.Info("portaudio stream started", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"buffer_size": cfg.BufferSize,
	})

	<-ctx.Done()
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	logger.Info("portaudio stream stopped")
	return nil
}
