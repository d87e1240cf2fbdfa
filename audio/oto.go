//go:build !headless

package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/RyanBlaney/sonido-arp/logging"
)

func init() {
	Register("oto", func() Backend { return &Oto{} })
}

// Oto plays the arpeggio through the default output device. oto has no
// capture side, so StreamConfig.Source or the demo progression stands in
// for the instrument.
type Oto struct {
	Chords []ProgressionChord
	Hold   time.Duration
}

func (o *Oto) Name() string {
	return "oto"
}

func (o *Oto) Run(ctx context.Context, cfg StreamConfig, p Processor) error {
	logger := cfg.logger().WithFields(logging.Fields{"backend": "oto"})

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   2 * cfg.Period(),
	})
	if err != nil {
		return fmt.Errorf("failed to open oto context: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil
	}

	src := newPullSource(cfg, p, cfg.source(o.Chords, o.Hold))
	player := otoCtx.NewPlayer(src)
	player.SetBufferSize(2 * cfg.BufferSize * 4)
	player.Play()
	logger.Info("oto stream started", logging.Fields{"sample_rate": cfg.SampleRate, "buffer_size": cfg.BufferSize})

	<-ctx.Done()
	err = player.Close()
	logger.Info("oto stream stopped", logging.Fields{"buffers": src.buffers.Load()})
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}
