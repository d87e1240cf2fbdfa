// Package transcode decodes audio files to mono float64 PCM through ffmpeg
package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-arp/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path"`
	SampleRate  int           `json:"sample_rate"`
	MaxDuration time.Duration `json:"max_duration"` // 0 decodes the whole file
	Timeout     time.Duration `json:"timeout"`
	// PeakLevel rescales the decoded signal to this peak, 0 leaves it as is
	PeakLevel float64 `json:"peak_level"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		FFmpegPath: "ffmpeg", // assume in PATH
		SampleRate: 48000,
		Timeout:    30 * time.Second,
		PeakLevel:  0.5,
	}
}

type Decoder struct {
	config DecoderConfig
	logger logging.Logger
}

func NewDecoder(config DecoderConfig, logger logging.Logger) *Decoder {
	fields := logging.Fields{"component": "audio_decoder"}
	if logger == nil {
		return &Decoder{config: config, logger: logging.WithFields(fields)}
	}
	return &Decoder{config: config, logger: logger.WithFields(fields)}
}

// Args is the ffmpeg command line for filename, minus the binary
func (d *Decoder) Args(filename string) []string {
	args := []string{
		"-i", filename,
		"-f", "f64le", // raw float64 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.SampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error", "pipe:1")
}

// DecodeFile runs ffmpeg on filename and returns its samples
func (d *Decoder) DecodeFile(ctx context.Context, filename string) ([]float64, error) {
	logger := d.logger.WithFields(logging.Fields{"filename": filename})

	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := d.Args(filename)
	logger.Debug("running ffmpeg", logging.Fields{"args": strings.Join(args, " ")})

	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error(err, "ffmpeg decode failed", logging.Fields{"stderr": string(exitErr.Stderr)})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := BytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s decoded to no audio", filename)
	}
	peak := 0.0
	for _, x := range samples {
		peak = max(peak, math.Abs(x))
	}
	if d.config.PeakLevel > 0 && peak > 0 {
		g := d.config.PeakLevel / peak
		for i := range samples {
			samples[i] *= g
		}
	}

	logger.Info("decoded input file", logging.Fields{
		"samples":  len(samples),
		"duration": time.Duration(float64(len(samples)) / float64(d.config.SampleRate) * float64(time.Second)).String(),
		"peak":     peak,
	})
	return samples, nil
}

// BytesToFloat64 reads little-endian float64 samples, ignoring a trailing
// partial sample
func BytesToFloat64(data []byte) []float64 {
	n := len(data) / 8
	if n == 0 {
		return nil
	}
	samples := make([]float64, n)
	for i := range n {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return samples
}

// Available checks that the configured ffmpeg runs
func (d *Decoder) Available(ctx context.Context) error {
	if err := exec.CommandContext(ctx, d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	return nil
}
