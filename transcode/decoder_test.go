package transcode

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"
)

func encode(samples ...float64) []byte {
	out := make([]byte, 8*len(samples))
	for i, x := range samples {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(x))
	}
	return out
}

func TestArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.MaxDuration = 90 * time.Second
	got := NewDecoder(cfg, nil).Args("take1.flac")
	want := []string{"-i", "take1.flac", "-f", "f64le", "-ac", "1", "-ar", "48000", "-t", "90.00", "-v", "error", "pipe:1"}
	if !slices.Equal(got, want) {
		t.Errorf("Args = %v\nwant %v", got, want)
	}
}

func TestBytesToFloat64(t *testing.T) {
	data := append(encode(0.5, -0.25), 1, 2, 3)
	if got := BytesToFloat64(data); !slices.Equal(got, []float64{0.5, -0.25}) {
		t.Errorf("BytesToFloat64 = %v", got)
	}
	if BytesToFloat64([]byte{1, 2}) != nil {
		t.Error("partial sample should decode to nothing")
	}
}

// fakeFFmpeg stands in for ffmpeg: it copies its -i argument to stdout,
// so the input file is already raw f64le
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\ncat \"$2\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodeFileNormalizesPeak(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in.raw")
	if err := os.WriteFile(input, encode(0.1, -0.2, 0.05), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultDecoderConfig()
	cfg.FFmpegPath = fakeFFmpeg(t)

	got, err := NewDecoder(cfg, nil).DecodeFile(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.25, -0.5, 0.125}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("samples = %v, want %v", got, want)
		}
	}
}

func TestDecodeFileErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultDecoderConfig()
	cfg.FFmpegPath = filepath.Join(dir, "no-such-ffmpeg")
	d := NewDecoder(cfg, nil)

	if _, err := d.DecodeFile(context.Background(), filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("missing input should fail")
	}

	input := filepath.Join(dir, "in.wav")
	if err := os.WriteFile(input, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := d.DecodeFile(context.Background(), input); err == nil {
		t.Error("missing ffmpeg should fail")
	}
	if err := d.Available(context.Background()); err == nil {
		t.Error("Available should report a missing binary")
	}

	empty := filepath.Join(dir, "empty.raw")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.FFmpegPath = fakeFFmpeg(t)
	if _, err := NewDecoder(cfg, nil).DecodeFile(context.Background(), empty); err == nil {
		t.Error("empty output should fail")
	}
}
