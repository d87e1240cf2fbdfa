package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if got := cfg.BufferPeriod(); got < 10*time.Millisecond || got > 11*time.Millisecond {
		t.Errorf("buffer period = %v, want ~10.67ms", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tempo low", func(c *Config) { c.Arpeggio.Tempo = 59 }},
		{"tempo high", func(c *Config) { c.Arpeggio.Tempo = 201 }},
		{"duration", func(c *Config) { c.Arpeggio.Duration = 0.1 }},
		{"transform smaller than buffer", func(c *Config) { c.Analysis.TransformSize = 256 }},
		{"dc cutoff inside the detection band", func(c *Config) { c.Analysis.DCCutoff = 100 }},
		{"positive gate", func(c *Config) { c.Detection.GateDB = 3 }},
		{"nyquist", func(c *Config) { c.Detection.MaxFrequency = 30000 }},
		{"feedback", func(c *Config) { c.Delay.Feedback = 0.95 }},
		{"voices", func(c *Config) { c.Synth.MaxVoices = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
			var pe *ParameterError
			if !errors.As(err, &pe) || pe.Name == "" {
				t.Errorf("expected named ParameterError, got %#v", err)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arp.json")
	body := `{"buffer_size": 256, "arpeggio": {"tempo": 90, "pattern": "down", "duration": 4, "ticks_per_beat": 4, "octave_span": 2, "base_octave": 3}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BufferSize != 256 || cfg.Arpeggio.Tempo != 90 || cfg.Arpeggio.Pattern != "down" {
		t.Errorf("overrides not applied: %+v", cfg.Arpeggio)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("sample rate default lost: %d", cfg.SampleRate)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"arpeggio": {"tempo": 300}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
