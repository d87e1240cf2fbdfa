package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrInvalidParameter is returned for any rejected configuration or control
// value. Callers match it with errors.Is.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParameterError describes which value was rejected and why
type ParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// Invalid builds a *ParameterError
func Invalid(name string, value any, reason string) error {
	return &ParameterError{Name: name, Value: value, Reason: reason}
}

// Tempo and phrase bounds shared by config validation and the controller
const (
	MinTempo    = 60
	MaxTempo    = 200
	MinDuration = 0.5
	MaxDuration = 10.0
	MaxGain     = 2.0
)

type Config struct {
	SampleRate int    `json:"sample_rate"`
	BufferSize int    `json:"buffer_size"`
	Backend    string `json:"backend"` // "demo", "portaudio", "oto"
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"` // "text" or "json"

	Analysis  AnalysisConfig  `json:"analysis"`
	Detection DetectionConfig `json:"detection"`
	Arpeggio  ArpeggioConfig  `json:"arpeggio"`
	Synth     SynthConfig     `json:"synth"`
	Monitor   MonitorConfig   `json:"monitor"`
	Delay     DelayConfig     `json:"delay"`
	Input     InputConfig     `json:"input"`
}

// AnalysisConfig controls the spectral frame fed to the chord detector
type AnalysisConfig struct {
	TransformSize int     `json:"transform_size"` // samples per analysis frame
	Window        string  `json:"window"`         // see windowing.Names
	DetectEvery   int     `json:"detect_every"`   // run detection once per N buffers
	DCCutoff      float64 `json:"dc_cutoff"`      // Hz, blocker ahead of analysis, 0 disables
}

type DetectionConfig struct {
	MinFrequency     float64       `json:"min_frequency"`
	MaxFrequency     float64       `json:"max_frequency"`
	NoiseFloor       float64       `json:"noise_floor"`    // absolute magnitude floor
	RelativeFloor    float64       `json:"relative_floor"` // fraction of the strongest peak
	MaxPeaks         int           `json:"max_peaks"`
	CentsTolerance   float64       `json:"cents_tolerance"`
	StrongClass      float64       `json:"strong_class"` // chroma level counted as present
	MinPitchClasses  int           `json:"min_pitch_classes"`
	MinConfidence    float64       `json:"min_confidence"`
	ConfidenceMargin float64       `json:"confidence_margin"`
	HoldTime         time.Duration `json:"hold_time"`
	MaxFlatness      float64       `json:"max_flatness"` // spectra flatter than this are noise, 0 disables
	GateDB           float64       `json:"gate_db"`      // frame RMS in dBFS below which analysis is skipped, 0 disables
}

type ArpeggioConfig struct {
	Tempo        int     `json:"tempo"`
	Pattern      string  `json:"pattern"`
	Duration     float64 `json:"duration"` // phrase length in seconds
	TicksPerBeat int     `json:"ticks_per_beat"`
	OctaveSpan   int     `json:"octave_span"`
	Seed         uint64  `json:"seed"`
	BaseOctave   int     `json:"base_octave"`
}

type SynthConfig struct {
	Voice     string  `json:"voice"`
	MaxVoices int     `json:"max_voices"`
	VoiceGain float64 `json:"voice_gain"`
	Gain      float64 `json:"gain"`
}

type MonitorConfig struct {
	Gain float64 `json:"gain"` // input pass-through level, 0 disables
}

type DelayConfig struct {
	Enabled    bool    `json:"enabled"`
	Mode       string  `json:"mode"` // "echo" or "multi"
	Division   string  `json:"division"`
	Feedback   float64 `json:"feedback"`
	Wet        float64 `json:"wet"`
	MaxSeconds float64 `json:"max_seconds"`
}

// InputConfig selects a recording to play into backends that have no
// capture side, in place of the built-in chord progression
type InputConfig struct {
	File        string        `json:"file"`
	FFmpegPath  string        `json:"ffmpeg_path"`
	Loop        bool          `json:"loop"`
	MaxDuration time.Duration `json:"max_duration"`
}

func DefaultConfig() *Config {
	return &Config{
		SampleRate: 48000,
		BufferSize: 512,
		Backend:    "demo",
		LogLevel:   "info",
		LogFormat:  "text",
		Analysis:   DefaultAnalysisConfig(),
		Detection:  DefaultDetectionConfig(),
		Arpeggio:   DefaultArpeggioConfig(),
		Synth:      DefaultSynthConfig(),
		Monitor:    MonitorConfig{Gain: 0.0},
		Delay: DelayConfig{
			Enabled:    false,
			Mode:       "echo",
			Division:   "1/8",
			Feedback:   0.4,
			Wet:        0.35,
			MaxSeconds: 4.0,
		},
		Input: InputConfig{
			FFmpegPath: "ffmpeg",
			Loop:       true,
		},
	}
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		TransformSize: 8192, // ~5.9 Hz bins at 48 kHz, low E is 82 Hz
		Window:        "hann",
		DetectEvery:   2,
		DCCutoff:      20,
	}
}

func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		MinFrequency:     70.0,
		MaxFrequency:     2000.0,
		NoiseFloor:       1e-3,
		RelativeFloor:    0.05,
		MaxPeaks:         12,
		CentsTolerance:   40.0,
		StrongClass:      0.25,
		MinPitchClasses:  2,
		MinConfidence:    0.6,
		ConfidenceMargin: 0.15,
		HoldTime:         500 * time.Millisecond,
		MaxFlatness:      0.5,
		GateDB:           -60,
	}
}

func DefaultArpeggioConfig() ArpeggioConfig {
	return ArpeggioConfig{
		Tempo:        120,
		Pattern:      "up",
		Duration:     2.0,
		TicksPerBeat: 4,
		OctaveSpan:   3,
		Seed:         1,
		BaseOctave:   4,
	}
}

func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		Voice:     "saw",
		MaxVoices: 8,
		VoiceGain: 0.3,
		Gain:      1.0,
	}
}

// Load reads a JSON config file on top of DefaultConfig
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BufferPeriod is the time budget of one audio callback
func (c *Config) BufferPeriod() time.Duration {
	return time.Duration(float64(c.BufferSize) / float64(c.SampleRate) * float64(time.Second))
}

// Validate checks ranges only; pattern, window and voice names are checked by
// the packages that own those tables.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return Invalid("sample_rate", c.SampleRate, "must be within [8000, 192000]")
	case c.BufferSize < 16 || c.BufferSize > 16384:
		return Invalid("buffer_size", c.BufferSize, "must be within [16, 16384]")
	case c.Analysis.TransformSize < c.BufferSize:
		return Invalid("analysis.transform_size", c.Analysis.TransformSize, "must be at least buffer_size")
	case c.Analysis.DetectEvery < 1:
		return Invalid("analysis.detect_every", c.Analysis.DetectEvery, "must be positive")
	case !(c.Analysis.DCCutoff >= 0) || c.Analysis.DCCutoff >= c.Detection.MinFrequency:
		return Invalid("analysis.dc_cutoff", c.Analysis.DCCutoff, "must be within [0, detection.min_frequency)")
	case c.Detection.MinFrequency <= 0 || c.Detection.MaxFrequency <= c.Detection.MinFrequency:
		return Invalid("detection.max_frequency", c.Detection.MaxFrequency, "frequency range is empty")
	case c.Detection.MaxFrequency >= float64(c.SampleRate)/2:
		return Invalid("detection.max_frequency", c.Detection.MaxFrequency, "must be below Nyquist")
	case c.Detection.MinConfidence <= 0 || c.Detection.MinConfidence > 1:
		return Invalid("detection.min_confidence", c.Detection.MinConfidence, "must be within (0, 1]")
	case c.Detection.CentsTolerance <= 0 || c.Detection.CentsTolerance > 50:
		return Invalid("detection.cents_tolerance", c.Detection.CentsTolerance, "must be within (0, 50]")
	case c.Detection.MaxFlatness < 0 || c.Detection.MaxFlatness > 1:
		return Invalid("detection.max_flatness", c.Detection.MaxFlatness, "must be within [0, 1]")
	case !(c.Detection.GateDB >= -120 && c.Detection.GateDB <= 0):
		return Invalid("detection.gate_db", c.Detection.GateDB, "must be within [-120, 0]")
	case c.Detection.HoldTime < 0:
		return Invalid("detection.hold_time", c.Detection.HoldTime, "must not be negative")
	case c.Arpeggio.Tempo < MinTempo || c.Arpeggio.Tempo > MaxTempo:
		return Invalid("arpeggio.tempo", c.Arpeggio.Tempo, fmt.Sprintf("must be within [%d, %d]", MinTempo, MaxTempo))
	case c.Arpeggio.Duration < MinDuration || c.Arpeggio.Duration > MaxDuration:
		return Invalid("arpeggio.duration", c.Arpeggio.Duration, fmt.Sprintf("must be within [%.1f, %.1f]", MinDuration, MaxDuration))
	case c.Arpeggio.TicksPerBeat < 1 || c.Arpeggio.TicksPerBeat > 16:
		return Invalid("arpeggio.ticks_per_beat", c.Arpeggio.TicksPerBeat, "must be within [1, 16]")
	case c.Arpeggio.OctaveSpan < 1 || c.Arpeggio.OctaveSpan > 5:
		return Invalid("arpeggio.octave_span", c.Arpeggio.OctaveSpan, "must be within [1, 5]")
	case c.Arpeggio.BaseOctave < 1 || c.Arpeggio.BaseOctave > 7:
		return Invalid("arpeggio.base_octave", c.Arpeggio.BaseOctave, "must be within [1, 7]")
	case c.Synth.MaxVoices < 1 || c.Synth.MaxVoices > 64:
		return Invalid("synth.max_voices", c.Synth.MaxVoices, "must be within [1, 64]")
	case c.Synth.Gain < 0 || c.Synth.Gain > MaxGain:
		return Invalid("synth.gain", c.Synth.Gain, "must be within [0, 2]")
	case c.Monitor.Gain < 0 || c.Monitor.Gain > 1:
		return Invalid("monitor.gain", c.Monitor.Gain, "must be within [0, 1]")
	case c.Delay.Feedback < 0 || c.Delay.Feedback > 0.9:
		return Invalid("delay.feedback", c.Delay.Feedback, "must be within [0, 0.9]")
	case c.Delay.Wet < 0 || c.Delay.Wet > 1:
		return Invalid("delay.wet", c.Delay.Wet, "must be within [0, 1]")
	case c.Delay.MaxSeconds <= 0 || c.Delay.MaxSeconds > 8:
		return Invalid("delay.max_seconds", c.Delay.MaxSeconds, "must be within (0, 8]")
	case c.Input.MaxDuration < 0:
		return Invalid("input.max_duration", c.Input.MaxDuration, "must not be negative")
	}
	return nil
}
