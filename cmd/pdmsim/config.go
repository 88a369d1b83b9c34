package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softpdm/audio"
	"github.com/ardnew/softpdm/hal"
	"github.com/ardnew/softpdm/pkg"
)

// Config is the simulator configuration file.
type Config struct {
	PDM    PDMConfig    `yaml:"pdm"`
	Power  PowerConfig  `yaml:"power"`
	Source SourceConfig `yaml:"source"`
	Log    LogConfig    `yaml:"log"`
}

// PDMConfig describes the microphone and capture buffers.
type PDMConfig struct {
	CLK           uint8         `yaml:"clk"`
	DIN           uint8         `yaml:"din"`
	Channel       string        `yaml:"channel"`   // left or right
	GainDB        float64       `yaml:"gain_db"`   // -20 to +20 in 0.5 dB steps
	Frequency     string        `yaml:"frequency"` // 1000k, 1032k or 1067k
	BufferSamples int           `yaml:"buffer_samples"`
	FrameSamples  int           `yaml:"frame_samples"`
	SettleTime    time.Duration `yaml:"settle_time"`
}

// PowerConfig describes the optional microphone power pin.
type PowerConfig struct {
	Enabled   bool  `yaml:"enabled"`
	Pin       uint8 `yaml:"pin"`
	ActiveLow bool  `yaml:"active_low"`
}

// SourceConfig selects what the simulated microphone hears.
type SourceConfig struct {
	Kind      string  `yaml:"kind"`  // tone, raw, wav or silence
	Input     string  `yaml:"input"` // File or named pipe for raw and wav
	ToneHz    float64 `yaml:"tone_hz"`
	ToneLevel float64 `yaml:"tone_level"` // Peak relative to full scale
	Realtime  bool    `yaml:"realtime"`
}

// LogConfig controls logging. File output is rotated.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Source kinds.
const (
	sourceTone    = "tone"
	sourceRaw     = "raw"
	sourceWAV     = "wav"
	sourceSilence = "silence"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		PDM: PDMConfig{
			CLK:           26,
			DIN:           25,
			Channel:       audio.ChannelLeft.String(),
			Frequency:     "1032k",
			BufferSamples: audio.DefaultBufferSamples,
			FrameSamples:  audio.DefaultFrameSamples,
			SettleTime:    audio.DefaultSettleTime,
		},
		Power: PowerConfig{
			Pin: 30,
		},
		Source: SourceConfig{
			Kind:      sourceTone,
			ToneHz:    1000,
			ToneLevel: 0.5,
		},
		Log: LogConfig{
			Level:      "warn",
			Format:     pkg.LogFormatText.String(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads path over the defaults. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Audio converts the file configuration to a validated driver
// configuration.
func (c *Config) Audio() (audio.Config, error) {
	cfg := audio.DefaultConfig(hal.Pin(c.PDM.CLK), hal.Pin(c.PDM.DIN))

	ch, err := parseChannel(c.PDM.Channel)
	if err != nil {
		return cfg, err
	}
	cfg.Channel = ch

	gain, err := parseGain(c.PDM.GainDB)
	if err != nil {
		return cfg, err
	}
	cfg.Gain = gain

	freq, err := parseFrequency(c.PDM.Frequency)
	if err != nil {
		return cfg, err
	}
	cfg.Frequency = freq

	cfg.BufferSamples = c.PDM.BufferSamples
	cfg.FrameSamples = c.PDM.FrameSamples
	cfg.SettleTime = c.PDM.SettleTime
	cfg.Power = audio.PowerControl{
		Enabled:   c.Power.Enabled,
		Pin:       hal.Pin(c.Power.Pin),
		ActiveLow: c.Power.ActiveLow,
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseChannel accepts "left" or "right" (case-insensitive).
func parseChannel(s string) (audio.Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return audio.ChannelLeft, nil
	case "right", "r":
		return audio.ChannelRight, nil
	default:
		return 0, fmt.Errorf("channel %q: %w", s, pkg.ErrInvalidConfig)
	}
}

// parseGain converts decibels to the nearest 0.5 dB gain step.
func parseGain(db float64) (hal.Gain, error) {
	steps := int(hal.GainDefault) + int(math.Round(db*2))
	if math.IsNaN(db) || steps < int(hal.GainMin) || steps > int(hal.GainMax) {
		return 0, fmt.Errorf("gain %g dB: %w", db, pkg.ErrInvalidConfig)
	}
	return hal.Gain(steps), nil
}

// parseFrequency accepts a PDM clock in Hz, kHz ("1032k") or MHz
// ("1.032M").
func parseFrequency(s string) (hal.Frequency, error) {
	v := strings.TrimSpace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(v, "k"), strings.HasSuffix(v, "K"):
		mult, v = 1e3, v[:len(v)-1]
	case strings.HasSuffix(v, "M"):
		mult, v = 1e6, v[:len(v)-1]
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("frequency %q: %w", s, pkg.ErrInvalidConfig)
	}
	f := hal.Frequency(math.Round(n * mult))
	if !f.IsValid() {
		return 0, fmt.Errorf("frequency %q: %w", s, pkg.ErrInvalidConfig)
	}
	return f, nil
}
