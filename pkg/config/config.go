// Package config loads the director's on-disk JSON configuration
// (spec.md §6) into a typed, fully-defaulted record, and persists the
// calibration-apply rewrite atomically.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/autoswitch/director/pkg/director"
)

// Defaults mirror spec.md §4's tables — applied once, here, never inside
// a tick (Design Note 9).
const (
	DefaultCooldownS     = 8.0
	DefaultMinDurationS  = 3.0
	DefaultMultiCount    = 2
	DefaultSilenceTimeS  = 4.0
	DefaultIntervalEveryS = 30.0
	DefaultCalibrationS  = 5.0
	DefaultWeight        = 1.0
)

// MicEntry is one microphone's on-disk configuration row.
type MicEntry struct {
	ID           string  `json:"id" mapstructure:"id"`
	InputChannel int     `json:"input_channel" mapstructure:"input_channel"`
	Camera       string   `json:"camera" mapstructure:"camera"`
	ThresholdDB  float64  `json:"threshold_db" mapstructure:"threshold_db"`
	Weight       *float64 `json:"weight,omitempty" mapstructure:"weight"`
	Enabled      *bool    `json:"enabled,omitempty" mapstructure:"enabled"`
}

// Config is the untyped-JSON-tree-turned-struct described in spec.md §6.
// Optional fields are pointers so ToOptions can tell "absent" from "zero" when
// applying defaults.
type Config struct {
	AudioDevice   *string          `json:"audio_device" mapstructure:"audio_device"`
	AudioChannels int              `json:"audio_channels" mapstructure:"audio_channels"`
	Automix       AutomixConfig    `json:"automix" mapstructure:"automix"`
	Mics          []MicEntry       `json:"mics" mapstructure:"mics"`
	OSC           OSCConfig        `json:"osc" mapstructure:"osc"`
	Wide          WideConfig       `json:"wide" mapstructure:"wide"`
}

type AutomixConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

type OSCConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

type WideConfig struct {
	CooldownS    *float64          `json:"cooldown_s,omitempty" mapstructure:"cooldown_s"`
	MinDurationS *float64          `json:"min_duration_s,omitempty" mapstructure:"min_duration_s"`
	MultiSpeaker MultiSpeakerConfig `json:"multi_speaker" mapstructure:"multi_speaker"`
	Silence      SilenceConfig      `json:"silence" mapstructure:"silence"`
	Interval     IntervalConfig     `json:"interval" mapstructure:"interval"`
}

type MultiSpeakerConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Count   *int `json:"count,omitempty" mapstructure:"count"`
}

type SilenceConfig struct {
	Enabled bool     `json:"enabled" mapstructure:"enabled"`
	TimeS   *float64 `json:"time_s,omitempty" mapstructure:"time_s"`
}

type IntervalConfig struct {
	Enabled bool     `json:"enabled" mapstructure:"enabled"`
	EveryS  *float64 `json:"every_s,omitempty" mapstructure:"every_s"`
}

// Load reads path through viper (JSON), unmarshals into a Config, then
// lets environment variables (loaded by the caller via godotenv)
// override audio_device/osc.host/osc.port — useful for containerized
// deployments that cannot easily edit the JSON file in place.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if dev, ok := os.LookupEnv("DIRECTOR_AUDIO_DEVICE"); ok {
		cfg.AudioDevice = &dev
	}
	if host, ok := os.LookupEnv("DIRECTOR_OSC_HOST"); ok {
		cfg.OSC.Host = host
	}
	if portStr, ok := os.LookupEnv("DIRECTOR_OSC_PORT"); ok {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.OSC.Port = port
		}
	}
}

// ToOptions binds the untyped-tree Config to the director's fully
// defaulted director.Options, applying every default from spec.md §4
// exactly once (Design Note 9).
func ToOptions(cfg Config) director.Options {
	mics := make([]director.MicConfig, 0, len(cfg.Mics))
	for _, m := range cfg.Mics {
		weight := floatOr(m.Weight, DefaultWeight)
		enabled := true
		if m.Enabled != nil {
			enabled = *m.Enabled
		}
		mics = append(mics, director.MicConfig{
			ID:           m.ID,
			InputChannel: m.InputChannel,
			Camera:       m.Camera,
			ThresholdDB:  m.ThresholdDB,
			Weight:       weight,
			Enabled:      enabled,
		})
	}

	return director.Options{
		Mics:           mics,
		AutomixEnabled: cfg.Automix.Enabled,
		CalibrationDur: time.Duration(DefaultCalibrationS * float64(time.Second)),
		Wide: director.WideOptions{
			CooldownS:    floatOr(cfg.Wide.CooldownS, DefaultCooldownS),
			MinDurationS: floatOr(cfg.Wide.MinDurationS, DefaultMinDurationS),
			MultiSpeaker: director.MultiSpeakerOption{
				Enabled: cfg.Wide.MultiSpeaker.Enabled,
				Count:   intOr(cfg.Wide.MultiSpeaker.Count, DefaultMultiCount),
			},
			Silence: director.SilenceOption{
				Enabled: cfg.Wide.Silence.Enabled,
				TimeS:   floatOr(cfg.Wide.Silence.TimeS, DefaultSilenceTimeS),
			},
			Interval: director.IntervalOption{
				Enabled: cfg.Wide.Interval.Enabled,
				EveryS:  floatOr(cfg.Wide.Interval.EveryS, DefaultIntervalEveryS),
			},
		},
	}
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// ApplyCalibration writes a single mic's suggested threshold/weight back
// into cfg and rewrites path atomically (temp file + rename), matching
// spec.md §6: "the file is the single source of truth; apply_calibration
// rewrites it atomically." A write failure leaves the on-disk file (and
// the in-memory cfg passed in) untouched and is surfaced to the caller,
// who must respond with applied:false (spec.md §7).
func ApplyCalibration(path string, cfg Config, micID string, result director.CalibrationResult) (Config, error) {
	updated := cfg
	updated.Mics = make([]MicEntry, len(cfg.Mics))
	copy(updated.Mics, cfg.Mics)

	found := false
	for i := range updated.Mics {
		if updated.Mics[i].ID == micID {
			weight := result.SuggestedWeight
			updated.Mics[i].ThresholdDB = result.SuggestedThreshold
			updated.Mics[i].Weight = &weight
			found = true
			break
		}
	}
	if !found {
		return cfg, director.ErrUnknownMic
	}

	if err := writeAtomic(path, updated); err != nil {
		return cfg, err
	}
	return updated, nil
}

func writeAtomic(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}
