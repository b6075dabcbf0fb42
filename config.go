package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"sidbridge/internal/sidcore"
)

// defaultFilterBias6581 matches the original device's empirically tuned
// 6581 filter curve correction.
const defaultFilterBias6581 = 0.24

// Config is the server's startup snapshot: everything the write queue,
// the worker and the session dispatcher need before the first client
// connects. There is no persistence layer here (see Non-goals) — this
// is loaded once at process start and never written back.
type Config struct {
	Host                     string   `yaml:"host"`
	Port                     int      `yaml:"port"`
	SampleRate               uint32   `yaml:"sample_rate"`
	SidCount                 int      `yaml:"sid_count"`
	ChipModel                []string `yaml:"chip_model"`
	Clock                    string   `yaml:"clock"`
	SamplingMethod           string   `yaml:"sampling_method"`
	FilterBias6581           float64  `yaml:"filter_bias_6581"`
	Digiboost                bool     `yaml:"digiboost"`
	AllowExternalConnections bool     `yaml:"allow_external_connections"`
	LogLevel                 string   `yaml:"log_level"`
}

// DefaultConfig mirrors the original's create_default_config exactly:
// one PAL 6581 SID, resampled, at 48kHz, externally discoverable.
func DefaultConfig() *Config {
	return &Config{
		Host:                     "0.0.0.0",
		Port:                     6581,
		SampleRate:               48000,
		SidCount:                 1,
		ChipModel:                []string{"6581"},
		Clock:                    "PAL",
		SamplingMethod:           "resample",
		FilterBias6581:           defaultFilterBias6581,
		Digiboost:                false,
		AllowExternalConnections: true,
		LogLevel:                 "info",
	}
}

// LoadConfig starts from DefaultConfig and overlays any fields present
// in the YAML file at path. An empty path, or a file that does not
// exist, is not an error: the defaults stand on their own.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClockHz resolves the configured video standard to its SID clock rate.
func (c *Config) ClockHz() uint32 {
	if c.Clock == "NTSC" {
		return sidcore.ClockNTSC
	}
	return sidcore.ClockPAL
}

// ResolveSamplingMethod resolves the configured string to the sidcore enum.
func (c *Config) ResolveSamplingMethod() sidcore.SamplingMethod {
	if c.SamplingMethod == "interpolate" {
		return sidcore.SamplingInterpolate
	}
	return sidcore.SamplingResample
}

// ResolveChipModel resolves slot i's chip model string, matching
// SetSidCount's backfill-from-slot-0 behaviour when i is out of range.
func (c *Config) ResolveChipModel(i int) sidcore.ChipModel {
	model := "6581"
	if len(c.ChipModel) > 0 {
		if i < len(c.ChipModel) {
			model = c.ChipModel[i]
		} else {
			model = c.ChipModel[0]
		}
	}
	if model == "8580" {
		return sidcore.MOS8580
	}
	return sidcore.MOS6581
}
