// Package spsconfig loads the daemon's optional tuning file. The
// daemon runs correctly with no file present; every field has a
// default matching the behavior described in the external interface.
package spsconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oxfordcbrg/spsd/pkg/constants"
)

// Config holds values that can be overridden by an optional
// sps-config.yml. No CLI flag or environment variable overrides these
// fields; they only select which file is read.
type Config struct {
	SampleRateSeconds int    `yaml:"sample_rate_seconds"`
	ShrinkIntervalTicks int  `yaml:"shrink_interval_ticks"`
	GPUPollEnabled    bool   `yaml:"gpu_poll_enabled"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
}

// Defaults returns the configuration used when no tuning file is found.
func Defaults() Config {
	return Config{
		SampleRateSeconds:   constants.DefaultSampleRateSeconds,
		ShrinkIntervalTicks: constants.ShrinkIntervalTicks,
		GPUPollEnabled:      true,
		LogLevel:            "INFO",
		LogFormat:           "text",
	}
}

// Load searches, in order, an explicit path, $SPS_CONFIG, and
// /etc/sps/sps-config.yml, returning defaults overlaid with whatever the
// first file found sets. A missing file at every candidate path is not
// an error -- it returns Defaults() and the empty string for the path.
func Load(explicitPath string) (Config, string, error) {
	cfg := Defaults()

	candidates := []string{explicitPath, os.Getenv("SPS_CONFIG"), "/etc/sps/sps-config.yml"}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return cfg, "", err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, "", err
		}
		if cfg.ShrinkIntervalTicks <= 0 {
			cfg.ShrinkIntervalTicks = constants.ShrinkIntervalTicks
		}
		if cfg.SampleRateSeconds <= 0 {
			cfg.SampleRateSeconds = constants.DefaultSampleRateSeconds
		}
		return cfg, path, nil
	}
	return cfg, "", nil
}
