package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected; an empty document yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills values an explicit zero would make meaningless.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.PWM.Period == 0 {
		cfg.PWM.Period = def.PWM.Period
	}
	if cfg.ADC.PhaseDivider == 0 {
		cfg.ADC.PhaseDivider = 1
	}
	if cfg.ADC.VBattDivider == 0 {
		cfg.ADC.VBattDivider = 1
	}
	if cfg.Sim.TraceBaud == 0 {
		cfg.Sim.TraceBaud = def.Sim.TraceBaud
	}
}
