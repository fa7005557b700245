package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the simulation clock.
type Config struct {
	// TimeslotLengthMinutes is the simulated length of one timeslot.
	TimeslotLengthMinutes int `json:"timeslot_length_minutes" yaml:"timeslot_length_minutes"`
	// SimulationRate is the ratio of simulated to wall-clock time.
	SimulationRate float64 `json:"simulation_rate" yaml:"simulation_rate"`
	// BaseTime is the start of timeslot 1.
	BaseTime time.Time `json:"base_time" yaml:"base_time"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TimeslotLengthMinutes == 0 {
		c.TimeslotLengthMinutes = 60
	}
	if c.SimulationRate == 0 {
		c.SimulationRate = 720
	}
	if c.BaseTime.IsZero() {
		c.BaseTime = time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}

// Validate checks the clock parameters.
func (c Config) Validate() error {
	if c.TimeslotLengthMinutes <= 0 {
		return errors.New("timeslot_length_minutes must be positive")
	}
	if c.SimulationRate <= 0 {
		return errors.New("simulation_rate must be positive")
	}
	return nil
}

// Length returns the simulated timeslot length.
func (c Config) Length() time.Duration {
	return time.Duration(c.TimeslotLengthMinutes) * time.Minute
}

// DecodeConfig reads a Config from r in the given format.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	return cfg, nil
}
