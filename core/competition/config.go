package competition

import (
	"errors"
	"time"
)

// Config defines how rounds are run.
type Config struct {
	// ModuleTimeoutMS bounds each module's handling of a broadcast.
	ModuleTimeoutMS int `json:"module_timeout_ms"`
	// GracePeriodMS is how long Shutdown waits for an in-flight round. Zero
	// selects the default; a negative value abandons the round immediately.
	GracePeriodMS int `json:"grace_period_ms"`
	// ConcurrentBroadcast notifies modules in parallel with a join barrier
	// instead of one after another.
	ConcurrentBroadcast bool `json:"concurrent_broadcast"`
	// MinTimeslots and ExpectedTimeslots bound the game length. Zero
	// MinTimeslots runs until shutdown.
	MinTimeslots      int `json:"min_timeslots"`
	ExpectedTimeslots int `json:"expected_timeslots"`
	// Seed drives the game length draw; zero picks a time-based seed.
	Seed int64 `json:"seed"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ModuleTimeoutMS == 0 {
		c.ModuleTimeoutMS = 1000
	}
	if c.GracePeriodMS == 0 {
		c.GracePeriodMS = 5000
	}
	if c.ExpectedTimeslots < c.MinTimeslots {
		c.ExpectedTimeslots = c.MinTimeslots
	}
}

// Validate checks the round parameters.
func (c Config) Validate() error {
	if c.ModuleTimeoutMS <= 0 {
		return errors.New("module_timeout_ms must be positive")
	}
	if c.MinTimeslots < 0 || c.ExpectedTimeslots < 0 {
		return errors.New("timeslot counts must not be negative")
	}
	return nil
}

func (c Config) moduleTimeout() time.Duration {
	return time.Duration(c.ModuleTimeoutMS) * time.Millisecond
}

func (c Config) gracePeriod() time.Duration {
	if c.GracePeriodMS < 0 {
		return 0
	}
	return time.Duration(c.GracePeriodMS) * time.Millisecond
}
