package command

import (
	"errors"
	"time"
)

// Config defines the router intake.
type Config struct {
	// QueueSize bounds the number of commands waiting to be applied.
	QueueSize int `json:"queue_size"`
	// SubmitTimeoutMS bounds how long a submitter waits for its result.
	SubmitTimeoutMS int `json:"submit_timeout_ms"`
	// RatePerSecond throttles intake when positive.
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	// ApplyBetweenTicks disables the concurrent consumer so commands are
	// only applied when the controller drains the queue after a broadcast.
	ApplyBetweenTicks bool `json:"apply_between_ticks"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.SubmitTimeoutMS == 0 {
		c.SubmitTimeoutMS = 5000
	}
	if c.RatePerSecond > 0 && c.Burst == 0 {
		c.Burst = 1
	}
}

// Validate checks the intake parameters.
func (c Config) Validate() error {
	if c.QueueSize < 1 {
		return errors.New("queue_size must be positive")
	}
	if c.SubmitTimeoutMS < 0 {
		return errors.New("submit_timeout_ms must not be negative")
	}
	if c.RatePerSecond < 0 || c.Burst < 0 {
		return errors.New("rate_per_second and burst must not be negative")
	}
	return nil
}

// SubmitTimeout returns the bounded wait as a duration.
func (c Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutMS) * time.Millisecond
}
