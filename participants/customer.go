package participants

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/infra/logger"
)

// ErrSkipped is returned by a customer that randomly skipped a timeslot.
var ErrSkipped = errors.New("timeslot skipped")

// CustomerConfig configures a LoggingCustomer.
type CustomerConfig struct {
	Name string `json:"name"`
	// Delay simulates processing time for each timeslot.
	Delay time.Duration `json:"delay"`
	// FailRate is the probability of returning ErrSkipped.
	FailRate float64 `json:"fail_rate"`
	Seed     int64   `json:"seed"`
}

// LoggingCustomer logs every timeslot it observes.
type LoggingCustomer struct {
	id   string
	cfg  CustomerConfig
	log  logger.Logger
	seen atomic.Int64
	last atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLoggingCustomer creates a customer module.
func NewLoggingCustomer(id string, cfg CustomerConfig) *LoggingCustomer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Name == "" {
		cfg.Name = id
	}
	return &LoggingCustomer{id: id, cfg: cfg, log: logger.New("customer"), rng: rand.New(rand.NewSource(seed))}
}

func (c *LoggingCustomer) ID() string   { return c.id }
func (c *LoggingCustomer) Name() string { return c.cfg.Name }

// OnTimeslot waits for the configured delay and records the timeslot.
func (c *LoggingCustomer) OnTimeslot(ctx context.Context, ev events.TimeslotChanged) error {
	if c.cfg.Delay > 0 {
		select {
		case <-time.After(c.cfg.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.cfg.FailRate > 0 {
		c.mu.Lock()
		skip := c.rng.Float64() < c.cfg.FailRate
		c.mu.Unlock()
		if skip {
			return ErrSkipped
		}
	}
	c.seen.Add(1)
	c.last.Store(ev.ID())
	c.log.Debugw("timeslot", map[string]any{"module_id": c.id, "timeslot": ev.ID()})
	return nil
}

// Seen returns the number of timeslots handled.
func (c *LoggingCustomer) Seen() int64 { return c.seen.Load() }

// Last returns the id of the last timeslot handled.
func (c *LoggingCustomer) Last() int64 { return c.last.Load() }
