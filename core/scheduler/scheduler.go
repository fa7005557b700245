package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/retailmarket/core/model"
)

// ErrNotRunning is returned by Tick when the clock is stopped or paused.
var ErrNotRunning = errors.New("scheduler not running")

// State of the clock.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Scheduler produces consecutive timeslots.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	length  time.Duration
	state   State
	lastID  int64
	current model.Timeslot
}

// New validates cfg and returns a stopped scheduler.
func New(cfg Config) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	return &Scheduler{cfg: cfg, length: cfg.Length()}, nil
}

// Start moves a stopped scheduler to Running. Starting a paused scheduler
// resumes it.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.state = Running
	s.mu.Unlock()
}

// Stop halts the clock. Ids issued so far stay consumed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
}

// Pause suspends ticking. It has no effect unless the clock is running.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if s.state == Running {
		s.state = Paused
	}
	s.mu.Unlock()
}

// Resume restarts a paused clock.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if s.state == Paused {
		s.state = Running
	}
	s.mu.Unlock()
}

// Tick advances the clock by one timeslot.
func (s *Scheduler) Tick() (model.Timeslot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return model.Timeslot{}, fmt.Errorf("tick in state %s: %w", s.state, ErrNotRunning)
	}
	s.lastID++
	start := s.cfg.BaseTime.Add(time.Duration(s.lastID-1) * s.length)
	s.current = model.Timeslot{
		ID:      s.lastID,
		Start:   start,
		End:     start.Add(s.length),
		Enabled: true,
	}
	return s.current, nil
}

// Current returns the last issued timeslot and false if none was issued yet.
func (s *Scheduler) Current() (model.Timeslot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.lastID > 0
}

// State returns the clock state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval is the wall-clock time between two ticks.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(float64(s.length) / s.cfg.SimulationRate)
}

// Length is the simulated length of a timeslot.
func (s *Scheduler) Length() time.Duration { return s.length }
