// Package competition drives the simulation: it advances the clock, fans
// each new timeslot out to the participant modules and applies the commands
// received in between.
package competition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/logger"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/registry"
	"github.com/kilianp07/retailmarket/core/scheduler"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

var (
	// ErrControllerTerminated is returned by Step after Shutdown. It is the
	// same error the command router returns once closed.
	ErrControllerTerminated = command.ErrControllerTerminated
	// ErrShutdownForced is returned by Shutdown when the in-flight round
	// did not finish within the grace period and was abandoned.
	ErrShutdownForced = errors.New("shutdown forced")
	// ErrModuleTimeout marks a module that did not answer a broadcast in
	// time. It never aborts a round.
	ErrModuleTimeout = errors.New("module timeout")
	// ErrPauseHeld is returned when another broker already paused the clock.
	ErrPauseHeld = errors.New("clock paused by another broker")
	// ErrNotPaused is returned when releasing a pause the broker does not hold.
	ErrNotPaused = errors.New("no pause held by broker")
)

// Clock is the simulation clock the controller ticks.
type Clock interface {
	Start()
	Stop()
	Pause()
	Resume()
	Tick() (model.Timeslot, error)
	Current() (model.Timeslot, bool)
	State() scheduler.State
	Interval() time.Duration
}

// CommandQueue is drained between ticks and closed on shutdown.
type CommandQueue interface {
	Drain(ctx context.Context) int
	Close()
}

// ModuleRef identifies a module in a round report.
type ModuleRef struct {
	Capability model.Capability
	ID         string
}

func (m ModuleRef) String() string { return m.Capability.String() + "/" + m.ID }

// Round reports the outcome of one tick.
type Round struct {
	Timeslot model.Timeslot
	Notified []ModuleRef
	TimedOut []ModuleRef
	Failed   []ModuleRef
	Commands int
	Duration time.Duration

	// Abandoned lists modules still running when a forced shutdown cut the
	// round short.
	Abandoned []ModuleRef
}

// Controller runs the competition.
type Controller struct {
	cfg      Config
	clock    Clock
	modules  *registry.Registry
	commands CommandQueue
	bus      eventbus.EventBus[events.Event]
	log      logger.Logger

	length int

	stepMu     sync.Mutex
	terminated chan struct{}
	termOnce   sync.Once
	abort      context.Context
	abortRound context.CancelFunc
	started    sync.Once
	ended      sync.Once
	last       atomic.Int64

	pauseMu  sync.Mutex
	pausedBy string
}

// New creates a controller. commands and bus may be nil.
func New(cfg Config, clock Clock, modules *registry.Registry, commands CommandQueue, bus eventbus.EventBus[events.Event], log logger.Logger) (*Controller, error) {
	if clock == nil || modules == nil {
		return nil, errors.New("competition: clock and registry are required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("competition config: %w", err)
	}
	abort, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		clock:      clock,
		modules:    modules,
		commands:   commands,
		bus:        bus,
		log:        log,
		length:     GameLength(cfg.MinTimeslots, cfg.ExpectedTimeslots, cfg.Seed),
		terminated: make(chan struct{}),
		abort:      abort,
		abortRound: cancel,
	}
	return c, nil
}

// GracePeriod returns how long Shutdown waits for an in-flight round.
func (c *Controller) GracePeriod() time.Duration { return c.cfg.gracePeriod() }

// GameLength returns the number of timeslots Run plays, 0 for no limit.
func (c *Controller) GameLength() int { return c.length }

// LastTimeslot returns the id of the last completed timeslot.
func (c *Controller) LastTimeslot() int64 { return c.last.Load() }

// Terminated reports whether Shutdown was called or the game ended.
func (c *Controller) Terminated() bool {
	select {
	case <-c.terminated:
		return true
	default:
		return false
	}
}

func (c *Controller) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// Step runs one round and returns once every module returned or timed out
// and queued commands were applied.
func (c *Controller) Step(ctx context.Context) (Round, error) {
	if c.Terminated() {
		return Round{}, ErrControllerTerminated
	}
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	if c.Terminated() {
		return Round{}, ErrControllerTerminated
	}
	c.begin()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.abort, cancel)
	defer stop()

	start := time.Now()
	ts, err := c.clock.Tick()
	if err != nil {
		return Round{}, fmt.Errorf("step: %w", err)
	}
	ev := events.TimeslotChanged{Timeslot: ts}
	c.publish(ev)

	round := Round{Timeslot: ts}
	c.broadcast(ctx, ev, &round)
	c.diagnose(&round)
	if c.commands != nil {
		round.Commands = c.commands.Drain(ctx)
	}
	round.Duration = time.Since(start)
	c.last.Store(ts.ID)

	c.publish(events.RoundCompleted{
		Timeslot:  ts.ID,
		Notified:  len(round.Notified),
		TimedOut:  len(round.TimedOut),
		Failed:    len(round.Failed),
		Abandoned: len(round.Abandoned),
		Commands:  round.Commands,
		Duration:  round.Duration,
	})
	c.log.Infow("timeslot complete", map[string]any{
		"timeslot":  ts.ID,
		"notified":  len(round.Notified),
		"timed_out": len(round.TimedOut),
		"failed":    len(round.Failed),
		"abandoned": len(round.Abandoned),
		"commands":  round.Commands,
		"duration":  round.Duration.String(),
	})
	return round, nil
}

// begin starts the clock and announces the simulation once.
func (c *Controller) begin() {
	c.started.Do(func() {
		c.clock.Start()
		c.publish(events.SimStart{Start: time.Now()})
	})
}

func (c *Controller) finish(reason string) {
	c.ended.Do(func() {
		c.clock.Stop()
		c.publish(events.SimEnd{LastTimeslot: c.last.Load(), Reason: reason})
		c.log.Infof("simulation ended after timeslot %d: %s", c.last.Load(), reason)
	})
}

// Run ticks at the clock interval until ctx is cancelled, the game length is
// reached or Shutdown is called. Cancelling ctx stops new ticks but lets the
// in-flight round finish; only Shutdown abandons it.
func (c *Controller) Run(ctx context.Context) error {
	c.begin()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		if c.length > 0 && c.last.Load() >= int64(c.length) {
			c.terminate()
			c.closeCommands()
			c.finish("game length reached")
			return nil
		}
		select {
		case <-ctx.Done():
			c.finish("cancelled")
			return nil
		case <-c.terminated:
			return nil
		case <-timer.C:
		}
		timer.Reset(c.clock.Interval())
		if c.clock.State() == scheduler.Paused {
			continue
		}
		if _, err := c.Step(context.WithoutCancel(ctx)); err != nil {
			switch {
			case errors.Is(err, ErrControllerTerminated):
				return nil
			case errors.Is(err, scheduler.ErrNotRunning):
				continue
			default:
				return err
			}
		}
	}
}

func (c *Controller) terminate() {
	c.termOnce.Do(func() { close(c.terminated) })
}

func (c *Controller) closeCommands() {
	if c.commands != nil {
		c.commands.Close()
	}
}

// Shutdown stops the competition: no new ticks start. It waits up to the
// grace period (or until ctx is done) for the in-flight round, which still
// drains the queued commands, and abandons it otherwise with
// ErrShutdownForced. The command queue is closed before Shutdown returns.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.terminate()
	var err error
	if c.stepMu.TryLock() {
		c.stepMu.Unlock()
	} else {
		err = c.awaitRound(ctx)
	}
	if err != nil {
		c.log.Warnf("in-flight round abandoned after %s", c.cfg.gracePeriod())
	}
	c.abortRound()
	c.closeCommands()
	c.finish("shutdown")
	return err
}

// awaitRound waits for the in-flight round within the grace period.
func (c *Controller) awaitRound(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		c.stepMu.Lock()
		close(idle)
		c.stepMu.Unlock()
	}()
	grace := time.NewTimer(c.cfg.gracePeriod())
	defer grace.Stop()
	select {
	case <-idle:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}
	// The round may have ended together with the timer.
	select {
	case <-idle:
		return nil
	default:
		return ErrShutdownForced
	}
}

// RequestPause pauses the clock on behalf of broker.
func (c *Controller) RequestPause(broker string) error {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if c.pausedBy != "" && c.pausedBy != broker {
		return fmt.Errorf("pause by %s: %w", broker, ErrPauseHeld)
	}
	if c.pausedBy == broker {
		return nil
	}
	c.pausedBy = broker
	c.clock.Pause()
	c.publish(events.SimPause{Broker: broker})
	c.log.Infof("clock paused by %s", broker)
	return nil
}

// ReleasePause resumes the clock. Only the pausing broker may release it.
func (c *Controller) ReleasePause(broker string) error {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if c.pausedBy != broker || broker == "" {
		return fmt.Errorf("release by %s: %w", broker, ErrNotPaused)
	}
	c.pausedBy = ""
	c.clock.Resume()
	c.publish(events.SimResume{Broker: broker})
	c.log.Infof("clock released by %s", broker)
	return nil
}
