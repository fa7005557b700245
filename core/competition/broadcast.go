package competition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/monitoring"
	"github.com/kilianp07/retailmarket/core/registry"
)

type status int

const (
	notified status = iota
	timedOut
	failed
	abandoned
)

type target struct {
	ref      ModuleRef
	listener registry.TimeslotListener
}

// targets snapshots customers then distribution utilities, each in
// registration order.
func (c *Controller) targets() []target {
	customers := c.modules.Customers()
	utilities := c.modules.DistributionUtilities()
	out := make([]target, 0, len(customers)+len(utilities))
	for _, m := range customers {
		out = append(out, target{ref: ModuleRef{Capability: model.CapabilityCustomer, ID: m.ID()}, listener: m})
	}
	for _, m := range utilities {
		out = append(out, target{ref: ModuleRef{Capability: model.CapabilityDistributionUtility, ID: m.ID()}, listener: m})
	}
	return out
}

func (c *Controller) broadcast(ctx context.Context, ev events.TimeslotChanged, round *Round) {
	targets := c.targets()
	results := make([]status, len(targets))
	if c.cfg.ConcurrentBroadcast {
		var wg sync.WaitGroup
		for i, t := range targets {
			wg.Add(1)
			go func(i int, t target) {
				defer wg.Done()
				results[i] = c.notify(ctx, t, ev)
			}(i, t)
		}
		wg.Wait()
	} else {
		for i, t := range targets {
			results[i] = c.notify(ctx, t, ev)
		}
	}
	for i, st := range results {
		switch st {
		case notified:
			round.Notified = append(round.Notified, targets[i].ref)
		case timedOut:
			round.TimedOut = append(round.TimedOut, targets[i].ref)
		case failed:
			round.Failed = append(round.Failed, targets[i].ref)
		case abandoned:
			round.Abandoned = append(round.Abandoned, targets[i].ref)
		}
	}
}

// notify delivers ev to one module, bounded by the module timeout. A module
// that overruns is left running in the background and stays registered. A
// module still running when the round itself is cancelled is abandoned, not
// timed out.
func (c *Controller) notify(ctx context.Context, t target, ev events.TimeslotChanged) status {
	if ctx.Err() != nil {
		return abandoned
	}
	timeout := c.cfg.moduleTimeout()
	start := time.Now()
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("module %s panicked: %v", t.ref, r)
				monitoring.CaptureException(err, map[string]string{
					"module":     t.ref.ID,
					"capability": t.ref.Capability.String(),
				})
				done <- err
			}
		}()
		done <- t.listener.OnTimeslot(mctx, ev)
	}()

	select {
	case err := <-done:
		if err != nil {
			c.log.Warnf("module %s failed on timeslot %d: %v", t.ref, ev.ID(), err)
			return failed
		}
		return notified
	case <-mctx.Done():
		waited := time.Since(start)
		if ctx.Err() != nil {
			c.log.Warnf("module %s abandoned on timeslot %d after %s", t.ref, ev.ID(), waited)
			return abandoned
		}
		err := fmt.Errorf("module %s on timeslot %d: %w", t.ref, ev.ID(), ErrModuleTimeout)
		c.log.Warnf("%v after %s", err, waited)
		c.publish(events.ModuleTimeout{
			Capability: t.ref.Capability,
			ModuleID:   t.ref.ID,
			Timeslot:   ev.ID(),
			Waited:     waited,
		})
		return timedOut
	}
}

// diagnose hands every distribution utility a summary of the round.
func (c *Controller) diagnose(round *Round) {
	msg := fmt.Sprintf("timeslot %d: %d notified, %d timed out, %d failed",
		round.Timeslot.ID, len(round.Notified), len(round.TimedOut), len(round.Failed))
	for _, du := range c.modules.DistributionUtilities() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Errorf("distribution utility %s panicked in Log: %v", du.ID(), r)
				}
			}()
			du.Log(msg)
		}()
	}
}
