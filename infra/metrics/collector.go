package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/retailmarket/core/events"
	coremetrics "github.com/kilianp07/retailmarket/core/metrics"
	"github.com/kilianp07/retailmarket/infra/logger"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

// DropCounter exposes the number of events a bus failed to deliver.
type DropCounter interface {
	Dropped() uint64
}

// StartEventCollector subscribes to the event bus and records metrics for
// events. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev, time.Now()); err != nil {
					log.Warnf("record %s: %v", ev.EventType(), err)
				}
				if dc, ok := bus.(DropCounter); ok {
					if r, ok := sink.(coremetrics.BusHealthRecorder); ok {
						_ = r.RecordBusDrops(dc.Dropped())
					}
				}
			}
		}
	}()
}

func record(sink coremetrics.Sink, ev events.Event, now time.Time) error {
	switch e := ev.(type) {
	case events.RoundCompleted:
		return sink.RecordTimeslot(coremetrics.TimeslotEvent{
			Timeslot: e.Timeslot,
			Notified: e.Notified,
			TimedOut: e.TimedOut,
			Failed:   e.Failed,
			Commands: e.Commands,
			Duration: e.Duration,
			Time:     now,
		})
	case events.CommandApplied:
		return sink.RecordCommand(coremetrics.CommandEvent{
			CommandID: e.CommandID,
			Command:   e.Command,
			TariffID:  e.TariffID,
			Outcome:   e.Outcome,
			Error:     e.Err,
			Latency:   e.Latency,
			Time:      now,
		})
	case events.ModuleTimeout:
		if r, ok := sink.(coremetrics.ModuleHealthRecorder); ok {
			return r.RecordModuleTimeout(coremetrics.ModuleTimeoutEvent{
				Capability: e.Capability,
				ModuleID:   e.ModuleID,
				Timeslot:   e.Timeslot,
				Waited:     e.Waited,
				Time:       now,
			})
		}
	}
	return nil
}
