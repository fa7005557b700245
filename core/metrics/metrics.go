package metrics

import (
	"time"

	"github.com/kilianp07/retailmarket/core/model"
)

// TimeslotEvent summarizes a finished round.
type TimeslotEvent struct {
	Timeslot int64
	Notified int
	TimedOut int
	Failed   int
	Commands int
	Duration time.Duration
	Time     time.Time
}

// CommandEvent records one applied or refused command.
type CommandEvent struct {
	CommandID string
	Command   model.CommandType
	TariffID  int64
	Outcome   string
	Error     string
	Latency   time.Duration
	Time      time.Time
}

// Sink records competition metrics.
type Sink interface {
	RecordTimeslot(ev TimeslotEvent) error
	RecordCommand(ev CommandEvent) error
}

// ModuleTimeoutEvent reports a module that overran a broadcast.
type ModuleTimeoutEvent struct {
	Capability model.Capability
	ModuleID   string
	Timeslot   int64
	Waited     time.Duration
	Time       time.Time
}

// ModuleHealthRecorder is implemented by sinks tracking slow modules.
type ModuleHealthRecorder interface {
	RecordModuleTimeout(ev ModuleTimeoutEvent) error
}

// BusHealthRecorder is implemented by sinks tracking event bus drops.
type BusHealthRecorder interface {
	RecordBusDrops(total uint64) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTimeslot(TimeslotEvent) error           { return nil }
func (NopSink) RecordCommand(CommandEvent) error             { return nil }
func (NopSink) RecordModuleTimeout(ModuleTimeoutEvent) error { return nil }
func (NopSink) RecordBusDrops(uint64) error                  { return nil }
