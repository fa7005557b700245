package events

import (
	"time"

	"github.com/kilianp07/retailmarket/core/model"
)

// ModuleTimeout reports a module that did not return from a broadcast
// within the configured timeout. The module stays registered.
type ModuleTimeout struct {
	Capability model.Capability `json:"capability"`
	ModuleID   string           `json:"moduleId"`
	Timeslot   int64            `json:"timeslot"`
	Waited     time.Duration    `json:"waited"`
}

func (ModuleTimeout) EventType() string { return "ModuleTimeout" }

// CommandApplied reports the outcome of a routed command. Err is empty on
// success.
type CommandApplied struct {
	CommandID string            `json:"commandId"`
	Command   model.CommandType `json:"command"`
	TariffID  int64             `json:"tariffId"`
	Outcome   string            `json:"outcome,omitempty"`
	Err       string            `json:"error,omitempty"`
	Latency   time.Duration     `json:"latency"`
}

func (CommandApplied) EventType() string { return "CommandApplied" }

// RoundCompleted summarizes one tick once every module returned or timed out.
type RoundCompleted struct {
	Timeslot  int64         `json:"timeslot"`
	Notified  int           `json:"notified"`
	TimedOut  int           `json:"timedOut"`
	Failed    int           `json:"failed"`
	Abandoned int           `json:"abandoned,omitempty"`
	Commands  int           `json:"commands"`
	Duration  time.Duration `json:"duration"`
}

func (RoundCompleted) EventType() string { return "RoundCompleted" }
