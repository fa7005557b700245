package events

import "time"

// SimStart is published before the first tick.
type SimStart struct {
	Start time.Time `json:"start"`
}

func (SimStart) EventType() string { return "SimStart" }

// SimEnd is published once the competition stops.
type SimEnd struct {
	LastTimeslot int64  `json:"lastTimeslot"`
	Reason       string `json:"reason"`
}

func (SimEnd) EventType() string { return "SimEnd" }

// SimPause is published when a broker pauses the clock.
type SimPause struct {
	Broker string `json:"broker"`
}

func (SimPause) EventType() string { return "SimPause" }

// SimResume is published when the pausing broker releases the clock.
type SimResume struct {
	Broker string `json:"broker"`
}

func (SimResume) EventType() string { return "SimResume" }
