package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilianp07/retailmarket/core/model"
)

// Event is implemented by every event published on the competition bus.
type Event interface {
	EventType() string
}

const typeTimeslotChanged = "TimeslotChanged"

// TimeslotChanged announces that a new timeslot became current.
type TimeslotChanged struct {
	Timeslot model.Timeslot
}

func (TimeslotChanged) EventType() string { return typeTimeslotChanged }

// ID returns the timeslot id.
func (e TimeslotChanged) ID() int64 { return e.Timeslot.ID }

type timeslotWire struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Enabled   bool      `json:"enabled"`
}

// MarshalJSON encodes the event in its wire form.
func (e TimeslotChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeslotWire{
		Type:      typeTimeslotChanged,
		ID:        e.Timeslot.ID,
		StartTime: e.Timeslot.Start,
		EndTime:   e.Timeslot.End,
		Enabled:   e.Timeslot.Enabled,
	})
}

// UnmarshalJSON decodes the wire form and rejects other event types.
func (e *TimeslotChanged) UnmarshalJSON(b []byte) error {
	var w timeslotWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Type != typeTimeslotChanged {
		return fmt.Errorf("unexpected event type %q", w.Type)
	}
	e.Timeslot = model.Timeslot{ID: w.ID, Start: w.StartTime, End: w.EndTime, Enabled: w.Enabled}
	return nil
}
