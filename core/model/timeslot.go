package model

import "time"

// Timeslot is one discrete unit of simulation time. Timeslots are created by
// the scheduler and never modified afterwards.
type Timeslot struct {
	ID      int64     `json:"id"`
	Start   time.Time `json:"startTime"`
	End     time.Time `json:"endTime"`
	Enabled bool      `json:"enabled"`
}

// Duration returns the length of the timeslot.
func (t Timeslot) Duration() time.Duration { return t.End.Sub(t.Start) }

// Contains reports whether ts falls inside [Start, End).
func (t Timeslot) Contains(ts time.Time) bool {
	return !ts.Before(t.Start) && ts.Before(t.End)
}
