// Package scheduler owns the simulation clock. Each tick produces the next
// timeslot; timeslot ids start at 1 and are never reused, even across a stop
// and restart.
package scheduler
