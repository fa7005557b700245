// Package audit persists the outcome of every command applied to the tariff
// ledger.
package audit

import (
	"context"
	"time"

	"github.com/kilianp07/retailmarket/core/model"
)

// Outcome of an applied command.
type Outcome string

const (
	OutcomeRevoked        Outcome = "revoked"
	OutcomeAlreadyRevoked Outcome = "already_revoked"
	OutcomeAcknowledged   Outcome = "acknowledged"
)

// Record captures one applied command.
type Record struct {
	ID        string            `json:"id"`
	TariffID  int64             `json:"tariff_id"`
	Broker    string            `json:"broker,omitempty"`
	Command   model.CommandType `json:"command"`
	Outcome   Outcome           `json:"outcome"`
	Timestamp time.Time         `json:"timestamp"`
	// Timeslot is the id of the timeslot current when the command was
	// applied, 0 before the first tick.
	Timeslot int64 `json:"timeslot"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	TariffID int64
	Start    time.Time
	End      time.Time
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r Record) bool {
	if q.TariffID != 0 && r.TariffID != q.TariffID {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
