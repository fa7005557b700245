package accounting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/logger"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/rules"
)

var (
	// ErrNotFound is returned when no tariff has the requested id.
	ErrNotFound = errors.New("tariff not found")
	// ErrUnauthorized is returned when the auth token does not match the
	// owner of the tariff.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRuleRejected is returned when a tariff rule enforcer vetoed the action.
	ErrRuleRejected = errors.New("rejected by tariff rule")
	// ErrUnsupportedCommand is returned by Apply for unknown command types.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// Evaluator decides whether a tariff action may proceed.
type Evaluator interface {
	Evaluate(action model.TariffAction) rules.Decision
}

// TimeslotSource reports the current timeslot.
type TimeslotSource interface {
	Current() (model.Timeslot, bool)
}

// Service applies tariff commands to the ledger one at a time.
type Service struct {
	mu     sync.Mutex
	ledger *Ledger
	chain  Evaluator
	store  audit.Store
	slots  TimeslotSource
	log    logger.Logger
	now    func() time.Time
}

// NewService wires a service. slots may be nil, in which case audit records
// carry timeslot 0.
func NewService(ledger *Ledger, chain Evaluator, store audit.Store, slots TimeslotSource, log logger.Logger) *Service {
	return &Service{ledger: ledger, chain: chain, store: store, slots: slots, log: log, now: time.Now}
}

// Ledger exposes the ledger for read access.
func (s *Service) Ledger() *Ledger { return s.ledger }

// RevokeTariff revokes a tariff on behalf of its owner.
func (s *Service) RevokeTariff(ctx context.Context, cmd model.RevokeTariffCommand) error {
	_, err := s.Apply(ctx, cmd)
	return err
}

// ApplyReply processes a market reply. An accepted reply is checked against
// the rule chain without changing the ledger; a refused reply proposes the
// tariff for revocation.
func (s *Service) ApplyReply(ctx context.Context, reply model.TariffReply) error {
	_, err := s.Apply(ctx, reply)
	return err
}

// Apply executes cmd and returns the recorded outcome.
func (s *Service) Apply(ctx context.Context, cmd model.Command) (audit.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c := cmd.(type) {
	case model.RevokeTariffCommand:
		return s.revoke(ctx, c.TariffID, c.AuthToken, true, c.Type())
	case *model.RevokeTariffCommand:
		return s.revoke(ctx, c.TariffID, c.AuthToken, true, c.Type())
	case model.TariffReply:
		return s.reply(ctx, c)
	case *model.TariffReply:
		return s.reply(ctx, *c)
	default:
		return "", fmt.Errorf("%T: %w", cmd, ErrUnsupportedCommand)
	}
}

func (s *Service) reply(ctx context.Context, r model.TariffReply) (audit.Outcome, error) {
	if !r.Accepted {
		return s.revoke(ctx, r.TariffID, "", false, r.Type())
	}
	t, err := s.ledger.Get(r.TariffID)
	if err != nil {
		return "", err
	}
	if err := s.enforce(model.ActionAccept, t, r.Type()); err != nil {
		return "", err
	}
	return audit.OutcomeAcknowledged, s.record(ctx, t, r.Type(), audit.OutcomeAcknowledged)
}

// revoke runs the revocation checks in order: existence, ownership,
// idempotence, rules.
func (s *Service) revoke(ctx context.Context, id int64, token string, checkOwner bool, src model.CommandType) (audit.Outcome, error) {
	t, err := s.ledger.Get(id)
	if err != nil {
		return "", err
	}
	if checkOwner && token != t.OwnerAuthToken {
		s.log.Warnf("revoke tariff %d: token mismatch", id)
		return "", fmt.Errorf("revoke tariff %d: %w", id, ErrUnauthorized)
	}
	if t.IsRevoked() {
		s.log.Debugf("tariff %d already revoked", id)
		return audit.OutcomeAlreadyRevoked, s.record(ctx, t, src, audit.OutcomeAlreadyRevoked)
	}
	if err := s.enforce(model.ActionRevoke, t, src); err != nil {
		return "", err
	}
	if _, err := s.ledger.markRevoked(id, s.now()); err != nil {
		return "", err
	}
	s.log.Infow("tariff revoked", map[string]any{"tariff_id": id, "broker": t.Broker, "source": string(src)})
	return audit.OutcomeRevoked, s.record(ctx, t, src, audit.OutcomeRevoked)
}

func (s *Service) enforce(kind model.ActionKind, t model.Tariff, src model.CommandType) error {
	d := s.chain.Evaluate(model.TariffAction{Kind: kind, TariffID: t.ID, Broker: t.Broker, Source: src})
	if d.Accepted {
		return nil
	}
	if d.RejectedBy != "" {
		return fmt.Errorf("%s tariff %d: enforcer %s: %w", kind, t.ID, d.RejectedBy, ErrRuleRejected)
	}
	return fmt.Errorf("%s tariff %d: no enforcer registered: %w", kind, t.ID, ErrRuleRejected)
}

func (s *Service) record(ctx context.Context, t model.Tariff, src model.CommandType, outcome audit.Outcome) error {
	if s.store == nil {
		return nil
	}
	rec := audit.Record{
		ID:        uuid.NewString(),
		TariffID:  t.ID,
		Broker:    t.Broker,
		Command:   src,
		Outcome:   outcome,
		Timestamp: s.now(),
	}
	if s.slots != nil {
		if ts, ok := s.slots.Current(); ok {
			rec.Timeslot = ts.ID
		}
	}
	if err := s.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("audit tariff %d: %w", t.ID, err)
	}
	return nil
}
