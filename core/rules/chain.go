// Package rules evaluates tariff actions against the registered tariff rule
// enforcers. An action is accepted only if every enforcer accepts it.
package rules

import (
	"fmt"

	"github.com/kilianp07/retailmarket/core/logger"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/monitoring"
	"github.com/kilianp07/retailmarket/core/registry"
)

// Decision is the result of an evaluation.
type Decision struct {
	Accepted bool
	// RejectedBy is the id of the first enforcer that voted against the
	// action, or empty when the empty-chain policy rejected it.
	RejectedBy string
	// Consulted is the number of enforcers asked.
	Consulted int
}

// EnforcerSource provides the enforcers to consult, in order.
type EnforcerSource interface {
	Enforcers() []registry.TariffRuleEnforcer
}

// Chain consults tariff rule enforcers. It holds no mutable state and is safe
// for concurrent use.
type Chain struct {
	source EnforcerSource
	policy Policy
	log    logger.Logger
}

// NewChain creates a chain reading enforcers from source.
func NewChain(source EnforcerSource, cfg Config, log logger.Logger) (*Chain, error) {
	if source == nil {
		return nil, fmt.Errorf("rules: nil enforcer source")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chain{source: source, policy: cfg.EmptyChain, log: log}, nil
}

// Evaluate asks every enforcer in registration order and stops at the first
// rejection.
func (c *Chain) Evaluate(action model.TariffAction) Decision {
	enforcers := c.source.Enforcers()
	if len(enforcers) == 0 {
		return Decision{Accepted: c.policy == PolicyAccept}
	}
	for i, e := range enforcers {
		if !c.vote(e, action) {
			c.log.Infof("tariff %d %s rejected by enforcer %s", action.TariffID, action.Kind, e.ID())
			return Decision{Accepted: false, RejectedBy: e.ID(), Consulted: i + 1}
		}
	}
	return Decision{Accepted: true, Consulted: len(enforcers)}
}

// vote isolates a misbehaving enforcer: a panic counts as a rejection.
func (c *Chain) vote(e registry.TariffRuleEnforcer, action model.TariffAction) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("enforcer %s panicked: %v", e.ID(), r)
			c.log.Errorf("%v", err)
			monitoring.CaptureException(err, map[string]string{"module": e.ID(), "capability": model.CapabilityTariffRuleEnforcer.String()})
			ok = false
		}
	}()
	return e.Accept(action)
}
