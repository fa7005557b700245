package registry

import (
	"context"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/model"
)

// Module is the identity every participant module exposes.
type Module interface {
	ID() string
	Name() string
}

// TimeslotListener receives the TimeslotChanged broadcast of every tick.
type TimeslotListener interface {
	OnTimeslot(ctx context.Context, ev events.TimeslotChanged) error
}

// Customer is a customer model reacting to each tick.
type Customer interface {
	Module
	TimeslotListener
}

// DistributionUtility reacts to each tick and exposes a diagnostic sink.
type DistributionUtility interface {
	Module
	TimeslotListener
	Log(message string)
}

// TariffRuleEnforcer votes on tariff actions before they are applied.
type TariffRuleEnforcer interface {
	Module
	Accept(action model.TariffAction) bool
}

// Implements reports whether m satisfies the interface required by c.
func Implements(c model.Capability, m Module) bool {
	switch c {
	case model.CapabilityCustomer:
		_, ok := m.(Customer)
		return ok
	case model.CapabilityDistributionUtility:
		_, ok := m.(DistributionUtility)
		return ok
	case model.CapabilityTariffRuleEnforcer:
		_, ok := m.(TariffRuleEnforcer)
		return ok
	default:
		return false
	}
}
