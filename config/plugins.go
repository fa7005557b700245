package config

import (
	"fmt"

	"github.com/kilianp07/retailmarket/core/factory"
	"github.com/kilianp07/retailmarket/core/model"
)

// ModuleSpec describes one participant module: its id, the type name of
// the factory that builds it and the raw configuration for that factory.
type ModuleSpec struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Plugin returns the factory configuration of the module.
func (m ModuleSpec) Plugin() factory.ModuleConfig {
	return factory.ModuleConfig{Type: m.Type, Conf: m.Conf}
}

// ModulesConfig lists the participant modules registered at startup, per
// capability, in registration order.
type ModulesConfig struct {
	Customers             []ModuleSpec `json:"customers"`
	DistributionUtilities []ModuleSpec `json:"distribution_utilities"`
	Enforcers             []ModuleSpec `json:"enforcers"`
}

// ByCapability returns the specs of c.
func (m ModulesConfig) ByCapability(c model.Capability) []ModuleSpec {
	switch c {
	case model.CapabilityCustomer:
		return m.Customers
	case model.CapabilityDistributionUtility:
		return m.DistributionUtilities
	case model.CapabilityTariffRuleEnforcer:
		return m.Enforcers
	default:
		return nil
	}
}

// Validate checks that every module has an id and a type.
func (m ModulesConfig) Validate() error {
	for _, c := range model.Capabilities {
		for i, s := range m.ByCapability(c) {
			if s.ID == "" || s.Type == "" {
				return fmt.Errorf("%s[%d]: id and type are required", c, i)
			}
		}
	}
	return nil
}
