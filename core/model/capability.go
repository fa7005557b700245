package model

import (
	"fmt"
	"strings"
)

// Capability identifies the role a participant module plays in the market.
type Capability int

const (
	CapabilityCustomer Capability = iota + 1
	CapabilityDistributionUtility
	CapabilityTariffRuleEnforcer
)

// Capabilities lists every known capability in broadcast order.
var Capabilities = []Capability{
	CapabilityCustomer,
	CapabilityDistributionUtility,
	CapabilityTariffRuleEnforcer,
}

// String returns the configuration name of the capability.
func (c Capability) String() string {
	switch c {
	case CapabilityCustomer:
		return "customer"
	case CapabilityDistributionUtility:
		return "distribution_utility"
	case CapabilityTariffRuleEnforcer:
		return "tariff_rule_enforcer"
	default:
		return "unknown"
	}
}

// ParseCapability converts a configuration name into a Capability.
func ParseCapability(s string) (Capability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return CapabilityCustomer, nil
	case "distribution_utility", "distributionutility", "du":
		return CapabilityDistributionUtility, nil
	case "tariff_rule_enforcer", "tariffruleenforcer", "enforcer":
		return CapabilityTariffRuleEnforcer, nil
	default:
		return 0, fmt.Errorf("unknown capability %q", s)
	}
}
