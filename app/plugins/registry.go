package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/registry"
)

// ModuleFactory builds a participant module from its id and raw configuration.
type ModuleFactory func(id string, conf map[string]any) (registry.Module, error)

// AuditStoreFactory builds the tariff audit store.
type AuditStoreFactory func(cfg config.AuditConfig) (audit.Store, error)

var (
	Customers             = map[string]ModuleFactory{}
	DistributionUtilities = map[string]ModuleFactory{}
	Enforcers             = map[string]ModuleFactory{}
	AuditStores           = map[string]AuditStoreFactory{}
)

func RegisterCustomer(name string, f ModuleFactory)            { Customers[name] = f }
func RegisterDistributionUtility(name string, f ModuleFactory) { DistributionUtilities[name] = f }
func RegisterEnforcer(name string, f ModuleFactory)            { Enforcers[name] = f }
func RegisterAuditStore(name string, f AuditStoreFactory)      { AuditStores[name] = f }

func modules(c model.Capability) map[string]ModuleFactory {
	switch c {
	case model.CapabilityCustomer:
		return Customers
	case model.CapabilityDistributionUtility:
		return DistributionUtilities
	case model.CapabilityTariffRuleEnforcer:
		return Enforcers
	default:
		return nil
	}
}

func known[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewModule instantiates the module described by spec for capability c.
func NewModule(c model.Capability, spec config.ModuleSpec) (registry.Module, error) {
	f, ok := modules(c)[spec.Type]
	if !ok {
		return nil, fmt.Errorf("unknown %s type %q (known: %v)", c, spec.Type, known(modules(c)))
	}
	m, err := f(spec.ID, spec.Conf)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c, spec.ID, err)
	}
	return m, nil
}

// RegisterModules builds every configured module and registers it in order.
func RegisterModules(reg *registry.Registry, cfg config.ModulesConfig) error {
	for _, c := range model.Capabilities {
		for _, spec := range cfg.ByCapability(c) {
			m, err := NewModule(c, spec)
			if err != nil {
				return err
			}
			if err := reg.Register(c, spec.ID, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewAuditStore opens the audit store selected by cfg.Backend.
func NewAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	f, ok := AuditStores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown audit backend %q (known: %v)", cfg.Backend, known(AuditStores))
	}
	return f(cfg)
}
