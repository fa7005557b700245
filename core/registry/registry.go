// Package registry holds the participant modules active in a competition,
// keyed by capability and module id.
//
// Reads return point-in-time copies: a broadcast iterating the result of List
// is unaffected by modules registering or unregistering concurrently.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/retailmarket/core/model"
)

var (
	// ErrNotFound is returned by Get when no module is registered under the key.
	ErrNotFound = errors.New("module not found")
	// ErrCapabilityMismatch is returned when a module lacks the methods of
	// the capability it is registered under.
	ErrCapabilityMismatch = errors.New("module does not implement capability")
)

// Record describes a registration.
type Record struct {
	ID           string           `json:"id"`
	DisplayName  string           `json:"display_name"`
	Capability   model.Capability `json:"capability"`
	RegisteredAt time.Time        `json:"registered_at"`
}

type entry struct {
	record Record
	module Module
}

// Registry stores modules per capability in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[model.Capability][]entry
	now     func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[model.Capability][]entry), now: time.Now}
}

// Register adds m under (c, id). An existing registration with the same key
// is replaced and the module moves to the end of the registration order.
func (r *Registry) Register(c model.Capability, id string, m Module) error {
	if id == "" {
		return fmt.Errorf("register %s: empty module id", c)
	}
	if m == nil {
		return fmt.Errorf("register %s/%s: nil module", c, id)
	}
	if !Implements(c, m) {
		return fmt.Errorf("register %s/%s: %w", c, id, ErrCapabilityMismatch)
	}
	e := entry{
		record: Record{ID: id, DisplayName: m.Name(), Capability: c, RegisteredAt: r.now()},
		module: m,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.entries[c]
	next := make([]entry, 0, len(cur)+1)
	for _, old := range cur {
		if old.record.ID != id {
			next = append(next, old)
		}
	}
	r.entries[c] = append(next, e)
	return nil
}

// Unregister removes the module registered under (c, id). It returns false
// when nothing was registered.
func (r *Registry) Unregister(c model.Capability, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.entries[c]
	for i, e := range cur {
		if e.record.ID == id {
			next := make([]entry, 0, len(cur)-1)
			next = append(next, cur[:i]...)
			next = append(next, cur[i+1:]...)
			r.entries[c] = next
			return true
		}
	}
	return false
}

// Get returns the module registered under (c, id).
func (r *Registry) Get(c model.Capability, id string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[c] {
		if e.record.ID == id {
			return e.module, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", c, id, ErrNotFound)
}

// List returns a snapshot of the modules registered under c, in
// registration order.
func (r *Registry) List(c model.Capability) []Module {
	r.mu.RLock()
	cur := r.entries[c]
	r.mu.RUnlock()
	out := make([]Module, len(cur))
	for i, e := range cur {
		out[i] = e.module
	}
	return out
}

// Records returns a snapshot of the registration records under c.
func (r *Registry) Records(c model.Capability) []Record {
	r.mu.RLock()
	cur := r.entries[c]
	r.mu.RUnlock()
	out := make([]Record, len(cur))
	for i, e := range cur {
		out[i] = e.record
	}
	return out
}

// Len returns the number of modules registered under c.
func (r *Registry) Len(c model.Capability) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[c])
}

// Customers returns a typed snapshot of the customer modules.
func (r *Registry) Customers() []Customer {
	mods := r.List(model.CapabilityCustomer)
	out := make([]Customer, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.(Customer))
	}
	return out
}

// DistributionUtilities returns a typed snapshot of the distribution utility modules.
func (r *Registry) DistributionUtilities() []DistributionUtility {
	mods := r.List(model.CapabilityDistributionUtility)
	out := make([]DistributionUtility, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.(DistributionUtility))
	}
	return out
}

// Enforcers returns a typed snapshot of the tariff rule enforcers.
func (r *Registry) Enforcers() []TariffRuleEnforcer {
	mods := r.List(model.CapabilityTariffRuleEnforcer)
	out := make([]TariffRuleEnforcer, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.(TariffRuleEnforcer))
	}
	return out
}
