package participants

import (
	"fmt"

	"github.com/kilianp07/retailmarket/core/model"
)

// AcceptAll approves every action.
type AcceptAll struct{ id string }

func NewAcceptAll(id string) AcceptAll { return AcceptAll{id: id} }

func (a AcceptAll) ID() string                   { return a.id }
func (a AcceptAll) Name() string                 { return "accept all" }
func (AcceptAll) Accept(model.TariffAction) bool { return true }

// DenyTariffsConfig lists protected tariffs.
type DenyTariffsConfig struct {
	TariffIDs []int64 `json:"tariff_ids"`
}

// DenyTariffs rejects any action on the listed tariffs.
type DenyTariffs struct {
	id  string
	ids map[int64]struct{}
}

func NewDenyTariffs(id string, cfg DenyTariffsConfig) *DenyTariffs {
	d := &DenyTariffs{id: id, ids: make(map[int64]struct{}, len(cfg.TariffIDs))}
	for _, t := range cfg.TariffIDs {
		d.ids[t] = struct{}{}
	}
	return d
}

func (d *DenyTariffs) ID() string   { return d.id }
func (d *DenyTariffs) Name() string { return fmt.Sprintf("deny %d tariffs", len(d.ids)) }

func (d *DenyTariffs) Accept(a model.TariffAction) bool {
	_, denied := d.ids[a.TariffID]
	return !denied
}

// DenyActionConfig lists rejected action kinds ("revoke", "accept") and,
// optionally, the brokers the rule applies to.
type DenyActionConfig struct {
	Actions []string `json:"actions"`
	Brokers []string `json:"brokers"`
}

// DenyAction rejects actions of the configured kinds.
type DenyAction struct {
	id      string
	kinds   map[model.ActionKind]struct{}
	brokers map[string]struct{}
}

func NewDenyAction(id string, cfg DenyActionConfig) (*DenyAction, error) {
	d := &DenyAction{id: id, kinds: map[model.ActionKind]struct{}{}, brokers: map[string]struct{}{}}
	for _, a := range cfg.Actions {
		switch a {
		case model.ActionRevoke.String():
			d.kinds[model.ActionRevoke] = struct{}{}
		case model.ActionAccept.String():
			d.kinds[model.ActionAccept] = struct{}{}
		default:
			return nil, fmt.Errorf("deny_action: unknown action %q", a)
		}
	}
	if len(d.kinds) == 0 {
		return nil, fmt.Errorf("deny_action: no actions configured")
	}
	for _, b := range cfg.Brokers {
		d.brokers[b] = struct{}{}
	}
	return d, nil
}

func (d *DenyAction) ID() string   { return d.id }
func (d *DenyAction) Name() string { return "deny action" }

func (d *DenyAction) Accept(a model.TariffAction) bool {
	if _, ok := d.kinds[a.Kind]; !ok {
		return true
	}
	if len(d.brokers) == 0 {
		return false
	}
	_, ok := d.brokers[a.Broker]
	return !ok
}
